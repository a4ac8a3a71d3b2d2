// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"unicode/utf8"

	"github.com/Azure-Samples/content-safety/internal/metrics"
	"github.com/Azure-Samples/content-safety/internal/telemetry"
)

type moderateRequest struct {
	Text string `json:"text"`
}

// handleModerate runs the staged moderation pipeline on a text. On top of
// the router-level limit, moderation has its own token-bucket budget since
// a single call can fan out into several upstream requests.
func (s *Server) handleModerate(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow(s.clientIP(r)) {
		metrics.RecordRateLimitExceeded("moderate")
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "moderation budget exhausted")
		return
	}

	var req moderateRequest
	if err := decodeJSON(w, r, &req, maxAnalyzeBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}
	if utf8.RuneCountInString(req.Text) > s.cfg.Pipeline.MaxTextChars {
		writeError(w, http.StatusRequestEntityTooLarge, "text_too_long", "text exceeds the maximum length")
		return
	}

	ctx, span := telemetry.Tracer("api").Start(r.Context(), "pipeline.evaluate")
	decision, err := s.pipeline.Evaluate(ctx, req.Text)
	span.SetAttributes(telemetry.DecisionAttributes(
		decision.ID, string(decision.Outcome), string(decision.Stage),
		string(decision.Category), decision.Severity,
	)...)
	span.End()

	if err != nil && !decision.Allowed {
		// Fail-closed: a stage error without fail-open rejects the content.
		s.writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}
