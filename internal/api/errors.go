// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Azure-Samples/content-safety/internal/azcs"
	"github.com/Azure-Samples/content-safety/internal/resilience"
)

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err, detail string) {
	writeJSON(w, code, errorResponse{Error: err, Detail: detail})
}

// writeUpstreamError maps upstream client failures onto this API's status
// codes. Upstream credential problems surface as 502, not 401: the caller's
// own token was already accepted.
func (s *Server) writeUpstreamError(w http.ResponseWriter, err error) {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		retry := 30 * time.Second
		if s.breaker != nil {
			if ra := s.breaker.RetryAfter(); ra > 0 {
				retry = ra
			}
		}
		w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds()+1)))
		writeError(w, http.StatusServiceUnavailable, "upstream_unavailable", "content safety service is temporarily unavailable")
		return
	}

	var apiErr *azcs.APIError
	detail := err.Error()
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		detail = apiErr.Message
	}

	switch {
	case errors.Is(err, azcs.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", detail)
	case errors.Is(err, azcs.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", detail)
	case errors.Is(err, azcs.ErrRateLimited):
		if apiErr != nil && apiErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(apiErr.RetryAfter))
		}
		writeError(w, http.StatusTooManyRequests, "upstream_throttled", "content safety service is throttling requests")
	case errors.Is(err, azcs.ErrUnauthorized):
		writeError(w, http.StatusBadGateway, "upstream_auth_failed", "content safety credentials were rejected")
	case errors.Is(err, azcs.ErrTimeout),
		errors.Is(err, azcs.ErrUpstreamUnavailable),
		errors.Is(err, azcs.ErrUpstreamError),
		errors.Is(err, azcs.ErrBadResponse):
		writeError(w, http.StatusBadGateway, "upstream_error", "content safety request failed")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// decodeJSON reads a request body into v with a hard size cap.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
