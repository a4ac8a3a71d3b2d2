// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Azure-Samples/content-safety/internal/log"
	"github.com/Azure-Samples/content-safety/internal/reports"
)

// sinceWindow parses the optional ?since= duration query, defaulting to 24h.
func sinceWindow(r *http.Request) (time.Time, error) {
	window := 24 * time.Hour
	if raw := r.URL.Query().Get("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return time.Time{}, fmt.Errorf("invalid since window %q", raw)
		}
		window = d
	}
	return time.Now().Add(-window), nil
}

func (s *Server) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	since, err := sinceWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sum, err := s.store.Summarize(r.Context(), since)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "reports")
		logger.Error().Err(err).Msg("summary query failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to build summary")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleReportDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "offset must be non-negative")
			return
		}
		offset = n
	}

	decisions, err := s.store.Recent(r.Context(), limit, offset)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "reports")
		logger.Error().Err(err).Msg("decisions query failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list decisions")
		return
	}
	if decisions == nil {
		decisions = []reports.Decision{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"decisions": decisions,
		"limit":     limit,
		"offset":    offset,
	})
}

// handleReportExport writes a JSON report snapshot into the data directory.
// The path is chosen server-side so callers cannot write elsewhere.
func (s *Server) handleReportExport(w http.ResponseWriter, r *http.Request) {
	since, err := sinceWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	name := fmt.Sprintf("report-%s.json", time.Now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(s.cfg.DataDir, name)

	if err := s.store.Export(r.Context(), path, since); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "reports")
		logger.Error().
			Err(err).
			Str(log.FieldPath, path).
			Msg("report export failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to export report")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"file": name})
}
