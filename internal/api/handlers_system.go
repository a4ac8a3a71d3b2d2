// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"time"
)

type statusResponse struct {
	Version        string `json:"version"`
	UptimeSeconds  int64  `json:"uptimeSeconds"`
	Upstream       string `json:"upstream"`
	CircuitBreaker string `json:"circuitBreaker"`
	Blocklist      string `json:"blocklist"`
	FailOpen       bool   `json:"failOpen"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Upstream:      s.cfg.Upstream.Endpoint,
		Blocklist:     s.cfg.Pipeline.Blocklist,
		FailOpen:      s.cfg.Pipeline.FailOpen,
	}
	if s.breaker != nil {
		resp.CircuitBreaker = string(s.breaker.State())
	}
	writeJSON(w, http.StatusOK, resp)
}
