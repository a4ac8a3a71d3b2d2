// SPDX-License-Identifier: MIT

// Package api exposes the moderation daemon over HTTP: thin proxies for the
// Content Safety analysis operations, the staged moderation pipeline,
// blocklist management, decision reports and operational probes.
package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Azure-Samples/content-safety/internal/azcs"
	"github.com/Azure-Samples/content-safety/internal/config"
	"github.com/Azure-Samples/content-safety/internal/filter"
	"github.com/Azure-Samples/content-safety/internal/health"
	"github.com/Azure-Samples/content-safety/internal/log"
	"github.com/Azure-Samples/content-safety/internal/metrics"
	"github.com/Azure-Samples/content-safety/internal/ratelimit"
	"github.com/Azure-Samples/content-safety/internal/reports"
	"github.com/Azure-Samples/content-safety/internal/resilience"
)

// Deps carries the wired components the server serves.
type Deps struct {
	Upstream *azcs.Client
	Pipeline *filter.Pipeline
	Store    *reports.Store
	Health   *health.Manager
	Breaker  *resilience.CircuitBreaker
	Limiter  *ratelimit.Limiter
	Version  string
}

// Server is the HTTP surface of the daemon.
type Server struct {
	cfg      config.AppConfig
	upstream *azcs.Client
	pipeline *filter.Pipeline
	store    *reports.Store
	health   *health.Manager
	breaker  *resilience.CircuitBreaker
	limiter  *ratelimit.Limiter
	version  string
	started  time.Time
	trusted  []*net.IPNet
	logger   zerolog.Logger
}

// New creates the server. Trusted proxy CIDRs that fail to parse are skipped.
func New(cfg config.AppConfig, deps Deps) *Server {
	s := &Server{
		cfg:      cfg,
		upstream: deps.Upstream,
		pipeline: deps.Pipeline,
		store:    deps.Store,
		health:   deps.Health,
		breaker:  deps.Breaker,
		limiter:  deps.Limiter,
		version:  deps.Version,
		started:  time.Now(),
		logger:   log.WithComponent("api"),
	}
	for _, part := range strings.Split(cfg.TrustedProxies, ",") {
		p := strings.TrimSpace(part)
		if p == "" {
			continue
		}
		if _, ipnet, err := net.ParseCIDR(p); err == nil {
			s.trusted = append(s.trusted, ipnet)
		}
	}
	return s
}

// Routes builds the chi router with the full middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.recoverer)
	r.Use(s.requestID)
	r.Use(securityHeaders)
	r.Use(s.accessLog)

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth)
		r.Use(s.apiRateLimit())

		r.Post("/text/analyze", s.handleAnalyzeText)
		r.Post("/image/analyze", s.handleAnalyzeImage)
		r.Post("/prompt/shield", s.handleShieldPrompt)
		r.Post("/groundedness/detect", s.handleDetectGroundedness)

		r.Post("/moderate", s.handleModerate)

		r.Route("/blocklists", func(r chi.Router) {
			r.Get("/", s.handleListBlocklists)
			r.Route("/{name}", func(r chi.Router) {
				r.Put("/", s.handleUpsertBlocklist)
				r.Get("/", s.handleGetBlocklist)
				r.Delete("/", s.handleDeleteBlocklist)
				r.Get("/items", s.handleListBlocklistItems)
				r.Post("/items", s.handleAddBlocklistItems)
				r.Post("/items/remove", s.handleRemoveBlocklistItems)
			})
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/summary", s.handleReportSummary)
			r.Get("/decisions", s.handleReportDecisions)
			r.Post("/export", s.handleReportExport)
		})

		r.Get("/status", s.handleStatus)
	})

	return r
}

// apiRateLimit is the per-IP sliding-window limit on the authenticated API.
func (s *Server) apiRateLimit() func(http.Handler) http.Handler {
	limit := s.cfg.RequestsPerMin
	if limit <= 0 {
		limit = 120
	}
	return httprate.Limit(
		limit,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return s.clientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordRateLimitExceeded("api")
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests")
		}),
	)
}

// clientIP resolves the originating address, honouring forwarding headers
// only when the peer is a trusted proxy.
func (s *Server) clientIP(r *http.Request) string {
	if s.remoteIsTrusted(r.RemoteAddr) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
				return ip
			}
		}
		if xr := r.Header.Get("X-Real-IP"); xr != "" {
			return xr
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func (s *Server) remoteIsTrusted(remote string) bool {
	if len(s.trusted) == 0 {
		return false
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range s.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
