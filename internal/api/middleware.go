// SPDX-License-Identifier: MIT

package api

import (
	"crypto/subtle"
	"net/http"
	"runtime"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Azure-Samples/content-safety/internal/log"
)

// requestID assigns every request a correlation ID. An incoming X-Request-ID
// is kept so callers can trace their own requests across services.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(log.ContextWithRequestID(r.Context(), id)))
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
			w.Header().Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		}
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// auth enforces the bearer token on /api/v1. An unset token denies all
// requests rather than opening the API.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.cfg.APIToken
		logger := log.WithComponentFromContext(r.Context(), "auth")

		if token == "" {
			logger.Error().
				Str(log.FieldEvent, "auth.fail_closed").
				Msg("CONTENTSAFETY_API_TOKEN not set, denying access")
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}

		reqToken := bearerToken(r)
		if reqToken == "" {
			logger.Warn().Str(log.FieldEvent, "auth.missing_header").Msg("authorization header missing")
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if subtle.ConstantTimeCompare([]byte(reqToken), []byte(token)) != 1 {
			logger.Warn().Str(log.FieldEvent, "auth.invalid_token").Msg("invalid api token")
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				buf := make([]byte, 8192)
				n := runtime.Stack(buf, false)

				logger := log.WithComponentFromContext(r.Context(), "panic-recovery")
				logger.Error().
					Str(log.FieldEvent, "panic.recovered").
					Str("method", r.Method).
					Str(log.FieldPath, r.URL.Path).
					Interface("panic", rec).
					Str("stack", string(buf[:n])).
					Msg("recovered from handler panic")

				writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// accessLog emits one structured line per request after it completes.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger := log.WithContext(r.Context(), s.logger)
		logger.Info().
			Str(log.FieldEvent, "http.request").
			Str("method", r.Method).
			Str(log.FieldPath, r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote", s.clientIP(r)).
			Msg("request completed")
	})
}
