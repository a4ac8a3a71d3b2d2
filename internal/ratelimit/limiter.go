// SPDX-License-Identifier: MIT

// Package ratelimit bounds how fast clients may drive the moderation
// pipeline, independently of the router-level per-IP limits.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Azure-Samples/content-safety/internal/metrics"
)

// Config holds rate limiting configuration.
type Config struct {
	// Global limits across all clients
	GlobalRate  rate.Limit
	GlobalBurst int

	// Per-IP limits
	PerIPRate  rate.Limit
	PerIPBurst int

	// Cleanup interval for per-IP limiters
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		GlobalRate:  100,
		GlobalBurst: 200,

		PerIPRate:  10,
		PerIPBurst: 20,

		CleanupInterval: 5 * time.Minute,
	}
}

// Limiter manages global and per-IP rate limiting.
type Limiter struct {
	config Config

	global *rate.Limiter
	perIP  map[string]*rate.Limiter
	mu     sync.Mutex

	lastCleanup time.Time
}

// New creates a new rate limiter with the given config.
func New(config Config) *Limiter {
	return &Limiter{
		config:      config,
		global:      rate.NewLimiter(config.GlobalRate, config.GlobalBurst),
		perIP:       make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}
}

// Allow checks if a request from clientIP is allowed under rate limits.
func (l *Limiter) Allow(clientIP string) bool {
	if !l.global.Allow() {
		metrics.RecordRateLimitExceeded("global")
		return false
	}

	if !l.ipLimiter(clientIP).Allow() {
		metrics.RecordRateLimitExceeded("per_ip")
		return false
	}

	l.maybeCleanup()
	return true
}

func (l *Limiter) ipLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.perIP[ip]
	if !exists {
		limiter = rate.NewLimiter(l.config.PerIPRate, l.config.PerIPBurst)
		l.perIP[ip] = limiter
	}
	return limiter
}

// maybeCleanup drops all per-IP limiters once the cleanup interval has
// passed. Dropping everything is simpler than tracking last access and
// costs at most one burst of slack per stale IP.
func (l *Limiter) maybeCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) < l.config.CleanupInterval {
		return
	}
	l.perIP = make(map[string]*rate.Limiter)
	l.lastCleanup = time.Now()
}
