// SPDX-License-Identifier: MIT

// Package health provides liveness and readiness probes with per-component
// status, suitable for Docker HEALTHCHECK and Kubernetes probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Azure-Samples/content-safety/internal/log"
)

// Status is the overall or per-component condition.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one component check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Checker probes one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Response is the body served by the probe endpoints.
type Response struct {
	Status    Status                 `json:"status"`
	Ready     bool                   `json:"ready"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Manager aggregates component checkers into probe responses.
type Manager struct {
	version  string
	checkers []Checker
}

func NewManager(version string) *Manager {
	return &Manager{version: version}
}

// Register adds a component checker. Not safe to call after serving starts.
func (m *Manager) Register(c Checker) {
	m.checkers = append(m.checkers, c)
}

func (m *Manager) run(ctx context.Context) Response {
	resp := Response{
		Status:    StatusHealthy,
		Ready:     true,
		Version:   m.version,
		Timestamp: time.Now(),
	}
	if len(m.checkers) == 0 {
		return resp
	}

	resp.Checks = make(map[string]CheckResult, len(m.checkers))
	for _, c := range m.checkers {
		result := c.Check(ctx)
		resp.Checks[c.Name()] = result

		switch result.Status {
		case StatusUnhealthy:
			resp.Status = StatusUnhealthy
			resp.Ready = false
		case StatusDegraded:
			if resp.Status == StatusHealthy {
				resp.Status = StatusDegraded
			}
		}
	}
	return resp
}

// ServeHealth is the liveness probe. It always answers 200: the process is
// alive even when dependencies are down.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")

	resp := m.run(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "health.encode_error").Msg("failed to encode health response")
	}
}

// ServeReady is the readiness probe. Unhealthy dependencies make it answer
// 503 so load balancers stop routing traffic here.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")

	resp := m.run(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "readiness.encode_error").Msg("failed to encode readiness response")
	}

	logger.Debug().
		Str(log.FieldEvent, "readiness.checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Msg("readiness check performed")
}

// CheckFunc adapts a function to the Checker interface.
type CheckFunc struct {
	ComponentName string
	Fn            func(ctx context.Context) CheckResult
}

func (c CheckFunc) Name() string { return c.ComponentName }

func (c CheckFunc) Check(ctx context.Context) CheckResult { return c.Fn(ctx) }

// Pinger is anything that can be probed with a context, such as the upstream
// client or the report store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker probes a Pinger with a short timeout. Optional components
// degrade instead of failing readiness when their probe errors.
type PingChecker struct {
	name     string
	pinger   Pinger
	optional bool
	timeout  time.Duration
}

func NewPingChecker(name string, p Pinger, optional bool) *PingChecker {
	return &PingChecker{name: name, pinger: p, optional: optional, timeout: 3 * time.Second}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.pinger.Ping(ctx); err != nil {
		status := StatusUnhealthy
		if c.optional {
			status = StatusDegraded
		}
		return CheckResult{Status: status, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// DataDirChecker verifies the data directory exists and is writable.
type DataDirChecker struct {
	path string
}

func NewDataDirChecker(path string) *DataDirChecker {
	return &DataDirChecker{path: path}
}

func (c *DataDirChecker) Name() string { return "data_dir" }

func (c *DataDirChecker) Check(_ context.Context) CheckResult {
	info, err := os.Stat(c.path)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Message: "path is not a directory"}
	}

	probe := filepath.Join(c.path, ".write_test")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	_ = os.Remove(probe)
	return CheckResult{Status: StatusHealthy}
}
