// SPDX-License-Identifier: MIT

// Package azcs is a client for the Azure AI Content Safety REST API.
// It covers text and image analysis, prompt shielding, groundedness
// detection and blocklist management, and guards all upstream calls with a
// rate limiter and a circuit breaker.
package azcs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/Azure-Samples/content-safety/internal/log"
	"github.com/Azure-Samples/content-safety/internal/metrics"
	"github.com/Azure-Samples/content-safety/internal/resilience"
)

const (
	headerSubscriptionKey = "Ocp-Apim-Subscription-Key"

	// maxErrorBody caps how much of an upstream error body is read.
	maxErrorBody = 64 << 10
)

// Client talks to one Content Safety resource.
type Client struct {
	base       string
	key        string
	apiVersion string
	http       *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.CircuitBreaker
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithAPIVersion overrides the default api-version query parameter.
func WithAPIVersion(v string) Option {
	return func(c *Client) { c.apiVersion = v }
}

// WithLimiter installs an upstream request limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithBreaker installs a circuit breaker around upstream calls.
func WithBreaker(b *resilience.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithLogger replaces the default component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the given resource endpoint and subscription key.
func New(endpoint, key string, opts ...Option) *Client {
	c := &Client{
		base:       strings.TrimRight(endpoint, "/"),
		key:        key,
		apiVersion: "2024-09-01",
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: log.WithComponent("azcs"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AnalyzeText runs harm-category analysis on a text.
func (c *Client) AnalyzeText(ctx context.Context, req AnalyzeTextRequest) (*AnalyzeTextResult, error) {
	if req.OutputType == "" {
		req.OutputType = FourSeverityLevels
	}
	var out AnalyzeTextResult
	if err := c.do(ctx, "analyze_text", http.MethodPost, "/contentsafety/text:analyze", req, &out); err != nil {
		return nil, err
	}
	for _, ca := range out.CategoriesAnalysis {
		metrics.ObserveSeverity(string(ca.Category), ca.Severity)
	}
	for _, m := range out.BlocklistsMatch {
		metrics.RecordBlocklistHit(m.BlocklistName)
	}
	return &out, nil
}

// AnalyzeImage runs harm-category analysis on an image.
func (c *Client) AnalyzeImage(ctx context.Context, req AnalyzeImageRequest) (*AnalyzeImageResult, error) {
	if req.OutputType == "" {
		req.OutputType = FourSeverityLevels
	}
	var out AnalyzeImageResult
	if err := c.do(ctx, "analyze_image", http.MethodPost, "/contentsafety/image:analyze", req, &out); err != nil {
		return nil, err
	}
	for _, ca := range out.CategoriesAnalysis {
		metrics.ObserveSeverity(string(ca.Category), ca.Severity)
	}
	return &out, nil
}

// ShieldPrompt checks a user prompt and its documents for injection attacks.
func (c *Client) ShieldPrompt(ctx context.Context, req ShieldPromptRequest) (*ShieldPromptResult, error) {
	if req.Documents == nil {
		req.Documents = []string{}
	}
	var out ShieldPromptResult
	if err := c.do(ctx, "shield_prompt", http.MethodPost, "/contentsafety/text:shieldPrompt", req, &out); err != nil {
		return nil, err
	}
	if out.UserPromptAnalysis.AttackDetected {
		metrics.RecordAttackDetected("user_prompt")
	}
	for _, d := range out.DocumentsAnalysis {
		if d.AttackDetected {
			metrics.RecordAttackDetected("document")
		}
	}
	return &out, nil
}

// DetectGroundedness checks whether a text is grounded in the given sources.
func (c *Client) DetectGroundedness(ctx context.Context, req DetectGroundednessRequest) (*DetectGroundednessResult, error) {
	var out DetectGroundednessResult
	if err := c.do(ctx, "detect_groundedness", http.MethodPost, "/contentsafety/text:detectGroundedness", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping probes the upstream for readiness checks. It lists blocklists rather
// than analysing text so probes consume no analysis quota and record no
// severity metrics.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListBlocklists(ctx)
	return err
}

// do executes one upstream call: limiter, breaker, request, error mapping.
// Only transport failures, timeouts and 5xx responses count against the
// breaker; client-side errors (4xx) and decode failures do not.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &APIError{Sentinel: ErrTimeout, Operation: op, Err: err}
		}
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &APIError{Sentinel: ErrBadRequest, Operation: op, Err: err}
		}
		payload = bytes.NewReader(data)
	}

	u := c.base + path + "?api-version=" + url.QueryEscape(c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return &APIError{Sentinel: ErrBadRequest, Operation: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSubscriptionKey, c.key)

	start := time.Now()
	var softErr error // 4xx / decode errors that must not trip the breaker

	run := func() error {
		res, err := c.http.Do(req)
		if err != nil {
			return c.transportError(op, err)
		}
		defer res.Body.Close()

		if res.StatusCode >= 400 {
			apiErr := c.statusError(op, res)
			if errors.Is(apiErr, ErrUpstreamError) {
				return apiErr
			}
			softErr = apiErr
			return nil
		}
		if out != nil {
			if err := json.NewDecoder(res.Body).Decode(out); err != nil {
				softErr = &APIError{Sentinel: ErrBadResponse, Operation: op, Status: res.StatusCode, Err: err}
			}
		}
		return nil
	}

	if c.breaker != nil {
		err = c.breaker.Execute(run)
	} else {
		err = run()
	}
	if err == nil {
		err = softErr
	}

	elapsed := time.Since(start)
	outcome := outcomeFor(err)
	metrics.RecordUpstreamRequest(op, outcome, elapsed.Seconds())

	logger := log.WithContext(ctx, c.logger)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("operation", op).
			Str(log.FieldOutcome, outcome).
			Dur("elapsed", elapsed).
			Msg("upstream request failed")
		return err
	}

	logger.Debug().
		Str("operation", op).
		Dur("elapsed", elapsed).
		Msg("upstream request ok")
	return nil
}

func (c *Client) transportError(op string, err error) error {
	sentinel := ErrUpstreamUnavailable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		sentinel = ErrTimeout
	}
	return &APIError{Sentinel: sentinel, Operation: op, Err: err}
}

func (c *Client) statusError(op string, res *http.Response) error {
	apiErr := &APIError{Operation: op, Status: res.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	var env errorEnvelope
	if json.Unmarshal(raw, &env) == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		apiErr.Sentinel = ErrUnauthorized
	case res.StatusCode == http.StatusNotFound:
		apiErr.Sentinel = ErrNotFound
	case res.StatusCode == http.StatusTooManyRequests:
		apiErr.Sentinel = ErrRateLimited
		if ra := res.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				apiErr.RetryAfter = secs
			}
		}
	case res.StatusCode >= 500:
		apiErr.Sentinel = ErrUpstreamError
	default:
		apiErr.Sentinel = ErrBadRequest
	}
	return apiErr
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
