// SPDX-License-Identifier: MIT

// Package llm is a minimal chat-completions client used to adjudicate
// content the upstream filters flagged. It targets Azure AI model
// endpoints (serverless or AOAI deployments) with bearer-key auth.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Azure-Samples/content-safety/internal/log"
)

var (
	ErrUnavailable = errors.New("llm: endpoint unreachable")
	ErrBadVerdict  = errors.New("llm: model returned an unusable verdict")
	ErrNoChoices   = errors.New("llm: response contained no choices")
)

// Verdict is the adjudicator's judgement of a piece of content.
type Verdict string

const (
	VerdictHarmful    Verdict = "harmful"
	VerdictNotHarmful Verdict = "not_harmful"
)

const systemPrompt = `You are a content evaluation assistant.
Check the content below and decide whether it is harmful.
Answer with exactly one of: "Harmful" or "Not Harmful".`

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages         []Message `json:"messages"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
	PresencePenalty  float64   `json:"presence_penalty"`
	FrequencyPenalty float64   `json:"frequency_penalty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Client evaluates content against a chat-completions endpoint.
type Client struct {
	endpoint string
	key      string
	http     *http.Client
	logger   zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger replaces the default component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the given chat-completions endpoint.
func New(endpoint, key string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		key:      key,
		http: &http.Client{
			Timeout:   20 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: log.WithComponent("llm"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EvaluateHarm asks the model whether the content is harmful.
func (c *Client) EvaluateHarm(ctx context.Context, content string) (Verdict, error) {
	req := chatRequest{
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: content},
		},
		MaxTokens:   15,
		Temperature: 0.1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.key)

	res, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", fmt.Errorf("llm: completion failed (HTTP %d): %s", res.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out chatResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrNoChoices
	}

	verdict, err := parseVerdict(out.Choices[0].Message.Content)
	if err != nil {
		return "", err
	}

	logger := log.WithContext(ctx, c.logger)
	logger.Debug().
		Str(log.FieldVerdict, string(verdict)).
		Msg("adjudication complete")
	return verdict, nil
}

// parseVerdict normalises the model's answer. Models occasionally add
// punctuation or casing; anything else is an error rather than a guess.
func parseVerdict(answer string) (Verdict, error) {
	normalized := strings.ToLower(strings.TrimSpace(answer))
	normalized = strings.Trim(normalized, ".!\"'")
	switch {
	case strings.HasPrefix(normalized, "not harmful"), strings.HasPrefix(normalized, "not harmfull"):
		return VerdictNotHarmful, nil
	case strings.HasPrefix(normalized, "harmful"), strings.HasPrefix(normalized, "harmfull"):
		return VerdictHarmful, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrBadVerdict, answer)
	}
}
