// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-123")
	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Fatalf("expected req-123, got %q", got)
	}
}

func TestRequestIDMissing(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request ID, got %q", got)
	}
	if got := RequestIDFromContext(nil); got != "" { //nolint:staticcheck // nil ctx must not panic
		t.Fatalf("expected empty request ID for nil ctx, got %q", got)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ctx := ContextWithRequestID(context.Background(), "req-9")
	ctx = ContextWithDecisionID(ctx, "dec-7")

	enriched := WithContext(ctx, logger)
	enriched.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid log output: %v", err)
	}
	if entry[FieldRequestID] != "req-9" {
		t.Errorf("missing request_id field: %v", entry)
	}
	if entry[FieldDecisionID] != "dec-7" {
		t.Errorf("missing decision_id field: %v", entry)
	}
}

func TestWithContextNoFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	plain := WithContext(context.Background(), logger)
	plain.Info().Msg("plain")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid log output: %v", err)
	}
	if _, ok := entry[FieldRequestID]; ok {
		t.Error("unexpected request_id field on bare context")
	}
}
