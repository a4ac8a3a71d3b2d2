// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

func TestNewProviderDisabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{
		Enabled:     false,
		ServiceName: "content-safety",
	})
	require.NoError(t, err)
	assert.Nil(t, provider.tp)

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording())
	span.End()
}

func TestShutdownNoop(t *testing.T) {
	p := &Provider{}
	assert.NoError(t, p.Shutdown(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, p.Shutdown(ctx))
}

func TestTracerProducesSpans(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: false, ServiceName: "content-safety"})
	require.NoError(t, err)

	tracer := Tracer("moderation")
	ctx, span := tracer.Start(context.Background(), "pipeline.evaluate")
	require.NotNil(t, span)
	span.End()

	assert.NotNil(t, trace.SpanFromContext(ctx))
}

func TestDecisionAttributes(t *testing.T) {
	attrs := DecisionAttributes("abc-123", "blocked", "adjudication", "Violence", 6)
	require.Len(t, attrs, 5)
	assert.Equal(t, AttrDecisionID, attrs[0].Key)
	assert.Equal(t, "blocked", attrs[1].Value.AsString())
	assert.Equal(t, int64(6), attrs[4].Value.AsInt64())
}
