// SPDX-License-Identifier: MIT

// Package telemetry provides OpenTelemetry tracing for the daemon. Spans are
// exported over OTLP/HTTP; when disabled, a noop provider is installed so
// instrumented code paths cost nothing.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config holds tracing configuration.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// Environment is the deployment environment, e.g. "production".
	Environment string
	// Endpoint is the OTLP/HTTP collector endpoint, host:port.
	Endpoint string
	// SamplingRate is the head sampling ratio, 0.0 to 1.0.
	SamplingRate float64
}

// Provider owns the tracer provider lifecycle.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// NewProvider installs the global tracer provider and propagators.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return &Provider{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SamplingRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{tp: tp}, nil
}

// Shutdown flushes pending spans. Safe to call on a disabled provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.tp.Shutdown(shutdownCtx)
}

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Span attribute keys used across the daemon.
const (
	AttrDecisionID = attribute.Key("moderation.decision_id")
	AttrOutcome    = attribute.Key("moderation.outcome")
	AttrStage      = attribute.Key("moderation.stage")
	AttrCategory   = attribute.Key("moderation.category")
	AttrSeverity   = attribute.Key("moderation.severity")
	AttrBlocklist  = attribute.Key("moderation.blocklist")
)

// DecisionAttributes builds span attributes for a moderation decision.
func DecisionAttributes(decisionID, outcome, stage, category string, severity int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrDecisionID.String(decisionID),
		AttrOutcome.String(outcome),
		AttrStage.String(stage),
		AttrCategory.String(category),
		AttrSeverity.Int(severity),
	}
}
