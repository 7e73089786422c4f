// Package telemetry wraps OpenTelemetry span production for the engine
// (spec.md §4.1, §6): one span per action attempt, with attributes
// action_name, timeout_ms and retry_attempt. It owns span
// production only; wiring a concrete exporter (OTLP, stdout, ...) is the
// embedding application's concern, so Tracer accepts any
// trace.TracerProvider and defaults to the OTel no-op provider.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowloom/actions/core"
)

// Tracer produces spans for action/chain/workflow execution.
type Tracer struct {
	tracer trace.Tracer
	mode   core.TelemetryMode
}

// NewTracer builds a Tracer from a provider (nil uses the OTel global
// provider, which defaults to a no-op implementation until an
// application installs a real one via otel.SetTracerProvider).
func NewTracer(provider trace.TracerProvider, instrumentationName string) *Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracer{tracer: provider.Tracer(instrumentationName), mode: core.TelemetryFull}
}

// WithMode returns a copy of the Tracer gated to mode (spec.md §4.1
// telemetry opt: full | minimal | silent).
func (t *Tracer) WithMode(mode core.TelemetryMode) *Tracer {
	cp := *t
	cp.mode = mode
	return &cp
}

// Span wraps an OTel span plus the gating mode, so SetAttribute/
// RecordOutcome/End no-op cleanly under TelemetrySilent without
// callers needing to branch.
type Span struct {
	span trace.Span
	mode core.TelemetryMode
}

// StartActionSpan begins a span named "action.execute:<actionName>" for a
// single action execution, with action_name, timeout_ms and retry_attempt
// attributes.
func (t *Tracer) StartActionSpan(ctx context.Context, actionName string, timeout int64, attempt int) (context.Context, *Span) {
	if t.mode == core.TelemetrySilent {
		return ctx, &Span{mode: core.TelemetrySilent}
	}
	spanCtx, span := t.tracer.Start(ctx, fmt.Sprintf("action.execute:%s", actionName))
	span.SetAttributes(
		attribute.String("action_name", actionName),
		attribute.Int64("timeout_ms", timeout),
		attribute.Int("retry_attempt", attempt),
	)
	return spanCtx, &Span{span: span, mode: t.mode}
}

// StartSpan begins a generically named span (chain/workflow/step
// boundaries).
func (t *Tracer) StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if t.mode == core.TelemetrySilent {
		return ctx, &Span{mode: core.TelemetrySilent}
	}
	spanCtx, span := t.tracer.Start(ctx, name)
	return spanCtx, &Span{span: span, mode: t.mode}
}

// SetAttribute records a single attribute if telemetry is active.
func (s *Span) SetAttribute(key string, value interface{}) {
	if s.span == nil || s.mode == core.TelemetrySilent {
		return
	}
	if s.mode == core.TelemetryMinimal && key != "action_name" && key != "status" {
		return
	}
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

// RecordOutcome marks the span's status from an Outcome's success/failure.
func (s *Span) RecordOutcome(out core.Outcome) {
	if s.span == nil {
		return
	}
	if out.OK {
		s.span.SetStatus(codes.Ok, "")
		return
	}
	s.span.SetStatus(codes.Error, out.Err.Message)
	s.span.RecordError(out.Err)
}

// End closes the span.
func (s *Span) End() {
	if s.span == nil {
		return
	}
	s.span.End()
}
