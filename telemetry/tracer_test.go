package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/flowloom/actions/core"
	"github.com/flowloom/actions/telemetry"
)

func TestTracer_StartActionSpan_DoesNotPanicWithNoProvider(t *testing.T) {
	tr := telemetry.NewTracer(nil, "actions-test")
	ctx, span := tr.StartActionSpan(context.Background(), "do_thing", 1000, 0)
	assert.NotNil(t, ctx)
	span.SetAttribute("custom", "value")
	span.RecordOutcome(core.Success(nil))
	span.End()
}

func TestTracer_SilentModeSkipsSpanCreation(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))
	tr := telemetry.NewTracer(provider, "actions-test").WithMode(core.TelemetrySilent)
	_, span := tr.StartSpan(context.Background(), "chain.execute")
	span.SetAttribute("should_be_ignored", true)
	span.End()
	assert.Empty(t, recorder.Started())
	assert.Empty(t, recorder.Ended())
}
