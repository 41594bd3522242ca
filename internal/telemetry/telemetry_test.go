package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { SetTracerProvider(nil) })
	return rec
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "esembed", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.InDelta(t, 1.0, cfg.SampleRate, 0)
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
	assert.False(t, IsEnabled())

	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()
	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
}

func TestPhaseSpan(t *testing.T) {
	rec := recorder(t)
	assert.True(t, IsEnabled())

	ctx, span := StartPhaseSpan(context.Background(), "WaitingForReady", "abc", Port(9200))
	assert.NotEmpty(t, TraceID(ctx))
	assert.NotEmpty(t, SpanID(ctx))
	RecordError(ctx, errors.New("not yet"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	s := ended[0]
	assert.Equal(t, "esembed.WaitingForReady", s.Name())
	assert.Equal(t, codes.Error, s.Status().Code)

	attrs := map[string]any{}
	for _, kv := range s.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "WaitingForReady", attrs[AttrPhase])
	assert.Equal(t, "abc", attrs[AttrInstance])
	assert.EqualValues(t, 9200, attrs[AttrPort])
}

func TestNestedSpans(t *testing.T) {
	rec := recorder(t)

	ctx, parent := StartPhaseSpan(context.Background(), "ExtractingResources", "abc")
	_, child := StartBundleSpan(ctx, "runtime.bundle", "/work/runtime")
	child.End()
	_, plugin := StartPluginSpan(ctx, "analysis-icu", 0)
	plugin.End()
	parent.End()

	ended := rec.Ended()
	require.Len(t, ended, 3)
	assert.Equal(t, ended[2].SpanContext().SpanID(), ended[0].Parent().SpanID())
	assert.Equal(t, "esembed.install_plugin", ended[1].Name())
}

func TestRecordErrorNilIsNoop(t *testing.T) {
	rec := recorder(t)
	ctx, span := StartSpan(context.Background(), "ok")
	RecordError(ctx, nil)
	AddEvent(ctx, "tick")
	SetAttributes(ctx, Plugin("x"))
	span.End()

	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, codes.Unset, rec.Ended()[0].Status().Code)
	assert.Len(t, rec.Ended()[0].Events(), 1)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}

func TestParseProfileTypes(t *testing.T) {
	types, err := ParseProfileTypes([]string{"cpu", " INUSE_SPACE "})
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{pyroscope.ProfileCPU, pyroscope.ProfileInuseSpace}, types)

	_, err = ParseProfileTypes([]string{"heap"})
	assert.Error(t, err)
}

func TestInitProfilingDisabled(t *testing.T) {
	stop, err := InitProfiling(ProfilingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, stop())
}
