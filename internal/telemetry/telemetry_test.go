package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	UseProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() {
		_, _ = Init(context.Background(), Config{})
	})
	return rec
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "ndd", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())

	// No-op spans carry no ids.
	ctx, span := StartSpan(ctx, "noop")
	defer span.End()
	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
	assert.NotPanics(t, func() {
		AddEvent(ctx, "event")
		RecordError(ctx, errors.New("ignored"))
		SetAttributes(ctx, attribute.String("k", "v"))
	})
}

func TestStartNDSpan(t *testing.T) {
	rec := withRecorder(t)
	assert.True(t, IsEnabled())

	ctx, span := StartNDSpan(context.Background(), SpanNDRead, 2, 7, 100, 4096, ClientIP("10.0.0.9"))
	assert.NotEmpty(t, TraceID(ctx))
	assert.NotEmpty(t, SpanID(ctx))
	EndNDSpan(span, "EIO", true)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, SpanNDRead, s.Name())
	assert.Equal(t, codes.Error, s.Status().Code)

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, int64(2), attrs[AttrNDMinor].AsInt64())
	assert.Equal(t, int64(100), attrs[AttrNDBlkno].AsInt64())
	assert.Equal(t, "10.0.0.9", attrs[AttrClientIP].AsString())
	assert.Equal(t, "EIO", attrs[AttrNDErrno].AsString())
}

func TestRecordError(t *testing.T) {
	rec := withRecorder(t)

	ctx, span := StartSpan(context.Background(), "op")
	RecordError(ctx, nil)
	RecordError(ctx, errors.New("boom"))
	span.End()

	s := rec.Ended()[0]
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "boom", s.Status().Description)
	require.Len(t, s.Events(), 1)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1.5).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}

func TestParseProfileTypes(t *testing.T) {
	types, err := ParseProfileTypes(nil)
	require.NoError(t, err)
	assert.Len(t, types, 2)

	types, err = ParseProfileTypes([]string{"cpu", "goroutines", "mutex_count"})
	require.NoError(t, err)
	assert.Len(t, types, 3)

	_, err = ParseProfileTypes([]string{"heap"})
	assert.Error(t, err)
}

func TestInitProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(ProfilingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown())
	assert.False(t, IsProfilingEnabled())
}
