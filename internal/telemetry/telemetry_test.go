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

// recordSpans routes spans into an in-memory recorder for one test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	setTracer(tp.Tracer(instrumentationName), true)
	t.Cleanup(func() {
		_, _ = Init(context.Background(), Config{})
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func attrsOf(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "bankd", cfg.ServiceName)
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

	// Spans still work, they are just not recorded.
	ctx, span := StartBankSpan(ctx, "deposit")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(2).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}

func TestStartBankSpan(t *testing.T) {
	rec := recordSpans(t)
	assert.True(t, IsEnabled())

	ctx, span := StartBankSpan(context.Background(), "transfer",
		UserID(7), Counterparty("SB10002"), Amount(30000))
	SetAttributes(ctx, Account("SB10001"), OpID("op-1"))
	assert.NotEmpty(t, TraceID(ctx))
	assert.NotEmpty(t, SpanID(ctx))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "bank.transfer", spans[0].Name())

	attrs := attrsOf(spans[0])
	assert.Equal(t, "transfer", attrs[AttrOperation].AsString())
	assert.Equal(t, int64(7), attrs[AttrUserID].AsInt64())
	assert.Equal(t, "SB10002", attrs[AttrCounterparty].AsString())
	assert.Equal(t, int64(30000), attrs[AttrAmount].AsInt64())
	assert.Equal(t, "SB10001", attrs[AttrAccount].AsString())
	assert.Equal(t, "op-1", attrs[AttrOpID].AsString())
}

func TestRecordError(t *testing.T) {
	rec := recordSpans(t)

	ctx, span := StartBankSpan(context.Background(), "withdraw")
	RecordError(ctx, nil)
	RecordError(ctx, errors.New("insufficient funds"))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "insufficient funds", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestSessionAndStorageSpans(t *testing.T) {
	rec := recordSpans(t)

	ctx, session := StartSessionSpan(context.Background(), "conn-1", "127.0.0.1:5000")
	SetAttributes(ctx, UserID(3), Role("manager"))
	_, backup := StartStorageSpan(ctx, "backup", Bucket("bankd-backups"))
	backup.End()
	session.End()

	spans := rec.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "storage.backup", spans[0].Name())
	assert.Equal(t, "bankd-backups", attrsOf(spans[0])[AttrBucket].AsString())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())

	assert.Equal(t, "teller.session", spans[1].Name())
	attrs := attrsOf(spans[1])
	assert.Equal(t, "conn-1", attrs[AttrConnectionID].AsString())
	assert.Equal(t, "127.0.0.1:5000", attrs[AttrClientAddr].AsString())
	assert.Equal(t, "manager", attrs[AttrRole].AsString())
	assert.Equal(t, int64(3), attrs[AttrUserID].AsInt64())
}

func TestLoanID(t *testing.T) {
	kv := LoanID(12)
	assert.Equal(t, attribute.Key(AttrLoanID), kv.Key)
	assert.Equal(t, int64(12), kv.Value.AsInt64())
}

func TestProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(ProfilingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown())
	assert.False(t, IsProfilingEnabled())
}

func TestParseProfileTypes(t *testing.T) {
	types, err := parseProfileTypes(DefaultProfileTypes)
	require.NoError(t, err)
	assert.Len(t, types, len(DefaultProfileTypes))

	_, err = parseProfileTypes([]string{"cpu", "heap"})
	assert.ErrorContains(t, err, `"heap"`)
}

func TestInitProfilingRejectsUnknownType(t *testing.T) {
	_, err := InitProfiling(ProfilingConfig{Enabled: true, ProfileTypes: []string{"bogus"}})
	assert.Error(t, err)
	assert.False(t, IsProfilingEnabled())
}
