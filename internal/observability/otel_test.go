package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"relmap/internal/introspection"
	"relmap/internal/relationship"
)

func TestInitMeterProvider(t *testing.T) {
	mp, err := InitMeterProvider(Config{
		ServiceName:    "relmap-test",
		ServiceVersion: "1.0.0",
		Environment:    "test",
	})
	require.NoError(t, err)
	require.NotNil(t, mp.Registry())

	families, err := mp.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families, "go and process collectors should be registered")

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	assert.NoError(t, mp.Shutdown(context.Background(), logger))
}

func TestAnalysisMetricsExportedThroughRegistry(t *testing.T) {
	mp, err := InitMeterProvider(Config{ServiceName: "relmap-test"})
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	defer func() { _ = mp.Shutdown(context.Background(), logger) }()

	metrics, err := InitAnalysisMetrics(logger)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordTable(ctx, "posts", 3*time.Millisecond, []relationship.Relationship{
		{Kind: relationship.KindDirectReference, Source: relationship.SourceDetected},
	}, nil)
	metrics.RecordTable(ctx, "ghost", time.Millisecond, nil,
		&introspection.SchemaError{Kind: introspection.KindNotFound, Table: "ghost"})
	metrics.RecordProbe(ctx, nil)
	metrics.RecordGraph(ctx, 10*time.Millisecond, 2, nil)

	path := filepath.Join(t.TempDir(), "relmap.prom")
	require.NoError(t, mp.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "relmap_analysis_tables_total")
	assert.Contains(t, text, "relmap_analysis_relationships_total")
	assert.Contains(t, text, `kind="not found"`)
	assert.Contains(t, text, "relmap_graph_last_success_unix")
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "canceled", errorKind(context.Canceled))
	assert.Equal(t, "other", errorKind(errors.New("boom")))
	wrapped := fmt.Errorf("wrap: %w", &introspection.SchemaError{Kind: introspection.KindConnectionFailed})
	assert.Equal(t, "connection failed", errorKind(wrapped))
}

func TestParseOTLPProtocol(t *testing.T) {
	p, err := parseOTLPProtocol("")
	require.NoError(t, err)
	assert.Equal(t, otlpProtocolGRPC, p)

	p, err = parseOTLPProtocol(" HTTP ")
	require.NoError(t, err)
	assert.Equal(t, otlpProtocolHTTP, p)

	_, err = parseOTLPProtocol("udp")
	assert.ErrorContains(t, err, "unsupported OTLP protocol")
}

func TestResolveExporterSettings(t *testing.T) {
	s, err := resolveExporterSettings(OTLPExporterConfig{
		Endpoint:         "https://collector:4318",
		Insecure:         true,
		Compression:      "gzip",
		RetryEnabled:     true,
		RetryMaxAttempts: 0,
	})
	require.NoError(t, err)
	assert.True(t, s.url)
	assert.Nil(t, s.tls)
	assert.True(t, s.gzip)
	assert.False(t, s.retry, "retry needs a positive attempt budget")

	s, err = resolveExporterSettings(OTLPExporterConfig{Endpoint: "collector:4317"})
	require.NoError(t, err)
	assert.False(t, s.url)
	require.NotNil(t, s.tls)

	opts, err := grpcTraceOptions(OTLPExporterConfig{Endpoint: "collector:4317", Insecure: true, Timeout: time.Second})
	require.NoError(t, err)
	assert.Len(t, opts, 3)
}

func TestBuildTLSConfig_FileNotFound(t *testing.T) {
	// Missing CA file should surface a clear error.
	_, err := buildTLSConfig(OTLPExporterConfig{
		TLSCertFile: "/nonexistent/ca.pem",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read OTLP TLS CA file")
}

func TestBuildTLSConfig_InvalidCertFormat(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/ca.pem"

	// Write a non-PEM payload to trigger parse failure.
	require.NoError(t, os.WriteFile(path, []byte("not-a-cert"), 0600))

	_, err := buildTLSConfig(OTLPExporterConfig{
		TLSCertFile: path,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse OTLP TLS CA file")
}

func TestBuildTLSConfig_MissingClientKeyPair(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/client.crt"

	// Only set the cert path to ensure missing key is rejected.
	require.NoError(t, os.WriteFile(path, []byte("not-a-cert"), 0600))

	_, err := buildTLSConfig(OTLPExporterConfig{
		TLSClientCertFile: path,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OTLP TLS client cert and key must both be set")
}

func TestTraceSamplerForRatio_Boundaries(t *testing.T) {
	never := traceSamplerForRatio(0)
	always := traceSamplerForRatio(1)

	decisionNever := never.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{1},
		Name:          "test",
	}).Decision
	assert.Equal(t, sdktrace.Drop, decisionNever)

	decisionAlways := always.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{2},
		Name:          "test",
	}).Decision
	assert.Equal(t, sdktrace.RecordAndSample, decisionAlways)
}

func TestTraceSamplerForRatio_ParentAwareMidRange(t *testing.T) {
	sampler := traceSamplerForRatio(0.5)

	parentSampled := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{3},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))
	decisionSampledParent := sampler.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: parentSampled,
		TraceID:       trace.TraceID{4},
		Name:          "child",
	}).Decision
	assert.Equal(t, sdktrace.RecordAndSample, decisionSampledParent)

	parentNotSampled := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{5},
		SpanID:  trace.SpanID{2},
		Remote:  true,
	}))
	decisionUnsampledParent := sampler.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: parentNotSampled,
		TraceID:       trace.TraceID{6},
		Name:          "child",
	}).Decision
	assert.Equal(t, sdktrace.Drop, decisionUnsampledParent)
}
