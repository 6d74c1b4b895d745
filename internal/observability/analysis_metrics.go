package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"relmap/internal/introspection"
	"relmap/internal/relationship"
)

// AnalysisMetrics holds custom metrics for relationship analysis.
type AnalysisMetrics struct {
	tableDuration     metric.Float64Histogram
	tableCounter      metric.Int64Counter
	errorCounter      metric.Int64Counter
	relationships     metric.Int64Counter
	ambiguous         metric.Int64Counter
	probeCounter      metric.Int64Counter
	graphDuration     metric.Float64Histogram
	cyclesHist        metric.Int64Histogram
	lastGraphUnixTime atomic.Int64
}

// InitAnalysisMetrics initializes relationship analysis metrics.
func InitAnalysisMetrics(logger *slog.Logger) (*AnalysisMetrics, error) {
	meter := otel.Meter("relmap")

	tableDuration, err := meter.Float64Histogram(
		"relmap.analysis.table.duration",
		metric.WithDescription("Duration of single-table relationship analysis in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create table duration histogram: %w", err)
	}

	tableCounter, err := meter.Int64Counter(
		"relmap.analysis.tables.total",
		metric.WithDescription("Total number of analyzed tables"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create table counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"relmap.analysis.errors.total",
		metric.WithDescription("Total number of failed table analyses, by schema error kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis error counter: %w", err)
	}

	relationships, err := meter.Int64Counter(
		"relmap.analysis.relationships.total",
		metric.WithDescription("Total number of emitted relationship descriptors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create relationship counter: %w", err)
	}

	ambiguous, err := meter.Int64Counter(
		"relmap.analysis.ambiguous.total",
		metric.WithDescription("Total number of descriptors emitted with an ambiguity"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ambiguity counter: %w", err)
	}

	probeCounter, err := meter.Int64Counter(
		"relmap.analysis.probes.total",
		metric.WithDescription("Total number of discriminator probe queries"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe counter: %w", err)
	}

	graphDuration, err := meter.Float64Histogram(
		"relmap.graph.build.duration",
		metric.WithDescription("Duration of relationship graph builds in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph duration histogram: %w", err)
	}

	cyclesHist, err := meter.Int64Histogram(
		"relmap.graph.cycles",
		metric.WithDescription("Number of reference cycles found per graph build"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cycles histogram: %w", err)
	}

	lastGraphGauge, err := meter.Int64ObservableGauge(
		"relmap.graph.last_success_unix",
		metric.WithDescription("Unix timestamp of the last successful graph build"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create last graph gauge: %w", err)
	}

	metrics := &AnalysisMetrics{
		tableDuration: tableDuration,
		tableCounter:  tableCounter,
		errorCounter:  errorCounter,
		relationships: relationships,
		ambiguous:     ambiguous,
		probeCounter:  probeCounter,
		graphDuration: graphDuration,
		cyclesHist:    cyclesHist,
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			value := metrics.lastGraphUnixTime.Load()
			if value > 0 {
				observer.ObserveInt64(lastGraphGauge, value)
			}
			return nil
		},
		lastGraphGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register last graph gauge callback: %w", err)
	}

	logger.Info("analysis metrics initialized")
	return metrics, nil
}

// RecordTable records one table analysis and the descriptors it produced.
func (m *AnalysisMetrics) RecordTable(ctx context.Context, table string, duration time.Duration, rels []relationship.Relationship, err error) {
	success := err == nil
	attrs := []attribute.KeyValue{attribute.Bool("success", success)}
	m.tableCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.tableDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if !success {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", errorKind(err))))
		return
	}

	for _, rel := range rels {
		relAttrs := metric.WithAttributes(
			attribute.String("kind", string(rel.Kind)),
			attribute.String("source", string(rel.Source)),
		)
		m.relationships.Add(ctx, 1, relAttrs)
		if rel.Ambiguity != nil {
			m.ambiguous.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", rel.Ambiguity.Reason)))
		}
	}
}

// RecordProbe records a discriminator probe query.
func (m *AnalysisMetrics) RecordProbe(ctx context.Context, err error) {
	outcome := "ok"
	if err != nil {
		outcome = errorKind(err)
	}
	m.probeCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordGraph records a graph build attempt.
func (m *AnalysisMetrics) RecordGraph(ctx context.Context, duration time.Duration, cycles int, err error) {
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	m.graphDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		return
	}
	m.cyclesHist.Record(ctx, int64(cycles))
	m.lastGraphUnixTime.Store(time.Now().Unix())
}

func errorKind(err error) string {
	var schemaErr *introspection.SchemaError
	if errors.As(err, &schemaErr) {
		return schemaErr.Kind.String()
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "other"
}
