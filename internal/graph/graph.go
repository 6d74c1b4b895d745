// Package graph builds the schema-wide relationship graph: every analyzed
// table's descriptors, linked to their inverses, with reference cycles flagged.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"relmap/internal/analyzer"
	"relmap/internal/observability"
	"relmap/internal/relationship"
)

// Graph is the result of one build. It is never cached between builds.
type Graph struct {
	RunID         string                                 `json:"runId"`
	BuiltAt       time.Time                              `json:"builtAt"`
	Tables        []string                               `json:"tables"`
	Relationships map[string][]relationship.Relationship `json:"relationships"`
	Cycles        [][]string                             `json:"cycles"`
}

// For returns the descriptors owned by table.
func (g *Graph) For(table string) []relationship.Relationship {
	return g.Relationships[table]
}

// Lookup finds a descriptor by its owning table and method name.
func (g *Graph) Lookup(table, method string) (relationship.Relationship, bool) {
	for _, rel := range g.Relationships[table] {
		if rel.MethodName == method {
			return rel, true
		}
	}
	return relationship.Relationship{}, false
}

// Count returns the total number of descriptors.
func (g *Graph) Count() int {
	total := 0
	for _, rels := range g.Relationships {
		total += len(rels)
	}
	return total
}

// ProgressFunc is called after each table finishes. Calls are serialized.
type ProgressFunc func(done, total int, table string)

// DefaultWorkers bounds concurrent table analyses when unset.
const DefaultWorkers = 4

// Builder builds relationship graphs with a bounded worker pool.
type Builder struct {
	analyzer *analyzer.Analyzer
	workers  int
	progress ProgressFunc
	metrics  *observability.AnalysisMetrics
	logger   *slog.Logger
	now      func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithWorkers sets the number of tables analyzed concurrently.
func WithWorkers(workers int) BuilderOption {
	return func(b *Builder) {
		b.workers = workers
	}
}

// WithProgress registers a per-table completion callback.
func WithProgress(fn ProgressFunc) BuilderOption {
	return func(b *Builder) {
		b.progress = fn
	}
}

// WithMetrics records build duration and cycle counts.
func WithMetrics(metrics *observability.AnalysisMetrics) BuilderOption {
	return func(b *Builder) {
		b.metrics = metrics
	}
}

// WithLogger sets the builder's logger.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithClock overrides the build timestamp source.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

// NewBuilder creates a graph builder over an analyzer.
func NewBuilder(a *analyzer.Analyzer, opts ...BuilderOption) *Builder {
	b := &Builder{
		analyzer: a,
		workers:  DefaultWorkers,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.workers <= 0 {
		b.workers = DefaultWorkers
	}
	return b
}

// Build analyzes every table not matched by the excluded glob patterns, links
// inverse descriptors and detects reference cycles. The first table failure
// cancels the remaining work and is returned.
func (b *Builder) Build(ctx context.Context, excluded []string) (*Graph, error) {
	ctx, span := otel.Tracer("relmap/graph").Start(ctx, "graph.build")
	defer span.End()

	start := time.Now()
	g, err := b.build(ctx, excluded)
	if b.metrics != nil {
		cycles := 0
		if g != nil {
			cycles = len(g.Cycles)
		}
		b.metrics.RecordGraph(ctx, time.Since(start), cycles, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("relmap.run_id", g.RunID),
		attribute.Int("relmap.tables", len(g.Tables)),
		attribute.Int("relmap.relationships", g.Count()),
		attribute.Int("relmap.cycles", len(g.Cycles)),
	)
	b.logger.Info("relationship graph built",
		slog.String("run_id", g.RunID),
		slog.Int("tables", len(g.Tables)),
		slog.Int("relationships", g.Count()),
		slog.Int("cycles", len(g.Cycles)),
		slog.Duration("duration", time.Since(start)),
	)
	return g, nil
}

func (b *Builder) build(ctx context.Context, excluded []string) (*Graph, error) {
	run, err := b.analyzer.NewRun(ctx, excluded...)
	if err != nil {
		return nil, err
	}
	tables := run.Tables()
	results := make([][]relationship.Relationship, len(tables))

	var (
		mu   sync.Mutex
		done int
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.workers)
	for i, name := range tables {
		eg.Go(func() error {
			rels, err := run.Analyze(egCtx, name)
			if err != nil {
				return fmt.Errorf("failed to analyze table %s: %w", name, err)
			}
			results[i] = rels
			if b.progress != nil {
				mu.Lock()
				done++
				b.progress(done, len(tables), name)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	byTable := make(map[string][]relationship.Relationship, len(tables))
	for i, name := range tables {
		byTable[name] = results[i]
	}

	g := &Graph{
		RunID:         uuid.NewString(),
		BuiltAt:       b.now().UTC(),
		Tables:        tables,
		Relationships: linkInverses(tables, byTable),
	}
	g.Cycles = DetectCycles(g)

	for _, key := range b.analyzer.Cascade().UnknownTables(tables) {
		b.logger.Warn("cascade policy names a table outside the graph, ignored", slog.String("key", key))
	}
	return g, nil
}
