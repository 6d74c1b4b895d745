// Package analyzer infers relationship descriptors for a table from schema
// metadata: direct references, inverse collections, many-to-many paths through
// junction tables and polymorphic pairs. Each pass takes the descriptors found
// so far and returns a new slice.
package analyzer

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"relmap/internal/introspection"
	"relmap/internal/junction"
	"relmap/internal/naming"
	"relmap/internal/observability"
	"relmap/internal/override"
	"relmap/internal/relationship"
	"relmap/internal/schemafilter"
)

// ProbeConfig controls sampling of polymorphic type columns.
type ProbeConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Limit caps the distinct values read per type column.
	Limit int `mapstructure:"limit"`
}

// Config holds analysis options.
type Config struct {
	Probe    ProbeConfig     `mapstructure:"probe"`
	Junction junction.Config `mapstructure:"junction"`
}

// DefaultConfig returns analysis defaults: probing off, conventional pivot columns.
func DefaultConfig() Config {
	return Config{
		Probe:    ProbeConfig{Limit: introspection.DefaultProbeLimit},
		Junction: junction.DefaultConfig(),
	}
}

// Analyzer infers relationships from an Introspector.
type Analyzer struct {
	intro     introspection.Introspector
	namer     *naming.Namer
	config    Config
	filter    schemafilter.Config
	overrides override.Set
	cascade   override.CascadePolicy
	metrics   *observability.AnalysisMetrics
	logger    *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithFilter excludes tables from analysis and from being related to.
func WithFilter(filter schemafilter.Config) Option {
	return func(a *Analyzer) {
		a.filter = filter
	}
}

// WithOverrides merges declared descriptors over detected ones.
func WithOverrides(set override.Set) Option {
	return func(a *Analyzer) {
		a.overrides = set
	}
}

// WithCascadePolicy applies declared cascade rules after the merge.
func WithCascadePolicy(policy override.CascadePolicy) Option {
	return func(a *Analyzer) {
		a.cascade = policy
	}
}

// WithMetrics records per-table and probe measurements.
func WithMetrics(metrics *observability.AnalysisMetrics) Option {
	return func(a *Analyzer) {
		a.metrics = metrics
	}
}

// WithLogger sets the logger used for warnings about collisions and policies.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// New creates an Analyzer. A nil namer uses naming defaults.
func New(intro introspection.Introspector, namer *naming.Namer, cfg Config, opts ...Option) *Analyzer {
	if cfg.Probe.Limit <= 0 {
		cfg.Probe.Limit = introspection.DefaultProbeLimit
	}
	a := &Analyzer{
		intro:  intro,
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if namer == nil {
		namer = naming.New(naming.DefaultConfig(), a.logger)
	}
	a.namer = namer
	return a
}

// Config returns the analyzer's configuration.
func (a *Analyzer) Config() Config {
	return a.config
}

// Cascade returns the configured cascade policy.
func (a *Analyzer) Cascade() override.CascadePolicy {
	return a.cascade
}

// Analyze returns the relationship descriptors of one table. The table must
// exist and not be excluded; otherwise the error matches introspection.ErrNotFound.
func (a *Analyzer) Analyze(ctx context.Context, table string) ([]relationship.Relationship, error) {
	run, err := a.NewRun(ctx)
	if err != nil {
		return nil, err
	}
	return run.Analyze(ctx, table)
}

// Analyze runs every pass for one table within the run.
func (r *Run) Analyze(ctx context.Context, table string) ([]relationship.Relationship, error) {
	ctx, span := otel.Tracer("relmap/analyzer").Start(ctx, "analyzer.analyze")
	span.SetAttributes(attribute.String("db.table", table))
	defer span.End()

	start := time.Now()
	rels, err := r.analyze(ctx, table)
	if r.analyzer.metrics != nil {
		r.analyzer.metrics.RecordTable(ctx, table, time.Since(start), rels, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("relmap.relationships", len(rels)))
	return rels, nil
}

func (r *Run) analyze(ctx context.Context, name string) ([]relationship.Relationship, error) {
	if !r.known[name] {
		return nil, &introspection.SchemaError{Kind: introspection.KindNotFound, Op: "analyze", Table: name}
	}
	focal, err := r.table(ctx, name)
	if err != nil {
		return nil, err
	}
	tables, err := r.allTables(ctx)
	if err != nil {
		return nil, err
	}

	var rels []relationship.Relationship
	rels = r.directReferences(focal, rels)
	rels = r.morphReferences(focal, rels)
	rels = r.inverseCollections(focal, tables, rels)
	rels = r.manyToMany(focal, tables, rels)
	if rels, err = r.resolveMorphTargets(ctx, focal, tables, rels); err != nil {
		return nil, err
	}
	if rels, err = r.morphCollections(ctx, focal, tables, rels); err != nil {
		return nil, err
	}
	rels = r.disambiguate(focal, rels)
	rels = override.Merge(rels, r.analyzer.overrides.For(name))
	return r.applyCascade(name, rels), nil
}

func (r *Run) applyCascade(table string, rels []relationship.Relationship) []relationship.Relationship {
	if len(r.analyzer.cascade) == 0 {
		return rels
	}
	rels, unmatched := r.analyzer.cascade.Apply(table, rels)
	for _, key := range unmatched {
		r.analyzer.logger.Warn("cascade policy names no collection relationship, ignored",
			slog.String("table", table),
			slog.String("key", key),
		)
	}
	return rels
}

// extend returns a new slice holding acc followed by found.
func extend(acc []relationship.Relationship, found ...relationship.Relationship) []relationship.Relationship {
	out := make([]relationship.Relationship, 0, len(acc)+len(found))
	out = append(out, acc...)
	return append(out, found...)
}
