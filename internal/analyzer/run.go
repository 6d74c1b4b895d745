package analyzer

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"relmap/internal/introspection"
	"relmap/internal/schemafilter"
)

// Run is one analysis pass over a fixed table list. Table metadata and probe
// results are loaded at most once per run and shared by concurrent callers.
type Run struct {
	analyzer *Analyzer
	tables   []string
	known    map[string]bool

	mu     sync.Mutex
	loaded map[string]*tableEntry
	probes map[probeKey]*probeEntry
}

type tableEntry struct {
	once  sync.Once
	table introspection.Table
	err   error
}

type probeKey struct {
	table  string
	column string
}

type probeEntry struct {
	once   sync.Once
	values []any
	err    error
}

// NewRun lists tables once and applies the configured filter plus any extra
// excluded glob patterns.
func (a *Analyzer) NewRun(ctx context.Context, excluded ...string) (*Run, error) {
	names, err := a.intro.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	allowed := schemafilter.Apply(names, a.filter.WithDenied(excluded...))
	slices.Sort(allowed)

	known := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		known[name] = true
	}
	return &Run{
		analyzer: a,
		tables:   allowed,
		known:    known,
		loaded:   make(map[string]*tableEntry, len(allowed)),
		probes:   make(map[probeKey]*probeEntry),
	}, nil
}

// Tables returns the analyzed table names in sorted order.
func (r *Run) Tables() []string {
	return slices.Clone(r.tables)
}

func (r *Run) table(ctx context.Context, name string) (introspection.Table, error) {
	r.mu.Lock()
	entry, ok := r.loaded[name]
	if !ok {
		entry = &tableEntry{}
		r.loaded[name] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.table, entry.err = introspection.LoadTable(ctx, r.analyzer.intro, name)
	})
	return entry.table, entry.err
}

// allTables loads every analyzed table, in table order.
func (r *Run) allTables(ctx context.Context) ([]introspection.Table, error) {
	tables := make([]introspection.Table, 0, len(r.tables))
	for _, name := range r.tables {
		table, err := r.table(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load table %s: %w", name, err)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// distinctValues samples a type column once per run.
func (r *Run) distinctValues(ctx context.Context, table, column string) ([]any, error) {
	key := probeKey{table: table, column: column}
	r.mu.Lock()
	entry, ok := r.probes[key]
	if !ok {
		entry = &probeEntry{}
		r.probes[key] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.values, entry.err = r.analyzer.intro.DistinctValues(ctx, table, column, r.analyzer.config.Probe.Limit)
		if r.analyzer.metrics != nil {
			r.analyzer.metrics.RecordProbe(ctx, entry.err)
		}
	})
	return entry.values, entry.err
}
