package introspection

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"

	"relmap/internal/sqltype"
)

// Snapshot is a serializable copy of schema metadata plus optional sampled
// column values, keyed by table and then column.
type Snapshot struct {
	Tables  []Table                     `json:"tables"`
	Samples map[string]map[string][]any `json:"samples,omitempty"`
}

// LoadSnapshot reads a YAML or JSON snapshot file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema snapshot: %w", err)
	}
	var snapshot Snapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse schema snapshot %s: %w", path, err)
	}
	return &snapshot, nil
}

// WriteSnapshot stores a snapshot as YAML.
func WriteSnapshot(path string, snapshot *Snapshot) error {
	data, err := yaml.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode schema snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write schema snapshot: %w", err)
	}
	return nil
}

// Capture copies metadata for every table from intro. When sampleLimit is
// positive, distinct values of textual "*_type" columns are sampled too so
// polymorphic probing works offline.
func Capture(ctx context.Context, intro Introspector, sampleLimit int) (*Snapshot, error) {
	names, err := intro.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{}
	for _, name := range names {
		table, err := LoadTable(ctx, intro, name)
		if err != nil {
			return nil, fmt.Errorf("failed to capture table %s: %w", name, err)
		}
		snapshot.Tables = append(snapshot.Tables, table)

		if sampleLimit <= 0 {
			continue
		}
		for _, col := range table.Columns {
			if !strings.HasSuffix(col.Name, "_type") || !col.Type.IsTextual() {
				continue
			}
			values, err := intro.DistinctValues(ctx, name, col.Name, sampleLimit)
			if err != nil {
				return nil, fmt.Errorf("failed to sample %s.%s: %w", name, col.Name, err)
			}
			if snapshot.Samples == nil {
				snapshot.Samples = make(map[string]map[string][]any)
			}
			if snapshot.Samples[name] == nil {
				snapshot.Samples[name] = make(map[string][]any)
			}
			snapshot.Samples[name][col.Name] = values
		}
	}
	return snapshot, nil
}

// Static serves a Snapshot from memory.
type Static struct {
	names   []string
	tables  map[string]Table
	samples map[string]map[string][]any
}

var _ Introspector = (*Static)(nil)

// NewStatic indexes a snapshot. Later tables with a duplicate name replace earlier ones.
func NewStatic(snapshot *Snapshot) *Static {
	s := &Static{
		tables:  make(map[string]Table),
		samples: make(map[string]map[string][]any),
	}
	if snapshot == nil {
		return s
	}
	for _, table := range snapshot.Tables {
		if _, exists := s.tables[table.Name]; !exists {
			s.names = append(s.names, table.Name)
		}
		table.Columns = markPrimaryKey(table.Columns, table.PrimaryKey)
		for i, col := range table.Columns {
			// Hand-written snapshots may omit the semantic type.
			if col.Type == sqltype.TypeString && col.DataType != "" {
				table.Columns[i].Type = sqltype.Map(col.DataType)
			}
		}
		s.tables[table.Name] = table
	}
	sort.Strings(s.names)
	for table, columns := range snapshot.Samples {
		s.samples[table] = columns
	}
	return s
}

func (s *Static) table(op, name string) (Table, error) {
	table, ok := s.tables[name]
	if !ok {
		return Table{}, notFound(op, name, nil)
	}
	return table, nil
}

func (s *Static) ListTables(context.Context) ([]string, error) {
	return append([]string(nil), s.names...), nil
}

func (s *Static) Columns(_ context.Context, name string) (Columns, error) {
	table, err := s.table("get columns for", name)
	if err != nil {
		return nil, err
	}
	return append(Columns(nil), table.Columns...), nil
}

func (s *Static) Indexes(_ context.Context, name string) ([]Index, error) {
	table, err := s.table("get indexes for", name)
	if err != nil {
		return nil, err
	}
	return append([]Index(nil), table.Indexes...), nil
}

func (s *Static) ForeignKeys(_ context.Context, name string) ([]ForeignKeyConstraint, error) {
	table, err := s.table("get foreign keys for", name)
	if err != nil {
		return nil, err
	}
	return append([]ForeignKeyConstraint(nil), table.ForeignKeys...), nil
}

func (s *Static) PrimaryKey(_ context.Context, name string) ([]string, error) {
	table, err := s.table("get primary key for", name)
	if err != nil {
		return nil, err
	}
	if len(table.PrimaryKey) == 0 {
		return nil, nil
	}
	return append([]string(nil), table.PrimaryKey...), nil
}

func (s *Static) UniqueColumns(_ context.Context, name string) ([]string, error) {
	table, err := s.table("get unique columns for", name)
	if err != nil {
		return nil, err
	}
	return uniqueColumnsFromIndexes(table.Indexes), nil
}

func (s *Static) HasColumn(_ context.Context, name, column string) (bool, error) {
	table, err := s.table("check column of", name)
	if err != nil {
		return false, err
	}
	return table.Columns.Has(column), nil
}

// DistinctValues answers from sampled values. A table without any samples
// is Unsupported, since the snapshot cannot tell "no rows" from "not sampled".
func (s *Static) DistinctValues(_ context.Context, name, column string, limit int) ([]any, error) {
	table, err := s.table("distinct values of", name)
	if err != nil {
		return nil, err
	}
	if !table.Columns.Has(column) {
		return nil, notFound("distinct values of", name, fmt.Errorf("column %q does not exist", column))
	}
	columns, ok := s.samples[name]
	if !ok {
		return nil, unsupported("distinct values of", name, fmt.Errorf("snapshot has no samples for table"))
	}
	if limit <= 0 {
		limit = DefaultProbeLimit
	}

	var values []any
	seen := make(map[string]struct{})
	for _, value := range columns[column] {
		if value == nil {
			continue
		}
		key := fmt.Sprint(value)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		values = append(values, value)
		if len(values) == limit {
			break
		}
	}
	return values, nil
}
