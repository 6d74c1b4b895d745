// Package introspection provides a read-only view of database schema metadata:
// tables, columns, indexes, foreign keys and sampled column values. It abstracts
// over the metadata catalogs of the supported engines and over offline snapshots.
package introspection

import (
	"context"
	"database/sql"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"relmap/internal/sqltype"
)

// Column represents a database column
type Column struct {
	Name          string       `json:"name"`
	DataType      string       `json:"dataType"`
	ColumnType    string       `json:"columnType,omitempty"`
	Type          sqltype.Type `json:"type"`
	Nullable      bool         `json:"nullable"`
	IsPrimaryKey  bool         `json:"primaryKey,omitempty"`
	AutoIncrement bool         `json:"autoIncrement,omitempty"`
	HasDefault    bool         `json:"hasDefault,omitempty"`
	Default       string       `json:"default,omitempty"`
	MaxLength     int64        `json:"maxLength,omitempty"`
	EnumValues    []string     `json:"enumValues,omitempty"`
	Comment       string       `json:"comment,omitempty"`
}

// Columns is an ordered column list with lookup by name.
type Columns []Column

// Lookup returns the column with the given name.
func (c Columns) Lookup(name string) (Column, bool) {
	for _, col := range c {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// Has reports whether a column with the given name exists.
func (c Columns) Has(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// Names returns column names in declaration order.
func (c Columns) Names() []string {
	names := make([]string, len(c))
	for i, col := range c {
		names[i] = col.Name
	}
	return names
}

// Index represents a database index with ordered columns.
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique,omitempty"`
	Primary bool     `json:"primary,omitempty"`
}

// Covers reports whether the index spans exactly the given columns, in any order.
func (i Index) Covers(columns ...string) bool {
	if len(i.Columns) != len(columns) {
		return false
	}
	want := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		want[col] = struct{}{}
	}
	for _, col := range i.Columns {
		if _, ok := want[col]; !ok {
			return false
		}
		delete(want, col)
	}
	return len(want) == 0
}

// Table represents a database table
type Table struct {
	Name        string                 `json:"name"`
	Columns     Columns                `json:"columns"`
	Indexes     []Index                `json:"indexes,omitempty"`
	ForeignKeys []ForeignKeyConstraint `json:"foreignKeys,omitempty"`
	PrimaryKey  []string               `json:"primaryKey,omitempty"`
}

// UniquelyConstrained reports whether some unique or primary index spans
// exactly the given columns.
func (t Table) UniquelyConstrained(columns ...string) bool {
	for _, idx := range t.Indexes {
		if (idx.Unique || idx.Primary) && idx.Covers(columns...) {
			return true
		}
	}
	return false
}

// ForeignKeyOn returns the constraint whose local columns start with column.
func (t Table) ForeignKeyOn(column string) (ForeignKeyConstraint, bool) {
	for _, fk := range t.ForeignKeys {
		if len(fk.Columns) > 0 && fk.Columns[0] == column {
			return fk, true
		}
	}
	return ForeignKeyConstraint{}, false
}

// IsForeignKeyColumn reports whether column participates in any foreign key.
func (t Table) IsForeignKeyColumn(column string) bool {
	for _, fk := range t.ForeignKeys {
		for _, col := range fk.Columns {
			if col == column {
				return true
			}
		}
	}
	return false
}

// Introspector is the uniform read-only view of a database schema.
// Every method fails with a *SchemaError rather than returning empty data.
type Introspector interface {
	// ListTables returns base table names in sorted order.
	ListTables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) (Columns, error)
	Indexes(ctx context.Context, table string) ([]Index, error)
	ForeignKeys(ctx context.Context, table string) ([]ForeignKeyConstraint, error)
	// PrimaryKey returns nil when the table has no primary key.
	PrimaryKey(ctx context.Context, table string) ([]string, error)
	// UniqueColumns returns the columns that are unique on their own.
	UniqueColumns(ctx context.Context, table string) ([]string, error)
	// DistinctValues samples at most limit distinct non-null values of a column.
	DistinctValues(ctx context.Context, table, column string, limit int) ([]any, error)
	HasColumn(ctx context.Context, table, column string) (bool, error)
}

// Queryer provides query access for schema introspection.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// LoadTable assembles the full metadata for one table.
func LoadTable(ctx context.Context, intro Introspector, name string) (Table, error) {
	ctx, span := startSpan(ctx, "introspection.load_table", attribute.String("db.table", name))
	defer span.End()

	columns, err := intro.Columns(ctx, name)
	if err != nil {
		recordSpanError(span, err)
		return Table{}, err
	}
	indexes, err := intro.Indexes(ctx, name)
	if err != nil {
		recordSpanError(span, err)
		return Table{}, err
	}
	foreignKeys, err := intro.ForeignKeys(ctx, name)
	if err != nil {
		recordSpanError(span, err)
		return Table{}, err
	}
	primaryKey, err := intro.PrimaryKey(ctx, name)
	if err != nil {
		recordSpanError(span, err)
		return Table{}, err
	}

	return Table{
		Name:        name,
		Columns:     markPrimaryKey(columns, primaryKey),
		Indexes:     indexes,
		ForeignKeys: foreignKeys,
		PrimaryKey:  primaryKey,
	}, nil
}

// uniqueColumnsFromIndexes returns columns covered alone by a unique or primary index.
func uniqueColumnsFromIndexes(indexes []Index) []string {
	var unique []string
	seen := make(map[string]struct{})
	for _, idx := range indexes {
		if !(idx.Unique || idx.Primary) || len(idx.Columns) != 1 {
			continue
		}
		if _, ok := seen[idx.Columns[0]]; ok {
			continue
		}
		seen[idx.Columns[0]] = struct{}{}
		unique = append(unique, idx.Columns[0])
	}
	return unique
}

func markPrimaryKey(columns Columns, primaryKey []string) Columns {
	marked := make(Columns, len(columns))
	copy(marked, columns)
	for i := range marked {
		for _, pk := range primaryKey {
			if marked[i].Name == pk {
				marked[i].IsPrimaryKey = true
				break
			}
		}
	}
	return marked
}

func trimComment(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	return strings.TrimSpace(s.String)
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("relmap/introspection")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
