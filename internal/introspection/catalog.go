package introspection

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"relmap/internal/sqltype"
)

// DefaultProbeLimit bounds DistinctValues when the caller passes no limit.
const DefaultProbeLimit = 100

// Catalog is an Introspector backed by a live database's metadata catalog.
type Catalog struct {
	db      Queryer
	dialect Dialect
	schema  string
	timeout time.Duration
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithSchema restricts introspection to a named schema (database on MySQL,
// owner on Oracle). Empty uses the connection's current schema.
func WithSchema(schema string) CatalogOption {
	return func(c *Catalog) {
		c.schema = schema
	}
}

// WithQueryTimeout bounds every catalog and probe query.
func WithQueryTimeout(timeout time.Duration) CatalogOption {
	return func(c *Catalog) {
		c.timeout = timeout
	}
}

// NewCatalog creates a catalog introspector for the given dialect.
func NewCatalog(db Queryer, dialect Dialect, opts ...CatalogOption) *Catalog {
	c := &Catalog{db: db, dialect: dialect}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Introspector = (*Catalog)(nil)

// Dialect returns the catalog's dialect.
func (c *Catalog) Dialect() Dialect {
	return c.dialect
}

func (c *Catalog) query(ctx context.Context, query string, args ...any) (*sql.Rows, context.CancelFunc, error) {
	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return rows, cancel, nil
}

func (c *Catalog) spanAttrs(table string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", c.dialect.Name()),
		attribute.String("db.schema", c.schema),
	}
	if table != "" {
		attrs = append(attrs, attribute.String("db.table", table))
	}
	return attrs
}

// ListTables returns base table names in sorted order.
func (c *Catalog) ListTables(ctx context.Context) ([]string, error) {
	ctx, span := startSpan(ctx, "introspection.list_tables", c.spanAttrs("")...)
	defer span.End()

	tables, err := c.scanStrings(ctx, c.dialect.TablesQuery(), c.schema)
	if err != nil {
		err = queryFailed("list tables", "", err)
		recordSpanError(span, err)
		return nil, err
	}
	return tables, nil
}

// Columns returns the table's columns in ordinal order.
func (c *Catalog) Columns(ctx context.Context, table string) (Columns, error) {
	ctx, span := startSpan(ctx, "introspection.get_columns", c.spanAttrs(table)...)
	defer span.End()

	columns, err := c.getColumns(ctx, table)
	if err != nil {
		err = queryFailed("get columns for", table, err)
		recordSpanError(span, err)
		return nil, err
	}
	if len(columns) == 0 {
		err = notFound("get columns for", table, nil)
		recordSpanError(span, err)
		return nil, err
	}
	return columns, nil
}

func (c *Catalog) getColumns(ctx context.Context, table string) (Columns, error) {
	rows, cancel, err := c.query(ctx, c.dialect.ColumnsQuery(), c.schema, table)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer func() {
		_ = rows.Close()
	}()

	var columns Columns
	for rows.Next() {
		var col Column
		var columnType, isNullable sql.NullString
		var columnDefault, extra, comment sql.NullString
		var maxLength sql.NullInt64
		if err := rows.Scan(&col.Name, &col.DataType, &columnType, &isNullable, &columnDefault, &extra, &maxLength, &comment); err != nil {
			return nil, err
		}
		col.ColumnType = columnType.String
		col.Type = sqltype.Map(col.DataType)
		col.Nullable = strings.EqualFold(strings.TrimSpace(isNullable.String), "YES")
		if columnDefault.Valid {
			col.HasDefault = true
			col.Default = strings.TrimSpace(columnDefault.String)
		}
		extraLower := strings.ToLower(extra.String)
		col.AutoIncrement = strings.Contains(extraLower, "auto_increment") || strings.Contains(extraLower, "identity")
		if maxLength.Valid && maxLength.Int64 > 0 {
			col.MaxLength = maxLength.Int64
		}
		col.Comment = trimComment(comment)
		if col.Type == sqltype.TypeEnum {
			values, err := parseEnumValues(col.ColumnType)
			if err != nil {
				slog.Default().Warn("failed to parse enum values",
					slog.String("table", table),
					slog.String("column", col.Name),
					slog.String("type", col.ColumnType),
					slog.String("error", err.Error()),
				)
			} else {
				col.EnumValues = values
			}
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return columns, nil
}

// ensureTable turns an empty per-table result into NotFound when the table is missing.
func (c *Catalog) ensureTable(ctx context.Context, op, table string) error {
	columns, err := c.getColumns(ctx, table)
	if err != nil {
		return queryFailed(op, table, err)
	}
	if len(columns) == 0 {
		return notFound(op, table, nil)
	}
	return nil
}

// Indexes returns the table's indexes with columns in key order.
func (c *Catalog) Indexes(ctx context.Context, table string) ([]Index, error) {
	ctx, span := startSpan(ctx, "introspection.get_indexes", c.spanAttrs(table)...)
	defer span.End()

	indexes, err := c.getIndexes(ctx, table)
	if err == nil && len(indexes) == 0 {
		err = c.ensureTable(ctx, "get indexes for", table)
	}
	if err != nil {
		err = queryFailed("get indexes for", table, err)
		recordSpanError(span, err)
		return nil, err
	}
	return indexes, nil
}

func (c *Catalog) getIndexes(ctx context.Context, table string) ([]Index, error) {
	rows, cancel, err := c.query(ctx, c.dialect.IndexesQuery(), c.schema, table)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer func() {
		_ = rows.Close()
	}()

	var indexes []Index
	positions := make(map[string]int)
	for rows.Next() {
		var name string
		var unique, primary any
		var column sql.NullString
		var seq int
		if err := rows.Scan(&name, &unique, &primary, &column, &seq); err != nil {
			return nil, err
		}
		if !column.Valid {
			// Expression index parts have no column name.
			continue
		}
		pos, ok := positions[name]
		if !ok {
			pos = len(indexes)
			positions[name] = pos
			indexes = append(indexes, Index{
				Name:    name,
				Unique:  truthy(unique),
				Primary: truthy(primary),
			})
		}
		indexes[pos].Columns = append(indexes[pos].Columns, column.String)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range indexes {
		if indexes[i].Primary {
			indexes[i].Unique = true
		}
	}
	return indexes, nil
}

// ForeignKeys returns the table's foreign key constraints.
func (c *Catalog) ForeignKeys(ctx context.Context, table string) ([]ForeignKeyConstraint, error) {
	ctx, span := startSpan(ctx, "introspection.get_foreign_keys", c.spanAttrs(table)...)
	defer span.End()

	fks, err := c.getForeignKeys(ctx, table)
	if err == nil && len(fks) == 0 {
		err = c.ensureTable(ctx, "get foreign keys for", table)
	}
	if err != nil {
		err = queryFailed("get foreign keys for", table, err)
		recordSpanError(span, err)
		return nil, err
	}
	return fks, nil
}

func (c *Catalog) getForeignKeys(ctx context.Context, table string) ([]ForeignKeyConstraint, error) {
	rows, cancel, err := c.query(ctx, c.dialect.ForeignKeysQuery(), c.schema, table)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer func() {
		_ = rows.Close()
	}()

	var fkRows []foreignKeyRow
	for rows.Next() {
		var row foreignKeyRow
		var deleteRule, updateRule sql.NullString
		if err := rows.Scan(&row.ConstraintName, &row.ColumnName, &row.ReferencedTable, &row.ReferencedColumn, &row.OrdinalPosition, &deleteRule, &updateRule); err != nil {
			return nil, err
		}
		row.DeleteRule = deleteRule.String
		row.UpdateRule = updateRule.String
		fkRows = append(fkRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groupForeignKeys(fkRows), nil
}

// PrimaryKey returns the primary key columns in key order, or nil.
func (c *Catalog) PrimaryKey(ctx context.Context, table string) ([]string, error) {
	ctx, span := startSpan(ctx, "introspection.get_primary_key", c.spanAttrs(table)...)
	defer span.End()

	columns, err := c.scanStrings(ctx, c.dialect.PrimaryKeyQuery(), c.schema, table)
	if err == nil && len(columns) == 0 {
		err = c.ensureTable(ctx, "get primary key for", table)
	}
	if err != nil {
		err = queryFailed("get primary key for", table, err)
		recordSpanError(span, err)
		return nil, err
	}
	return columns, nil
}

// UniqueColumns returns columns covered alone by a unique or primary index.
func (c *Catalog) UniqueColumns(ctx context.Context, table string) ([]string, error) {
	indexes, err := c.Indexes(ctx, table)
	if err != nil {
		return nil, err
	}
	return uniqueColumnsFromIndexes(indexes), nil
}

// HasColumn reports whether the table has the named column.
func (c *Catalog) HasColumn(ctx context.Context, table, column string) (bool, error) {
	columns, err := c.Columns(ctx, table)
	if err != nil {
		return false, err
	}
	return columns.Has(column), nil
}

// DistinctValues samples distinct non-null values of a column.
// Byte slices are returned as strings.
func (c *Catalog) DistinctValues(ctx context.Context, table, column string, limit int) ([]any, error) {
	ctx, span := startSpan(ctx, "introspection.distinct_values",
		append(c.spanAttrs(table), attribute.String("db.column", column), attribute.Int("probe.limit", limit))...,
	)
	defer span.End()

	if limit <= 0 {
		limit = DefaultProbeLimit
	}
	ok, err := c.HasColumn(ctx, table, column)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	if !ok {
		err = notFound("distinct values of", table, fmt.Errorf("column %q does not exist", column))
		recordSpanError(span, err)
		return nil, err
	}

	query, args, err := c.dialect.DistinctValuesQuery(c.schema, table, column, limit)
	if err != nil {
		err = unsupported("distinct values of", table, err)
		recordSpanError(span, err)
		return nil, err
	}

	values, err := c.scanValues(ctx, query, args...)
	if err != nil {
		err = queryFailed("distinct values of", table, err)
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("probe.values", len(values)))
	return values, nil
}

func (c *Catalog) scanStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, cancel, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer func() {
		_ = rows.Close()
	}()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

func (c *Catalog) scanValues(ctx context.Context, query string, args ...any) ([]any, error) {
	rows, cancel, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer func() {
		_ = rows.Close()
	}()

	var values []any
	for rows.Next() {
		var value any
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		if b, ok := value.([]byte); ok {
			value = string(b)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

// truthy interprets the boolean-ish values drivers return for flag columns.
func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case int64:
		return val != 0
	case int32:
		return val != 0
	case int:
		return val != 0
	case float64:
		return val != 0
	case []byte:
		return truthy(string(val))
	case string:
		s := strings.TrimSpace(strings.ToLower(val))
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
		return s == "y" || s == "yes"
	default:
		return false
	}
}
