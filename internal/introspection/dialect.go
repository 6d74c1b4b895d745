package introspection

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Dialect supplies engine-specific catalog queries.
//
// Every metadata query takes the schema as its first argument (empty selects
// the connection's current schema) and, except for TablesQuery, the table name
// as its second. Result rows share one shape across engines:
//
//	TablesQuery:      table_name
//	ColumnsQuery:     name, data_type, column_type, is_nullable, default, extra, max_length, comment
//	PrimaryKeyQuery:  column_name
//	ForeignKeysQuery: constraint, column, referenced_table, referenced_column, ordinal, delete_rule, update_rule
//	IndexesQuery:     index_name, is_unique, is_primary, column_name, seq
type Dialect interface {
	Name() string
	TablesQuery() string
	ColumnsQuery() string
	PrimaryKeyQuery() string
	ForeignKeysQuery() string
	IndexesQuery() string
	// DistinctValuesQuery builds a bounded probe for non-null distinct values.
	DistinctValuesQuery(schema, table, column string, limit int) (string, []any, error)
}

// DialectFor returns the dialect for a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "mysql", "tidb":
		return MySQLDialect{}, nil
	case "postgres", "postgresql", "pgx":
		return PostgresDialect{}, nil
	case "sqlserver", "mssql":
		return SQLServerDialect{}, nil
	case "oracle":
		return OracleDialect{}, nil
	default:
		return nil, unsupported("dialect", "", fmt.Errorf("driver %q has no catalog dialect", driver))
	}
}

var (
	_ Dialect = MySQLDialect{}
	_ Dialect = PostgresDialect{}
	_ Dialect = SQLServerDialect{}
	_ Dialect = OracleDialect{}
)

// distinctSelect is the probe shape shared by all engines.
func distinctSelect(quote func(string) string, qualified, column string) sq.SelectBuilder {
	quoted := quote(column)
	return sq.Select(quoted).
		Distinct().
		From(qualified).
		Where(sq.NotEq{quoted: nil})
}
