package introspection

import (
	sq "github.com/Masterminds/squirrel"

	"relmap/internal/sqlutil"
)

// MySQLDialect reads INFORMATION_SCHEMA on MySQL and TiDB.
type MySQLDialect struct{}

func (MySQLDialect) Name() string { return "mysql" }

func (MySQLDialect) TablesQuery() string {
	return `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())
		AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`
}

func (MySQLDialect) ColumnsQuery() string {
	return `
		SELECT
			COLUMN_NAME,
			DATA_TYPE,
			COLUMN_TYPE,
			IS_NULLABLE,
			COLUMN_DEFAULT,
			EXTRA,
			CHARACTER_MAXIMUM_LENGTH,
			COLUMN_COMMENT
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`
}

func (MySQLDialect) PrimaryKeyQuery() string {
	return `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())
		AND TABLE_NAME = ?
		AND CONSTRAINT_NAME = 'PRIMARY'
		ORDER BY ORDINAL_POSITION
	`
}

func (MySQLDialect) ForeignKeysQuery() string {
	return `
		SELECT
			k.CONSTRAINT_NAME,
			k.COLUMN_NAME,
			k.REFERENCED_TABLE_NAME,
			k.REFERENCED_COLUMN_NAME,
			k.ORDINAL_POSITION,
			r.DELETE_RULE,
			r.UPDATE_RULE
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE k
		JOIN INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS r
			ON r.CONSTRAINT_SCHEMA = k.CONSTRAINT_SCHEMA
			AND r.CONSTRAINT_NAME = k.CONSTRAINT_NAME
			AND r.TABLE_NAME = k.TABLE_NAME
		WHERE k.TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())
		AND k.TABLE_NAME = ?
		AND k.REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY k.CONSTRAINT_NAME, k.ORDINAL_POSITION
	`
}

func (MySQLDialect) IndexesQuery() string {
	return `
		SELECT
			INDEX_NAME,
			NON_UNIQUE = 0,
			INDEX_NAME = 'PRIMARY',
			COLUMN_NAME,
			SEQ_IN_INDEX
		FROM INFORMATION_SCHEMA.STATISTICS
		WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ?
		ORDER BY INDEX_NAME, SEQ_IN_INDEX
	`
}

func (MySQLDialect) DistinctValuesQuery(schema, table, column string, limit int) (string, []any, error) {
	qualified := sqlutil.QualifiedName(sqlutil.QuoteIdentifier, schema, table)
	return distinctSelect(sqlutil.QuoteIdentifier, qualified, column).
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Question).
		ToSql()
}
