package introspection

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"relmap/internal/sqlutil"
)

// SQLServerDialect reads INFORMATION_SCHEMA and the sys catalog views.
type SQLServerDialect struct{}

func (SQLServerDialect) Name() string { return "sqlserver" }

func (SQLServerDialect) TablesQuery() string {
	return `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = COALESCE(NULLIF(@p1, ''), SCHEMA_NAME())
		AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`
}

func (SQLServerDialect) ColumnsQuery() string {
	return `
		SELECT
			c.COLUMN_NAME,
			c.DATA_TYPE,
			c.DATA_TYPE,
			c.IS_NULLABLE,
			c.COLUMN_DEFAULT,
			CASE WHEN sc.is_identity = 1 THEN 'identity' ELSE '' END,
			c.CHARACTER_MAXIMUM_LENGTH,
			CAST(ep.value AS NVARCHAR(4000))
		FROM INFORMATION_SCHEMA.COLUMNS c
		JOIN sys.columns sc
			ON sc.object_id = OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME))
			AND sc.name = c.COLUMN_NAME
		LEFT JOIN sys.extended_properties ep
			ON ep.major_id = sc.object_id AND ep.minor_id = sc.column_id AND ep.name = 'MS_Description'
		WHERE c.TABLE_SCHEMA = COALESCE(NULLIF(@p1, ''), SCHEMA_NAME())
		AND c.TABLE_NAME = @p2
		ORDER BY c.ORDINAL_POSITION
	`
}

func (SQLServerDialect) PrimaryKeyQuery() string {
	return `
		SELECT kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
			AND tc.TABLE_NAME = kcu.TABLE_NAME
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		AND tc.TABLE_SCHEMA = COALESCE(NULLIF(@p1, ''), SCHEMA_NAME())
		AND tc.TABLE_NAME = @p2
		ORDER BY kcu.ORDINAL_POSITION
	`
}

func (SQLServerDialect) ForeignKeysQuery() string {
	return `
		SELECT
			fk.name,
			pc.name,
			rt.name,
			rc.name,
			fkc.constraint_column_id,
			fk.delete_referential_action_desc,
			fk.update_referential_action_desc
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
		JOIN sys.tables pt ON pt.object_id = fk.parent_object_id
		JOIN sys.columns pc ON pc.object_id = fkc.parent_object_id AND pc.column_id = fkc.parent_column_id
		JOIN sys.tables rt ON rt.object_id = fk.referenced_object_id
		JOIN sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
		WHERE SCHEMA_NAME(pt.schema_id) = COALESCE(NULLIF(@p1, ''), SCHEMA_NAME())
		AND pt.name = @p2
		ORDER BY fk.name, fkc.constraint_column_id
	`
}

func (SQLServerDialect) IndexesQuery() string {
	return `
		SELECT
			i.name,
			i.is_unique,
			i.is_primary_key,
			c.name,
			ic.key_ordinal
		FROM sys.indexes i
		JOIN sys.tables t ON t.object_id = i.object_id
		JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		WHERE SCHEMA_NAME(t.schema_id) = COALESCE(NULLIF(@p1, ''), SCHEMA_NAME())
		AND t.name = @p2
		AND ic.is_included_column = 0
		AND i.name IS NOT NULL
		ORDER BY i.name, ic.key_ordinal
	`
}

// DistinctValuesQuery uses TOP since SQL Server has no LIMIT clause.
func (SQLServerDialect) DistinctValuesQuery(schema, table, column string, limit int) (string, []any, error) {
	quoted := sqlutil.QuoteBracketIdentifier(column)
	return sq.Select(fmt.Sprintf("TOP (%d) %s", limit, quoted)).
		Distinct().
		From(sqlutil.QualifiedName(sqlutil.QuoteBracketIdentifier, schema, table)).
		Where(sq.NotEq{quoted: nil}).
		PlaceholderFormat(sq.AtP).
		ToSql()
}
