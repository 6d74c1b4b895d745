package introspection

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"relmap/internal/sqlutil"
)

// OracleDialect reads the ALL_* dictionary views. Oracle binds an empty
// string as NULL, so the owner falls back to the session's current schema.
// Oracle has no ON UPDATE action; update rules are reported as NO ACTION.
type OracleDialect struct{}

func (OracleDialect) Name() string { return "oracle" }

func (OracleDialect) TablesQuery() string {
	return `
		SELECT TABLE_NAME
		FROM ALL_TABLES
		WHERE OWNER = COALESCE(:1, SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA'))
		ORDER BY TABLE_NAME`
}

func (OracleDialect) ColumnsQuery() string {
	return `
		SELECT
			c.COLUMN_NAME,
			c.DATA_TYPE,
			c.DATA_TYPE,
			CASE WHEN c.NULLABLE = 'Y' THEN 'YES' ELSE 'NO' END,
			c.DATA_DEFAULT,
			CASE WHEN c.IDENTITY_COLUMN = 'YES' THEN 'identity' END,
			c.CHAR_LENGTH,
			cc.COMMENTS
		FROM ALL_TAB_COLUMNS c
		LEFT JOIN ALL_COL_COMMENTS cc
			ON cc.OWNER = c.OWNER AND cc.TABLE_NAME = c.TABLE_NAME AND cc.COLUMN_NAME = c.COLUMN_NAME
		WHERE c.OWNER = COALESCE(:1, SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA'))
		AND c.TABLE_NAME = :2
		ORDER BY c.COLUMN_ID`
}

func (OracleDialect) PrimaryKeyQuery() string {
	return `
		SELECT cc.COLUMN_NAME
		FROM ALL_CONSTRAINTS c
		JOIN ALL_CONS_COLUMNS cc ON cc.OWNER = c.OWNER AND cc.CONSTRAINT_NAME = c.CONSTRAINT_NAME
		WHERE c.CONSTRAINT_TYPE = 'P'
		AND c.OWNER = COALESCE(:1, SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA'))
		AND c.TABLE_NAME = :2
		ORDER BY cc.POSITION`
}

func (OracleDialect) ForeignKeysQuery() string {
	return `
		SELECT
			c.CONSTRAINT_NAME,
			cc.COLUMN_NAME,
			rc.TABLE_NAME,
			rc.COLUMN_NAME,
			cc.POSITION,
			c.DELETE_RULE,
			'NO ACTION'
		FROM ALL_CONSTRAINTS c
		JOIN ALL_CONS_COLUMNS cc ON cc.OWNER = c.OWNER AND cc.CONSTRAINT_NAME = c.CONSTRAINT_NAME
		JOIN ALL_CONS_COLUMNS rc
			ON rc.OWNER = c.R_OWNER AND rc.CONSTRAINT_NAME = c.R_CONSTRAINT_NAME AND rc.POSITION = cc.POSITION
		WHERE c.CONSTRAINT_TYPE = 'R'
		AND c.OWNER = COALESCE(:1, SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA'))
		AND c.TABLE_NAME = :2
		ORDER BY c.CONSTRAINT_NAME, cc.POSITION`
}

func (OracleDialect) IndexesQuery() string {
	return `
		SELECT
			i.INDEX_NAME,
			CASE WHEN i.UNIQUENESS = 'UNIQUE' THEN 1 ELSE 0 END,
			CASE WHEN pc.CONSTRAINT_NAME IS NULL THEN 0 ELSE 1 END,
			ic.COLUMN_NAME,
			ic.COLUMN_POSITION
		FROM ALL_INDEXES i
		JOIN ALL_IND_COLUMNS ic ON ic.INDEX_OWNER = i.OWNER AND ic.INDEX_NAME = i.INDEX_NAME
		LEFT JOIN ALL_CONSTRAINTS pc
			ON pc.OWNER = i.TABLE_OWNER AND pc.INDEX_NAME = i.INDEX_NAME AND pc.CONSTRAINT_TYPE = 'P'
		WHERE i.TABLE_OWNER = COALESCE(:1, SYS_CONTEXT('USERENV', 'CURRENT_SCHEMA'))
		AND i.TABLE_NAME = :2
		ORDER BY i.INDEX_NAME, ic.COLUMN_POSITION`
}

func (OracleDialect) DistinctValuesQuery(schema, table, column string, limit int) (string, []any, error) {
	qualified := sqlutil.QualifiedName(sqlutil.QuoteANSIIdentifier, schema, table)
	return distinctSelect(sqlutil.QuoteANSIIdentifier, qualified, column).
		Suffix(fmt.Sprintf("FETCH FIRST %d ROWS ONLY", limit)).
		PlaceholderFormat(sq.Colon).
		ToSql()
}
