package introspection

import (
	sq "github.com/Masterminds/squirrel"

	"relmap/internal/sqlutil"
)

// PostgresDialect reads information_schema and pg_catalog.
type PostgresDialect struct{}

func (PostgresDialect) Name() string { return "postgres" }

func (PostgresDialect) TablesQuery() string {
	return `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF($1::text, ''), current_schema())
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
}

func (PostgresDialect) ColumnsQuery() string {
	return `
		SELECT
			c.column_name,
			c.data_type,
			c.udt_name,
			c.is_nullable,
			c.column_default,
			CASE WHEN c.is_identity = 'YES' OR c.column_default LIKE 'nextval(%' THEN 'auto_increment' ELSE '' END,
			c.character_maximum_length,
			pg_catalog.col_description(pc.oid, c.ordinal_position::int)
		FROM information_schema.columns c
		JOIN pg_catalog.pg_namespace pn ON pn.nspname = c.table_schema
		JOIN pg_catalog.pg_class pc ON pc.relname = c.table_name AND pc.relnamespace = pn.oid
		WHERE c.table_schema = COALESCE(NULLIF($1::text, ''), current_schema())
		AND c.table_name = $2
		ORDER BY c.ordinal_position
	`
}

func (PostgresDialect) PrimaryKeyQuery() string {
	return `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
		AND tc.table_schema = COALESCE(NULLIF($1::text, ''), current_schema())
		AND tc.table_name = $2
		ORDER BY kcu.ordinal_position
	`
}

// ForeignKeysQuery reads pg_constraint directly so composite keys keep their
// column pairing; confdeltype and confupdtype are single-letter action codes.
func (PostgresDialect) ForeignKeysQuery() string {
	return `
		SELECT
			con.conname,
			att.attname,
			ref.relname,
			refatt.attname,
			k.ord,
			con.confdeltype::text,
			con.confupdtype::text
		FROM pg_catalog.pg_constraint con
		JOIN pg_catalog.pg_class cls ON cls.oid = con.conrelid
		JOIN pg_catalog.pg_namespace ns ON ns.oid = cls.relnamespace
		JOIN pg_catalog.pg_class ref ON ref.oid = con.confrelid
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, refattnum, ord)
		JOIN pg_catalog.pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = k.attnum
		JOIN pg_catalog.pg_attribute refatt ON refatt.attrelid = con.confrelid AND refatt.attnum = k.refattnum
		WHERE con.contype = 'f'
		AND ns.nspname = COALESCE(NULLIF($1::text, ''), current_schema())
		AND cls.relname = $2
		ORDER BY con.conname, k.ord
	`
}

func (PostgresDialect) IndexesQuery() string {
	return `
		SELECT
			i.relname,
			ix.indisunique,
			ix.indisprimary,
			a.attname,
			k.ord
		FROM pg_catalog.pg_index ix
		JOIN pg_catalog.pg_class t ON t.oid = ix.indrelid
		JOIN pg_catalog.pg_class i ON i.oid = ix.indexrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
		CROSS JOIN LATERAL unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_catalog.pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE n.nspname = COALESCE(NULLIF($1::text, ''), current_schema())
		AND t.relname = $2
		ORDER BY i.relname, k.ord
	`
}

func (PostgresDialect) DistinctValuesQuery(schema, table, column string, limit int) (string, []any, error) {
	qualified := sqlutil.QualifiedName(sqlutil.QuoteANSIIdentifier, schema, table)
	return distinctSelect(sqlutil.QuoteANSIIdentifier, qualified, column).
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
}
