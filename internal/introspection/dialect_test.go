package introspection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver   string
		expected string
	}{
		{"mysql", "mysql"},
		{"tidb", "mysql"},
		{"postgres", "postgres"},
		{"pgx", "postgres"},
		{"sqlserver", "sqlserver"},
		{"oracle", "oracle"},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			dialect, err := DialectFor(tt.driver)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, dialect.Name())
		})
	}

	_, err := DialectFor("sqlite3")
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestDistinctValuesQueries(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		schema   string
		expected string
	}{
		{
			name:     "mysql",
			dialect:  MySQLDialect{},
			expected: "SELECT DISTINCT `item_type` FROM `tags` WHERE `item_type` IS NOT NULL LIMIT 25",
		},
		{
			name:     "postgres",
			dialect:  PostgresDialect{},
			schema:   "public",
			expected: `SELECT DISTINCT "item_type" FROM "public"."tags" WHERE "item_type" IS NOT NULL LIMIT 25`,
		},
		{
			name:     "sqlserver",
			dialect:  SQLServerDialect{},
			schema:   "dbo",
			expected: "SELECT DISTINCT TOP (25) [item_type] FROM [dbo].[tags] WHERE [item_type] IS NOT NULL",
		},
		{
			name:     "oracle",
			dialect:  OracleDialect{},
			expected: `SELECT DISTINCT "item_type" FROM "tags" WHERE "item_type" IS NOT NULL FETCH FIRST 25 ROWS ONLY`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := tt.dialect.DistinctValuesQuery(tt.schema, "tags", "item_type", 25)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, query)
			assert.Empty(t, args)
		})
	}
}

func TestCatalogQueriesUseDialectPlaceholders(t *testing.T) {
	assert.Contains(t, PostgresDialect{}.ColumnsQuery(), "$2")
	assert.Contains(t, SQLServerDialect{}.ForeignKeysQuery(), "@p2")
	assert.Contains(t, OracleDialect{}.IndexesQuery(), ":2")
	assert.Contains(t, MySQLDialect{}.IndexesQuery(), "TABLE_NAME = ?")
}
