//go:build integration

package introspection

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const integrationSchema = `
CREATE TABLE users (id BIGSERIAL PRIMARY KEY, email VARCHAR(200) NOT NULL UNIQUE);
CREATE TABLE roles (id BIGSERIAL PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE role_user (
	role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ,
	PRIMARY KEY (role_id, user_id)
);
CREATE TABLE comments (
	id BIGSERIAL PRIMARY KEY,
	commentable_type VARCHAR(255) NOT NULL,
	commentable_id BIGINT NOT NULL
);
COMMENT ON COLUMN users.email IS 'login address';
INSERT INTO comments (commentable_type, commentable_id) VALUES ('App\Models\Post', 1), ('App\Models\Video', 1);
`

func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("relmap"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, integrationSchema)
	require.NoError(t, err)
	return db
}

func TestPostgresCatalogIntegration(t *testing.T) {
	db := startPostgres(t)
	catalog := NewCatalog(db, PostgresDialect{}, WithQueryTimeout(10*time.Second))
	ctx := context.Background()

	tables, err := catalog.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"comments", "role_user", "roles", "users"}, tables)

	table, err := LoadTable(ctx, catalog, "role_user")
	require.NoError(t, err)
	assert.Equal(t, []string{"role_id", "user_id"}, table.PrimaryKey)
	require.Len(t, table.ForeignKeys, 2)
	for _, fk := range table.ForeignKeys {
		assert.Equal(t, ActionCascade, fk.OnDelete)
	}
	assert.True(t, table.UniquelyConstrained("role_id", "user_id"))

	columns, err := catalog.Columns(ctx, "users")
	require.NoError(t, err)
	email, ok := columns.Lookup("email")
	require.True(t, ok)
	assert.Equal(t, "login address", email.Comment)
	assert.Equal(t, int64(200), email.MaxLength)

	unique, err := catalog.UniqueColumns(ctx, "users")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"id", "email"}, unique)

	values, err := catalog.DistinctValues(ctx, "comments", "commentable_type", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{`App\Models\Post`, `App\Models\Video`}, values)

	_, err = catalog.Columns(ctx, "ghosts")
	assert.ErrorIs(t, err, ErrNotFound)
}
