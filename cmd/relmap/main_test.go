package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relmap/internal/config"
	"relmap/internal/introspection"
)

func writeShopSnapshot(t *testing.T) string {
	t.Helper()
	users := introspection.Table{
		Name:       "users",
		Columns:    introspection.Columns{{Name: "id", DataType: "bigint"}},
		PrimaryKey: []string{"id"},
	}
	posts := introspection.Table{
		Name:       "posts",
		Columns:    introspection.Columns{{Name: "id", DataType: "bigint"}, {Name: "user_id", DataType: "bigint"}},
		PrimaryKey: []string{"id"},
		ForeignKeys: []introspection.ForeignKeyConstraint{{
			Name: "fk_posts_user", Columns: []string{"user_id"},
			ReferencedTable: "users", ReferencedColumns: []string{"id"},
		}},
	}
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, introspection.WriteSnapshot(path, &introspection.Snapshot{
		Tables: []introspection.Table{users, posts},
	}))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--observability.logging.level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAnalyzeFromSnapshot(t *testing.T) {
	schema := writeShopSnapshot(t)

	out, err := execute(t, "analyze", "posts", "--schema-file", schema)
	require.NoError(t, err)
	assert.Contains(t, out, `"table": "posts"`)
	assert.Contains(t, out, `"methodName": "user"`)
	assert.Contains(t, out, `"targetTable": "users"`)

	out, err = execute(t, "analyze", "users", "--schema-file", schema, "--output", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "methodName: posts")
	assert.Contains(t, out, "table: users")
}

func TestAnalyzeUnknownTable(t *testing.T) {
	_, err := execute(t, "analyze", "ghosts", "--schema-file", writeShopSnapshot(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, introspection.ErrNotFound)
}

func TestAnalyzeRequiresTable(t *testing.T) {
	_, err := execute(t, "analyze", "--schema-file", writeShopSnapshot(t))
	assert.ErrorContains(t, err, "accepts 1 arg(s)")
}

func TestGraphExcludesTables(t *testing.T) {
	out, err := execute(t, "graph", "--schema-file", writeShopSnapshot(t), "--exclude", "post*")
	require.NoError(t, err)
	assert.Contains(t, out, `"users"`)
	assert.NotContains(t, out, `"posts":`)
}

func TestCyclesOnAcyclicSchema(t *testing.T) {
	out, err := execute(t, "cycles", "--schema-file", writeShopSnapshot(t), "--output", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "cycles: []")
	assert.Contains(t, out, "runId: ")
}

func TestSnapshotRoundTrip(t *testing.T) {
	target := filepath.Join(t.TempDir(), "copy.yaml")

	_, err := execute(t, "snapshot", "--schema-file", writeShopSnapshot(t), "-o", target)
	require.NoError(t, err)

	snapshot, err := introspection.LoadSnapshot(target)
	require.NoError(t, err)
	require.Len(t, snapshot.Tables, 2)
	assert.ElementsMatch(t, []string{"users", "posts"},
		[]string{snapshot.Tables[0].Name, snapshot.Tables[1].Name})
}

func TestMetricsFileWrittenOnExit(t *testing.T) {
	metrics := filepath.Join(t.TempDir(), "relmap.prom")

	_, err := execute(t, "graph", "--schema-file", writeShopSnapshot(t), "--metrics-file", metrics)
	require.NoError(t, err)

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "relmap_graph_build_duration")
}

func TestUnknownOutputFormat(t *testing.T) {
	_, err := execute(t, "cycles", "--schema-file", writeShopSnapshot(t), "--output", "xml")
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "relmap dev (none)\n", out)
}

func TestValidateOfflineIgnoresDatabaseErrors(t *testing.T) {
	cfg, err := config.Load(nil)
	require.NoError(t, err)
	cfg.Database.Host = ""

	assert.Error(t, validate(cfg, false))
	assert.NoError(t, validate(cfg, true))
}
