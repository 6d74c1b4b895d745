package graph

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relmap/internal/analyzer"
	"relmap/internal/introspection"
	"relmap/internal/naming"
	"relmap/internal/override"
	"relmap/internal/relationship"
)

func column(name, dataType string) introspection.Column {
	return introspection.Column{Name: name, DataType: dataType}
}

func table(name string, cols ...introspection.Column) introspection.Table {
	return introspection.Table{
		Name:       name,
		Columns:    append(introspection.Columns{column("id", "bigint")}, cols...),
		PrimaryKey: []string{"id"},
		Indexes:    []introspection.Index{{Name: "PRIMARY", Columns: []string{"id"}, Unique: true, Primary: true}},
	}
}

func withFK(t introspection.Table, col, target string) introspection.Table {
	t.ForeignKeys = append(t.ForeignKeys, introspection.ForeignKeyConstraint{
		Name:              "fk_" + t.Name + "_" + col,
		Columns:           []string{col},
		ReferencedTable:   target,
		ReferencedColumns: []string{"id"},
		OnDelete:          introspection.ActionCascade,
		OnUpdate:          introspection.ActionNone,
	})
	return t
}

func blogSnapshot() *introspection.Snapshot {
	users := table("users", column("email", "varchar"))
	posts := withFK(table("posts", column("user_id", "bigint"), column("title", "varchar")), "user_id", "users")
	videos := table("videos", column("title", "varchar"))
	comments := table("comments", column("commentable_type", "varchar"), column("commentable_id", "bigint"))
	roles := table("roles", column("name", "varchar"))
	roleUser := introspection.Table{
		Name:       "role_user",
		Columns:    introspection.Columns{column("role_id", "bigint"), column("user_id", "bigint")},
		PrimaryKey: []string{"role_id", "user_id"},
	}
	roleUser = withFK(withFK(roleUser, "role_id", "roles"), "user_id", "users")
	friendships := introspection.Table{
		Name:    "friendships",
		Columns: introspection.Columns{column("user_id", "bigint"), column("friend_id", "bigint")},
	}
	friendships = withFK(withFK(friendships, "user_id", "users"), "friend_id", "users")
	categories := withFK(table("categories", column("parent_id", "bigint")), "parent_id", "categories")

	return &introspection.Snapshot{
		Tables: []introspection.Table{users, posts, videos, comments, roles, roleUser, friendships, categories},
		Samples: map[string]map[string][]any{
			"comments": {"commentable_type": {`App\Models\Post`, `App\Models\Video`}},
		},
	}
}

func newBuilder(t *testing.T, intro introspection.Introspector, opts ...BuilderOption) *Builder {
	t.Helper()
	cfg := analyzer.DefaultConfig()
	cfg.Probe.Enabled = true
	a := analyzer.New(intro, naming.Default(), cfg)
	return NewBuilder(a, opts...)
}

func mustLookup(t *testing.T, g *Graph, table, method string) relationship.Relationship {
	t.Helper()
	rel, ok := g.Lookup(table, method)
	require.True(t, ok, "%s.%s not found", table, method)
	return rel
}

func TestBuildLinksInverses(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := newBuilder(t, introspection.NewStatic(blogSnapshot()), WithClock(func() time.Time { return fixed }))

	g, err := b.Build(context.Background(), nil)
	require.NoError(t, err)

	_, err = uuid.Parse(g.RunID)
	assert.NoError(t, err)
	assert.Equal(t, fixed, g.BuiltAt)
	assert.Equal(t, []string{"categories", "comments", "friendships", "posts", "role_user", "roles", "users", "videos"}, g.Tables)

	user := mustLookup(t, g, "posts", "user")
	require.NotNil(t, user.Inverse)
	assert.Equal(t, relationship.InverseRef{Table: "users", MethodName: "posts"}, *user.Inverse)
	posts := mustLookup(t, g, "users", "posts")
	assert.Equal(t, relationship.InverseRef{Table: "posts", MethodName: "user"}, *posts.Inverse)

	roles := mustLookup(t, g, "users", "roles")
	assert.Equal(t, relationship.InverseRef{Table: "roles", MethodName: "users"}, *roles.Inverse)
	assert.Equal(t, relationship.InverseRef{Table: "users", MethodName: "roles"}, *mustLookup(t, g, "roles", "users").Inverse)

	friends := mustLookup(t, g, "users", "friends")
	assert.Equal(t, relationship.InverseRef{Table: "users", MethodName: "users"}, *friends.Inverse)
	assert.Equal(t, relationship.InverseRef{Table: "users", MethodName: "friends"}, *mustLookup(t, g, "users", "users").Inverse)

	parent := mustLookup(t, g, "categories", "parent")
	assert.Equal(t, relationship.InverseRef{Table: "categories", MethodName: "parentCategories"}, *parent.Inverse)

	morph := mustLookup(t, g, "comments", "commentable")
	assert.Nil(t, morph.Inverse)
	want := []relationship.MorphTarget{
		{Table: "posts", DiscriminatorValue: `App\Models\Post`, InverseMethod: "comments"},
		{Table: "videos", DiscriminatorValue: `App\Models\Video`, InverseMethod: "comments"},
	}
	if diff := cmp.Diff(want, morph.ResolvedTargets); diff != "" {
		t.Fatalf("morph targets mismatch (-want +got):\n%s", diff)
	}
	postComments := mustLookup(t, g, "posts", "comments")
	assert.Equal(t, relationship.InverseRef{Table: "comments", MethodName: "commentable"}, *postComments.Inverse)

	assert.Equal(t, [][]string{{"categories"}}, g.Cycles)
}

func TestBuildEveryInverseIsMutual(t *testing.T) {
	b := newBuilder(t, introspection.NewStatic(blogSnapshot()))
	g, err := b.Build(context.Background(), nil)
	require.NoError(t, err)

	for _, table := range g.Tables {
		for _, rel := range g.For(table) {
			if rel.Inverse == nil {
				continue
			}
			other := mustLookup(t, g, rel.Inverse.Table, rel.Inverse.MethodName)
			if rel.Kind == relationship.KindPolymorphicCollection {
				assert.Contains(t, other.ResolvedTargets, relationship.MorphTarget{
					Table:              table,
					DiscriminatorValue: rel.DiscriminatorValue,
					InverseMethod:      rel.MethodName,
				})
				continue
			}
			require.NotNil(t, other.Inverse, "%s.%s", rel.Inverse.Table, rel.Inverse.MethodName)
			assert.Equal(t, relationship.InverseRef{Table: table, MethodName: rel.MethodName}, *other.Inverse)
		}
	}
}

func TestBuildExcludesTables(t *testing.T) {
	b := newBuilder(t, introspection.NewStatic(blogSnapshot()))
	g, err := b.Build(context.Background(), []string{"ROLE*", "video?"})
	require.NoError(t, err)

	assert.Equal(t, []string{"categories", "comments", "friendships", "posts", "users"}, g.Tables)
	for _, table := range g.Tables {
		for _, rel := range g.For(table) {
			assert.NotContains(t, []string{"roles", "role_user", "videos"}, rel.TargetTable)
		}
	}
	morph := mustLookup(t, g, "comments", "commentable")
	require.Len(t, morph.ResolvedTargets, 1)
	assert.Equal(t, "posts", morph.ResolvedTargets[0].Table)
}

func TestBuildReportsProgress(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []int
		total int
	)
	b := newBuilder(t, introspection.NewStatic(blogSnapshot()),
		WithWorkers(2),
		WithProgress(func(done, n int, _ string) {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, done)
			total = n
		}),
	)
	_, err := b.Build(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 8, total)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, calls)
}

type brokenTable struct {
	*introspection.Static
	name string
}

func (b brokenTable) Indexes(ctx context.Context, name string) ([]introspection.Index, error) {
	if name == b.name {
		return nil, &introspection.SchemaError{Kind: introspection.KindConnectionFailed, Op: "get indexes for", Table: name}
	}
	return b.Static.Indexes(ctx, name)
}

func TestBuildFailsFast(t *testing.T) {
	b := newBuilder(t, brokenTable{Static: introspection.NewStatic(blogSnapshot()), name: "roles"})
	g, err := b.Build(context.Background(), nil)
	assert.Nil(t, g)
	require.Error(t, err)
	assert.ErrorIs(t, err, introspection.ErrConnectionFailed)
	assert.Contains(t, err.Error(), "failed to analyze table")
}

func TestBuildWarnsOnUnknownCascadeTables(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	a := analyzer.New(introspection.NewStatic(blogSnapshot()), naming.Default(), analyzer.DefaultConfig(),
		analyzer.WithCascadePolicy(override.CascadePolicy{"legacy.items": {Delete: true}}),
		analyzer.WithLogger(logger),
	)
	_, err := NewBuilder(a, WithLogger(logger)).Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "legacy.items")
}

func directGraph(edges map[string][]string) *Graph {
	g := &Graph{Relationships: make(map[string][]relationship.Relationship)}
	seen := make(map[string]bool)
	add := func(table string) {
		if !seen[table] {
			seen[table] = true
			g.Tables = append(g.Tables, table)
		}
	}
	for from, targets := range edges {
		add(from)
		for _, to := range targets {
			add(to)
			g.Relationships[from] = append(g.Relationships[from], relationship.Relationship{
				Kind:        relationship.KindDirectReference,
				LocalTable:  from,
				TargetTable: to,
				MethodName:  to,
			})
		}
	}
	return g
}

func TestDetectCycles(t *testing.T) {
	tests := []struct {
		name  string
		edges map[string][]string
		want  [][]string
	}{
		{
			name:  "two-table cycle",
			edges: map[string][]string{"a": {"b"}, "b": {"a"}},
			want:  [][]string{{"a", "b"}},
		},
		{
			name:  "acyclic",
			edges: map[string][]string{"posts": {"users"}, "comments": {"posts", "users"}},
			want:  [][]string{},
		},
		{
			name:  "self reference",
			edges: map[string][]string{"categories": {"categories"}, "posts": {"categories"}},
			want:  [][]string{{"categories"}},
		},
		{
			name:  "rotation reported once from smallest table",
			edges: map[string][]string{"c": {"a"}, "a": {"b"}, "b": {"c"}},
			want:  [][]string{{"a", "b", "c"}},
		},
		{
			name:  "duplicate references collapse",
			edges: map[string][]string{"a": {"b", "b"}, "b": {"a"}},
			want:  [][]string{{"a", "b"}},
		},
		{
			name:  "overlapping cycles",
			edges: map[string][]string{"a": {"b", "c"}, "b": {"a", "c"}, "c": {"a"}},
			want:  [][]string{{"a", "b"}, {"a", "b", "c"}, {"a", "c"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectCycles(directGraph(tt.edges))
			require.NotNil(t, got)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("cycles mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// layeredEdges wires every table of a layer to every table of the next one.
// The path count grows as width^layers while the graph stays acyclic.
func layeredEdges(layers, width int) map[string][]string {
	edges := make(map[string][]string)
	name := func(layer, i int) string { return fmt.Sprintf("l%02d_t%d", layer, i) }
	for layer := 0; layer < layers-1; layer++ {
		for i := 0; i < width; i++ {
			for j := 0; j < width; j++ {
				edges[name(layer, i)] = append(edges[name(layer, i)], name(layer+1, j))
			}
		}
	}
	return edges
}

func TestDetectCyclesLayeredSchema(t *testing.T) {
	edges := layeredEdges(16, 4)

	done := make(chan [][]string, 1)
	go func() { done <- DetectCycles(directGraph(edges)) }()
	select {
	case got := <-done:
		assert.Equal(t, [][]string{}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("cycle detection did not finish on an acyclic layered schema")
	}

	// One back edge closes a cycle for every path from l00_t0 to l03_t0.
	small := layeredEdges(4, 2)
	small["l03_t0"] = []string{"l00_t0"}
	got := DetectCycles(directGraph(small))
	assert.Len(t, got, 4)
	for _, cycle := range got {
		assert.Equal(t, "l00_t0", cycle[0])
		assert.Equal(t, "l03_t0", cycle[len(cycle)-1])
	}
}

func TestDetectCyclesIgnoresOtherKinds(t *testing.T) {
	g := directGraph(map[string][]string{"posts": {"users"}})
	g.Relationships["users"] = []relationship.Relationship{{
		Kind:        relationship.KindInverseCollection,
		LocalTable:  "users",
		TargetTable: "posts",
		MethodName:  "posts",
	}}
	assert.Equal(t, [][]string{}, DetectCycles(g))
	assert.Equal(t, [][]string{}, DetectCycles(nil))
}
