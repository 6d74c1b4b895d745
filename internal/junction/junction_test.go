package junction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relmap/internal/introspection"
)

func fk(name, column, table, refColumn string) introspection.ForeignKeyConstraint {
	return introspection.ForeignKeyConstraint{
		Name:              name,
		Columns:           []string{column},
		ReferencedTable:   table,
		ReferencedColumns: []string{refColumn},
	}
}

func cols(names ...string) introspection.Columns {
	out := make(introspection.Columns, len(names))
	for i, n := range names {
		out[i] = introspection.Column{Name: n}
	}
	return out
}

func TestFindPureJunction(t *testing.T) {
	tables := []introspection.Table{
		{Name: "roles", Columns: cols("id", "name")},
		{
			Name:        "role_user",
			Columns:     cols("role_id", "user_id"),
			PrimaryKey:  []string{"role_id", "user_id"},
			ForeignKeys: []introspection.ForeignKeyConstraint{fk("fk_ru_role", "role_id", "roles", "id"), fk("fk_ru_user", "user_id", "users", "id")},
		},
		{Name: "users", Columns: cols("id", "email")},
	}

	got := Find("users", tables, DefaultConfig())
	require.Len(t, got, 1)
	c := got[0]
	assert.Equal(t, "role_user", c.Table)
	assert.Equal(t, "roles", c.RelatedTable())
	assert.Equal(t, []string{"user_id"}, c.LocalFK.Columns)
	assert.Equal(t, []string{"role_id"}, c.TargetFK.Columns)
	assert.Equal(t, PureJunction, c.Type)
	assert.Empty(t, c.ExtraAttributes)
	assert.False(t, c.SelfReferential)
	assert.True(t, c.HasCoveringConstraint(tables[1]))
}

func TestFindAttributeJunction(t *testing.T) {
	tables := []introspection.Table{
		{
			Name:    "dept_emp",
			Columns: cols("emp_no", "dept_no", "from_date", "to_date", "created_at", "updated_at", "deleted_at"),
			ForeignKeys: []introspection.ForeignKeyConstraint{
				fk("fk_de_emp", "emp_no", "employees", "emp_no"),
				fk("fk_de_dept", "dept_no", "departments", "dept_no"),
			},
		},
	}

	got := Find("employees", tables, Config{})
	require.Len(t, got, 1)
	c := got[0]
	assert.Equal(t, AttributeJunction, c.Type)
	assert.Equal(t, []string{"from_date", "to_date"}, c.ExtraAttributes)
	assert.True(t, c.HasTimestamps)
	assert.True(t, c.HasSoftDelete)
	assert.False(t, c.HasCoveringConstraint(tables[0]))
}

func TestFindLoneTimestampIsAttribute(t *testing.T) {
	tables := []introspection.Table{
		{
			Name:    "post_tag",
			Columns: cols("post_id", "tag_id", "created_at"),
			ForeignKeys: []introspection.ForeignKeyConstraint{
				fk("", "post_id", "posts", "id"),
				fk("", "tag_id", "tags", "id"),
			},
		},
	}

	got := Find("posts", tables, DefaultConfig())
	require.Len(t, got, 1)
	assert.False(t, got[0].HasTimestamps)
	assert.Equal(t, []string{"created_at"}, got[0].ExtraAttributes)
}

func TestFindCustomSoftDeleteColumn(t *testing.T) {
	tables := []introspection.Table{
		{
			Name:    "memberships",
			Columns: cols("user_id", "team_id", "archived_at", "deleted_at"),
			ForeignKeys: []introspection.ForeignKeyConstraint{
				fk("", "user_id", "users", "id"),
				fk("", "team_id", "teams", "id"),
			},
		},
	}

	got := Find("teams", tables, Config{SoftDeleteColumn: "archived_at"})
	require.Len(t, got, 1)
	assert.True(t, got[0].HasSoftDelete)
	assert.Equal(t, []string{"deleted_at"}, got[0].ExtraAttributes)
	assert.Equal(t, "users", got[0].RelatedTable())
}

func TestFindThreeWayJunction(t *testing.T) {
	tables := []introspection.Table{
		{
			Name:    "assignments",
			Columns: cols("user_id", "project_id", "role_id"),
			ForeignKeys: []introspection.ForeignKeyConstraint{
				fk("", "user_id", "users", "id"),
				fk("", "project_id", "projects", "id"),
				fk("", "role_id", "roles", "id"),
			},
		},
	}

	got := Find("users", tables, DefaultConfig())
	require.Len(t, got, 2)
	assert.Equal(t, "projects", got[0].RelatedTable())
	assert.Equal(t, "roles", got[1].RelatedTable())
	assert.Equal(t, []string{"role_id"}, got[0].ExtraAttributes)
	assert.Equal(t, []string{"project_id"}, got[1].ExtraAttributes)
}

func TestFindSelfReferentialJunction(t *testing.T) {
	tables := []introspection.Table{
		{
			Name:    "friendships",
			Columns: cols("user_id", "friend_id"),
			ForeignKeys: []introspection.ForeignKeyConstraint{
				fk("", "user_id", "users", "id"),
				fk("", "friend_id", "users", "id"),
			},
		},
	}

	got := Find("users", tables, DefaultConfig())
	require.Len(t, got, 2)
	for _, c := range got {
		assert.True(t, c.SelfReferential)
		assert.Equal(t, "users", c.RelatedTable())
	}
	assert.Equal(t, []string{"user_id"}, got[0].LocalFK.Columns)
	assert.Equal(t, []string{"friend_id"}, got[0].TargetFK.Columns)
	assert.Equal(t, []string{"friend_id"}, got[1].LocalFK.Columns)
	assert.Equal(t, []string{"user_id"}, got[1].TargetFK.Columns)
}

func TestFindSelfReferentialJunctionWithOtherKeys(t *testing.T) {
	tables := []introspection.Table{
		{
			Name:    "transfers",
			Columns: cols("from_id", "to_id", "bank_id"),
			ForeignKeys: []introspection.ForeignKeyConstraint{
				fk("", "from_id", "users", "id"),
				fk("", "to_id", "users", "id"),
				fk("", "bank_id", "banks", "id"),
			},
		},
	}

	got := Find("users", tables, DefaultConfig())
	require.Len(t, got, 2)
	for _, c := range got {
		assert.True(t, c.SelfReferential)
		assert.Equal(t, "users", c.RelatedTable())
		assert.Equal(t, AttributeJunction, c.Type)
		assert.Equal(t, []string{"bank_id"}, c.ExtraAttributes)
	}
	assert.Equal(t, []string{"from_id"}, got[0].LocalFK.Columns)
	assert.Equal(t, []string{"to_id"}, got[0].TargetFK.Columns)
	assert.Equal(t, []string{"to_id"}, got[1].LocalFK.Columns)
	assert.Equal(t, []string{"from_id"}, got[1].TargetFK.Columns)

	// From the bank's side only one key points at it, so each user key is a path.
	banks := Find("banks", tables, DefaultConfig())
	require.Len(t, banks, 2)
	assert.False(t, banks[0].SelfReferential)
}

func TestFindRejectsNonJunctions(t *testing.T) {
	tests := []struct {
		name  string
		table introspection.Table
	}{
		{
			name: "single FK",
			table: introspection.Table{
				Name:        "posts",
				Columns:     cols("id", "user_id"),
				ForeignKeys: []introspection.ForeignKeyConstraint{fk("", "user_id", "users", "id")},
			},
		},
		{
			name: "no FK to focal",
			table: introspection.Table{
				Name:    "post_tag",
				Columns: cols("post_id", "tag_id"),
				ForeignKeys: []introspection.ForeignKeyConstraint{
					fk("", "post_id", "posts", "id"),
					fk("", "tag_id", "tags", "id"),
				},
			},
		},
		{
			name: "focal table itself",
			table: introspection.Table{
				Name:    "users",
				Columns: cols("id", "manager_id", "team_id"),
				ForeignKeys: []introspection.ForeignKeyConstraint{
					fk("", "manager_id", "users", "id"),
					fk("", "team_id", "teams", "id"),
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, Find("users", []introspection.Table{tt.table}, DefaultConfig()))
		})
	}
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "PureJunction", PureJunction.String())
	assert.Equal(t, "AttributeJunction", AttributeJunction.String())
	assert.Equal(t, "Unknown", Type(99).String())
}
