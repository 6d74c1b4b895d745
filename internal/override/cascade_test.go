package override

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relmap/internal/relationship"
)

func TestCascadePolicyApply(t *testing.T) {
	rels := []relationship.Relationship{
		{Kind: relationship.KindDirectReference, LocalTable: "users", MethodName: "team"},
		{Kind: relationship.KindInverseCollection, LocalTable: "users", MethodName: "posts"},
		{Kind: relationship.KindManyToMany, LocalTable: "users", MethodName: "roles"},
	}
	policy := NewCascadePolicy(map[string]map[string]CascadeRule{
		"users": {
			"posts":  {Delete: true},
			"roles":  {Delete: true, Update: true},
			"team":   {Delete: true},
			"ghosts": {Delete: true},
		},
		"posts": {"comments": {Delete: true}},
	})

	got, unmatched := policy.Apply("users", rels)
	require.Len(t, got, 3)
	assert.False(t, got[0].CascadeDelete, "direct references never cascade")
	assert.True(t, got[1].CascadeDelete)
	assert.False(t, got[1].CascadeUpdate)
	assert.True(t, got[2].CascadeDelete)
	assert.True(t, got[2].CascadeUpdate)
	assert.Equal(t, []string{"users.ghosts", "users.team"}, unmatched)
	assert.False(t, rels[1].CascadeDelete)
}

func TestCascadePolicyUnknownTables(t *testing.T) {
	policy := CascadePolicy{"users.posts": {}, "legacy.items": {}}
	assert.Equal(t, []string{"legacy.items"}, policy.UnknownTables([]string{"posts", "users"}))
}

func TestCascadePolicyValidate(t *testing.T) {
	assert.NoError(t, CascadePolicy{"app.users.posts": {}}.Validate())
	assert.Error(t, CascadePolicy{"users": {}}.Validate())
	assert.Error(t, CascadePolicy{"users.": {}}.Validate())
	assert.Error(t, CascadePolicy{".posts": {}}.Validate())
}
