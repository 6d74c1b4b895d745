package relationship

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input    string
		expected Kind
	}{
		{"direct_reference", KindDirectReference},
		{"belongs_to", KindDirectReference},
		{"has_one", KindInverseCollection},
		{"belongs_to_many", KindManyToMany},
		{"morph_to", KindPolymorphicReference},
		{"morph_many", KindPolymorphicCollection},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := ParseKind("has_through")
	assert.Error(t, err)
}

func TestKindInverse(t *testing.T) {
	assert.Equal(t, KindInverseCollection, KindDirectReference.Inverse())
	assert.Equal(t, KindDirectReference, KindInverseCollection.Inverse())
	assert.Equal(t, KindManyToMany, KindManyToMany.Inverse())
	assert.Equal(t, KindPolymorphicCollection, KindPolymorphicReference.Inverse())
	assert.Equal(t, KindPolymorphicReference, KindPolymorphicCollection.Inverse())
	assert.Equal(t, Kind(""), Kind("bogus").Inverse())
}

func TestWithMethodsDoNotMutate(t *testing.T) {
	orig := Relationship{
		Kind:            KindManyToMany,
		LocalTable:      "users",
		TargetTable:     "roles",
		MethodName:      "roles",
		ExtraAttributes: []string{"granted_by"},
		Ambiguity:       &Ambiguity{Reason: ReasonNoMatch},
	}

	renamed := orig.WithMethodName("roles2")
	assert.Equal(t, "roles", orig.MethodName)
	assert.Equal(t, "roles2", renamed.MethodName)

	renamed.ExtraAttributes[0] = "changed"
	renamed.Ambiguity.Reason = "changed"
	assert.Equal(t, "granted_by", orig.ExtraAttributes[0])
	assert.Equal(t, ReasonNoMatch, orig.Ambiguity.Reason)

	linked := orig.WithInverse("roles", "users")
	assert.Nil(t, orig.Inverse)
	require.NotNil(t, linked.Inverse)
	assert.Equal(t, InverseRef{Table: "roles", MethodName: "users"}, *linked.Inverse)

	cascaded := orig.WithCascade(true, false)
	assert.True(t, cascaded.CascadeDelete)
	assert.False(t, orig.CascadeDelete)
}

func TestWithResolvedTargetsSortsAndClearsAmbiguity(t *testing.T) {
	stub := Relationship{
		Kind:       KindPolymorphicReference,
		LocalTable: "comments",
		MethodName: "commentable",
		MorphName:  "commentable",
	}.WithAmbiguity(ReasonProbeDisabled, "")
	assert.True(t, stub.Ambiguous())

	resolved := stub.WithResolvedTargets([]MorphTarget{
		{Table: "videos", DiscriminatorValue: "Video"},
		{Table: "posts", DiscriminatorValue: `App\Models\Post`},
	})
	assert.False(t, resolved.Ambiguous())
	assert.True(t, stub.Ambiguous())
	assert.Equal(t, "posts", resolved.ResolvedTargets[0].Table)
	assert.Equal(t, "videos", resolved.ResolvedTargets[1].Table)

	empty := stub.WithResolvedTargets(nil)
	assert.True(t, empty.Ambiguous())
}

func TestKey(t *testing.T) {
	r := Relationship{LocalTable: "posts", MethodName: "author"}
	assert.Equal(t, Key{Table: "posts", Method: "author"}, r.Key())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rel     Relationship
		wantErr string
	}{
		{
			name: "valid direct reference",
			rel:  Relationship{Kind: KindDirectReference, LocalTable: "posts", MethodName: "author", TargetTable: "users", LocalColumn: "author_id"},
		},
		{
			name:    "direct reference without column",
			rel:     Relationship{Kind: KindDirectReference, LocalTable: "posts", MethodName: "author", TargetTable: "users"},
			wantErr: "requires local_column",
		},
		{
			name:    "inverse without cardinality",
			rel:     Relationship{Kind: KindInverseCollection, LocalTable: "users", MethodName: "posts", TargetTable: "posts", ForeignKey: "user_id"},
			wantErr: "requires cardinality",
		},
		{
			name:    "many to many without keys",
			rel:     Relationship{Kind: KindManyToMany, LocalTable: "users", MethodName: "roles", TargetTable: "roles", JunctionTable: "role_user"},
			wantErr: "junction_local_key",
		},
		{
			name:    "polymorphic collection without morph name",
			rel:     Relationship{Kind: KindPolymorphicCollection, LocalTable: "posts", MethodName: "comments", TargetTable: "comments", Cardinality: Many},
			wantErr: "requires morph_name",
		},
		{
			name:    "missing method",
			rel:     Relationship{Kind: KindDirectReference, LocalTable: "posts"},
			wantErr: "no method name",
		},
		{
			name:    "unknown kind",
			rel:     Relationship{Kind: "has_through", LocalTable: "posts", MethodName: "x"},
			wantErr: "unknown kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rel.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestJSONOmitsUnusedFields(t *testing.T) {
	r := Relationship{
		Kind:        KindInverseCollection,
		LocalTable:  "users",
		TargetTable: "posts",
		MethodName:  "posts",
		Source:      SourceDetected,
		ForeignKey:  "user_id",
		RelatedKey:  "id",
		Cardinality: Many,
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind": "inverse_collection",
		"localTable": "users",
		"targetTable": "posts",
		"methodName": "posts",
		"source": "detected",
		"foreignKey": "user_id",
		"relatedKey": "id",
		"cardinality": "many"
	}`, string(data))
}
