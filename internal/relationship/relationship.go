// Package relationship defines the relationship descriptor produced by the
// analyzers: a flat value tagged by Kind, with the fields each kind uses.
package relationship

import (
	"fmt"
	"sort"

	"relmap/internal/introspection"
)

// Kind tags the relationship variant.
type Kind string

const (
	KindDirectReference       Kind = "direct_reference"
	KindInverseCollection     Kind = "inverse_collection"
	KindManyToMany            Kind = "many_to_many"
	KindPolymorphicReference  Kind = "polymorphic_reference"
	KindPolymorphicCollection Kind = "polymorphic_collection"
)

// ParseKind accepts the canonical kind names plus common ORM aliases.
func ParseKind(raw string) (Kind, error) {
	switch raw {
	case string(KindDirectReference), "belongs_to":
		return KindDirectReference, nil
	case string(KindInverseCollection), "has_many", "has_one":
		return KindInverseCollection, nil
	case string(KindManyToMany), "belongs_to_many":
		return KindManyToMany, nil
	case string(KindPolymorphicReference), "morph_to":
		return KindPolymorphicReference, nil
	case string(KindPolymorphicCollection), "morph_many", "morph_one":
		return KindPolymorphicCollection, nil
	default:
		return "", fmt.Errorf("unknown relationship kind %q", raw)
	}
}

// Inverse returns the kind the opposite side of a relationship carries.
func (k Kind) Inverse() Kind {
	switch k {
	case KindDirectReference:
		return KindInverseCollection
	case KindInverseCollection:
		return KindDirectReference
	case KindManyToMany:
		return KindManyToMany
	case KindPolymorphicReference:
		return KindPolymorphicCollection
	case KindPolymorphicCollection:
		return KindPolymorphicReference
	default:
		return ""
	}
}

// Cardinality of the far side of a collection relationship.
type Cardinality string

const (
	One  Cardinality = "one"
	Many Cardinality = "many"
)

// Source records whether a descriptor was detected or declared.
type Source string

const (
	SourceDetected Source = "detected"
	SourceOverride Source = "override"
)

// Ambiguity reasons attached to descriptors whose resolution is incomplete.
const (
	ReasonProbeDisabled    = "probe_disabled"
	ReasonProbeUnsupported = "probe_unsupported"
	ReasonNoMatch          = "no_match"
)

// Ambiguity marks a descriptor that is present but only partially resolved.
type Ambiguity struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// InverseRef points at the opposite descriptor within the same graph.
type InverseRef struct {
	Table      string `json:"table"`
	MethodName string `json:"methodName"`
}

// MorphTarget is one resolved owner table of a polymorphic reference.
type MorphTarget struct {
	Table              string `json:"table"`
	DiscriminatorValue string `json:"discriminatorValue"`
	InverseMethod      string `json:"inverseMethod,omitempty"`
}

// Relationship is a relationship descriptor. Fields not used by Kind stay zero.
type Relationship struct {
	Kind        Kind   `json:"kind"`
	LocalTable  string `json:"localTable"`
	TargetTable string `json:"targetTable,omitempty"`
	MethodName  string `json:"methodName"`
	Source      Source `json:"source"`

	// Direct reference
	LocalColumn  string               `json:"localColumn,omitempty"`
	TargetColumn string               `json:"targetColumn,omitempty"`
	Required     bool                 `json:"required,omitempty"`
	OnDelete     introspection.Action `json:"onDelete,omitempty"`
	OnUpdate     introspection.Action `json:"onUpdate,omitempty"`

	// Inverse collection; ForeignKey lives on TargetTable, RelatedKey on LocalTable.
	ForeignKey    string      `json:"foreignKey,omitempty"`
	RelatedKey    string      `json:"relatedKey,omitempty"`
	CascadeDelete bool        `json:"cascadeDelete,omitempty"`
	CascadeUpdate bool        `json:"cascadeUpdate,omitempty"`
	Cardinality   Cardinality `json:"cardinality,omitempty"`

	// Many-to-many
	JunctionTable      string   `json:"junctionTable,omitempty"`
	JunctionLocalKey   string   `json:"junctionLocalKey,omitempty"`
	JunctionTargetKey  string   `json:"junctionTargetKey,omitempty"`
	LocalKey           string   `json:"localKey,omitempty"`
	TargetKey          string   `json:"targetKey,omitempty"`
	ExtraAttributes    []string `json:"extraAttributes,omitempty"`
	HasTimestamps      bool     `json:"hasTimestamps,omitempty"`
	HasSoftDelete      bool     `json:"hasSoftDelete,omitempty"`
	ByNamingConvention bool     `json:"byNamingConvention,omitempty"`

	// Polymorphic reference and collection
	MorphName          string        `json:"morphName,omitempty"`
	TypeColumn         string        `json:"typeColumn,omitempty"`
	IDColumn           string        `json:"idColumn,omitempty"`
	ResolvedTargets    []MorphTarget `json:"resolvedTargets,omitempty"`
	DiscriminatorValue string        `json:"discriminatorValue,omitempty"`

	Inverse   *InverseRef `json:"inverse,omitempty"`
	Ambiguity *Ambiguity  `json:"ambiguity,omitempty"`
}

// Key identifies a descriptor within its owning table.
type Key struct {
	Table  string
	Method string
}

// Key returns the merge key (local table, method name).
func (r Relationship) Key() Key {
	return Key{Table: r.LocalTable, Method: r.MethodName}
}

// Ambiguous reports whether the descriptor carries an unresolved ambiguity.
func (r Relationship) Ambiguous() bool {
	return r.Ambiguity != nil
}

// Clone returns a copy that shares no slices or pointers with r.
func (r Relationship) Clone() Relationship {
	out := r
	if r.ExtraAttributes != nil {
		out.ExtraAttributes = append([]string(nil), r.ExtraAttributes...)
	}
	if r.ResolvedTargets != nil {
		out.ResolvedTargets = append([]MorphTarget(nil), r.ResolvedTargets...)
	}
	if r.Inverse != nil {
		inv := *r.Inverse
		out.Inverse = &inv
	}
	if r.Ambiguity != nil {
		amb := *r.Ambiguity
		out.Ambiguity = &amb
	}
	return out
}

// WithMethodName returns a copy with a different method name.
func (r Relationship) WithMethodName(name string) Relationship {
	out := r.Clone()
	out.MethodName = name
	return out
}

// WithInverse returns a copy pointing at its opposite descriptor.
func (r Relationship) WithInverse(table, method string) Relationship {
	out := r.Clone()
	out.Inverse = &InverseRef{Table: table, MethodName: method}
	return out
}

// WithAmbiguity returns a copy marked ambiguous.
func (r Relationship) WithAmbiguity(reason, detail string) Relationship {
	out := r.Clone()
	out.Ambiguity = &Ambiguity{Reason: reason, Detail: detail}
	return out
}

// WithResolvedTargets returns a copy whose targets are replaced, sorted by
// table. Any ambiguity is cleared when at least one target resolved.
func (r Relationship) WithResolvedTargets(targets []MorphTarget) Relationship {
	out := r.Clone()
	out.ResolvedTargets = append([]MorphTarget(nil), targets...)
	sort.SliceStable(out.ResolvedTargets, func(i, j int) bool {
		a, b := out.ResolvedTargets[i], out.ResolvedTargets[j]
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		return a.DiscriminatorValue < b.DiscriminatorValue
	})
	if len(out.ResolvedTargets) > 0 {
		out.Ambiguity = nil
	}
	return out
}

// WithCascade returns a copy with explicit cascade flags.
func (r Relationship) WithCascade(onDelete, onUpdate bool) Relationship {
	out := r.Clone()
	out.CascadeDelete = onDelete
	out.CascadeUpdate = onUpdate
	return out
}

// Validate checks that the fields required by Kind are present.
func (r Relationship) Validate() error {
	if r.LocalTable == "" {
		return fmt.Errorf("relationship has no local table")
	}
	if r.MethodName == "" {
		return fmt.Errorf("relationship on %s has no method name", r.LocalTable)
	}
	missing := func(field string) error {
		return fmt.Errorf("%s relationship %s.%s requires %s", r.Kind, r.LocalTable, r.MethodName, field)
	}
	switch r.Kind {
	case KindDirectReference:
		if r.TargetTable == "" {
			return missing("target_table")
		}
		if r.LocalColumn == "" {
			return missing("local_column")
		}
	case KindInverseCollection:
		if r.TargetTable == "" {
			return missing("target_table")
		}
		if r.ForeignKey == "" {
			return missing("foreign_key")
		}
		if r.Cardinality != One && r.Cardinality != Many {
			return missing("cardinality one or many")
		}
	case KindManyToMany:
		if r.TargetTable == "" {
			return missing("target_table")
		}
		if r.JunctionTable == "" {
			return missing("junction_table")
		}
		if r.JunctionLocalKey == "" || r.JunctionTargetKey == "" {
			return missing("junction_local_key and junction_target_key")
		}
	case KindPolymorphicReference:
		if r.MorphName == "" {
			return missing("morph_name")
		}
	case KindPolymorphicCollection:
		if r.TargetTable == "" {
			return missing("target_table")
		}
		if r.MorphName == "" {
			return missing("morph_name")
		}
		if r.Cardinality != One && r.Cardinality != Many {
			return missing("cardinality one or many")
		}
	default:
		return fmt.Errorf("relationship %s.%s has unknown kind %q", r.LocalTable, r.MethodName, r.Kind)
	}
	return nil
}
