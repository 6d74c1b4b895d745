// Package override turns declared relationships from configuration into
// descriptors and merges them over the detected set.
package override

import (
	"fmt"
	"sort"
	"strings"

	"relmap/internal/introspection"
	"relmap/internal/naming"
	"relmap/internal/relationship"
)

// Declaration is one relationship declared for a table in configuration.
// Kind is required; other fields fall back to naming conventions.
type Declaration struct {
	Kind         string `mapstructure:"kind" json:"kind"`
	Method       string `mapstructure:"method" json:"method,omitempty"`
	Target       string `mapstructure:"target" json:"target,omitempty"`
	LocalColumn  string `mapstructure:"local_column" json:"localColumn,omitempty"`
	TargetColumn string `mapstructure:"target_column" json:"targetColumn,omitempty"`
	Required     bool   `mapstructure:"required" json:"required,omitempty"`
	OnDelete     string `mapstructure:"on_delete" json:"onDelete,omitempty"`
	OnUpdate     string `mapstructure:"on_update" json:"onUpdate,omitempty"`

	ForeignKey    string `mapstructure:"foreign_key" json:"foreignKey,omitempty"`
	RelatedKey    string `mapstructure:"related_key" json:"relatedKey,omitempty"`
	Cardinality   string `mapstructure:"cardinality" json:"cardinality,omitempty"`
	CascadeDelete bool   `mapstructure:"cascade_delete" json:"cascadeDelete,omitempty"`
	CascadeUpdate bool   `mapstructure:"cascade_update" json:"cascadeUpdate,omitempty"`

	Junction          string   `mapstructure:"junction" json:"junction,omitempty"`
	JunctionLocalKey  string   `mapstructure:"junction_local_key" json:"junctionLocalKey,omitempty"`
	JunctionTargetKey string   `mapstructure:"junction_target_key" json:"junctionTargetKey,omitempty"`
	LocalKey          string   `mapstructure:"local_key" json:"localKey,omitempty"`
	TargetKey         string   `mapstructure:"target_key" json:"targetKey,omitempty"`
	Pivot             []string `mapstructure:"pivot" json:"pivot,omitempty"`
	Timestamps        bool     `mapstructure:"timestamps" json:"timestamps,omitempty"`
	SoftDelete        bool     `mapstructure:"soft_delete" json:"softDelete,omitempty"`

	MorphName          string `mapstructure:"morph_name" json:"morphName,omitempty"`
	TypeColumn         string `mapstructure:"type_column" json:"typeColumn,omitempty"`
	IDColumn           string `mapstructure:"id_column" json:"idColumn,omitempty"`
	DiscriminatorValue string `mapstructure:"discriminator_value" json:"discriminatorValue,omitempty"`
	// Targets maps owner table to discriminator value for morph_to declarations.
	Targets map[string]string `mapstructure:"targets" json:"targets,omitempty"`
}

// Set holds built override descriptors per local table, in declaration order.
type Set map[string][]relationship.Relationship

// For returns copies of the overrides declared for table.
func (s Set) For(table string) []relationship.Relationship {
	declared := s[table]
	out := make([]relationship.Relationship, len(declared))
	for i, rel := range declared {
		out[i] = rel.Clone()
	}
	return out
}

// Build converts declarations keyed by local table into descriptors.
// Errors name the table and the declaration index.
func Build(declarations map[string][]Declaration, namer *naming.Namer) (Set, error) {
	set := make(Set, len(declarations))
	tables := make([]string, 0, len(declarations))
	for table := range declarations {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		for i, decl := range declarations[table] {
			rel, err := decl.build(table, namer)
			if err != nil {
				return nil, fmt.Errorf("override %s[%d]: %w", table, i, err)
			}
			set[table] = append(set[table], rel)
		}
	}
	return set, nil
}

func (d Declaration) build(table string, namer *naming.Namer) (relationship.Relationship, error) {
	if d.Kind == "" {
		return relationship.Relationship{}, fmt.Errorf("kind is required")
	}
	kind, err := relationship.ParseKind(d.Kind)
	if err != nil {
		return relationship.Relationship{}, err
	}

	rel := relationship.Relationship{
		Kind:        kind,
		LocalTable:  table,
		TargetTable: d.Target,
		MethodName:  d.Method,
		Source:      relationship.SourceOverride,
	}

	switch kind {
	case relationship.KindDirectReference:
		if d.Target == "" {
			return rel, fmt.Errorf("target is required for %s", kind)
		}
		rel.LocalColumn = orDefault(d.LocalColumn, conventionalKey(namer, d.Target))
		rel.TargetColumn = orDefault(d.TargetColumn, "id")
		rel.Required = d.Required
		rel.OnDelete = introspection.ParseAction(d.OnDelete)
		rel.OnUpdate = introspection.ParseAction(d.OnUpdate)
		if rel.MethodName == "" {
			rel.MethodName = namer.DirectReferenceMethod(rel.LocalColumn, d.Target)
		}

	case relationship.KindInverseCollection:
		if d.Target == "" {
			return rel, fmt.Errorf("target is required for %s", kind)
		}
		cardinality, err := parseCardinality(d.Cardinality, d.Kind)
		if err != nil {
			return rel, err
		}
		rel.Cardinality = cardinality
		rel.ForeignKey = orDefault(d.ForeignKey, conventionalKey(namer, table))
		rel.RelatedKey = orDefault(d.RelatedKey, "id")
		rel.CascadeDelete = d.CascadeDelete
		rel.CascadeUpdate = d.CascadeUpdate
		if rel.MethodName == "" {
			rel.MethodName = namer.InverseCollectionMethod(d.Target, rel.ForeignKey, cardinality == relationship.One, true)
		}

	case relationship.KindManyToMany:
		if d.Target == "" {
			return rel, fmt.Errorf("target is required for %s", kind)
		}
		rel.JunctionTable = orDefault(d.Junction, namer.PivotName(table, d.Target))
		rel.JunctionLocalKey = orDefault(d.JunctionLocalKey, conventionalKey(namer, table))
		rel.JunctionTargetKey = orDefault(d.JunctionTargetKey, conventionalKey(namer, d.Target))
		rel.LocalKey = orDefault(d.LocalKey, "id")
		rel.TargetKey = orDefault(d.TargetKey, "id")
		rel.ExtraAttributes = append([]string(nil), d.Pivot...)
		rel.HasTimestamps = d.Timestamps
		rel.HasSoftDelete = d.SoftDelete
		rel.CascadeDelete = d.CascadeDelete
		rel.CascadeUpdate = d.CascadeUpdate
		if rel.MethodName == "" {
			rel.MethodName = namer.ManyToManyMethod(d.Target, rel.JunctionTargetKey, table == d.Target)
		}

	case relationship.KindPolymorphicReference:
		if d.MorphName == "" {
			return rel, fmt.Errorf("morph_name is required for %s", kind)
		}
		rel.TargetTable = ""
		rel.MorphName = d.MorphName
		rel.TypeColumn = orDefault(d.TypeColumn, d.MorphName+"_type")
		rel.IDColumn = orDefault(d.IDColumn, d.MorphName+"_id")
		rel.Required = d.Required
		targets := make([]relationship.MorphTarget, 0, len(d.Targets))
		for target, value := range d.Targets {
			if value == "" {
				value = namer.ModelIdentifiers(target)[0]
			}
			targets = append(targets, relationship.MorphTarget{Table: target, DiscriminatorValue: value})
		}
		rel = rel.WithResolvedTargets(targets)
		if rel.MethodName == "" {
			rel.MethodName = namer.MorphToMethod(d.MorphName)
		}

	case relationship.KindPolymorphicCollection:
		if d.Target == "" {
			return rel, fmt.Errorf("target is required for %s", kind)
		}
		if d.MorphName == "" {
			return rel, fmt.Errorf("morph_name is required for %s", kind)
		}
		cardinality, err := parseCardinality(d.Cardinality, d.Kind)
		if err != nil {
			return rel, err
		}
		rel.Cardinality = cardinality
		rel.MorphName = d.MorphName
		rel.TypeColumn = orDefault(d.TypeColumn, d.MorphName+"_type")
		rel.IDColumn = orDefault(d.IDColumn, d.MorphName+"_id")
		rel.DiscriminatorValue = d.DiscriminatorValue
		if rel.DiscriminatorValue == "" {
			rel.DiscriminatorValue = namer.ModelIdentifiers(table)[0]
		}
		rel.CascadeDelete = d.CascadeDelete
		rel.CascadeUpdate = d.CascadeUpdate
		if rel.MethodName == "" {
			rel.MethodName = namer.MorphCollectionMethod(d.Target, cardinality == relationship.One)
		}
	}

	if err := rel.Validate(); err != nil {
		return rel, err
	}
	return rel, nil
}

// parseCardinality honors explicit values, then the has_one alias, then many.
func parseCardinality(raw, kind string) (relationship.Cardinality, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		if kind == "has_one" || kind == "morph_one" {
			return relationship.One, nil
		}
		return relationship.Many, nil
	case string(relationship.One):
		return relationship.One, nil
	case string(relationship.Many):
		return relationship.Many, nil
	default:
		return "", fmt.Errorf("invalid cardinality %q (use one or many)", raw)
	}
}

// conventionalKey is the FK column a table is conventionally referenced by.
// Example: "users" -> "user_id"
func conventionalKey(namer *naming.Namer, table string) string {
	return strings.ToLower(namer.Singularize(table)) + "_id"
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// Merge overlays overrides on the detected descriptors, keyed by
// (local table, method name). A direct-reference override is also keyed by
// its local column, so renaming the method of a detected reference replaces
// it instead of adding a second one. A matching override replaces the
// detected descriptor wholesale at its position; the rest are appended in
// order.
func Merge(detected, overrides []relationship.Relationship) []relationship.Relationship {
	merged := make([]relationship.Relationship, 0, len(detected)+len(overrides))
	index := make(map[relationship.Key]int, len(detected)+len(overrides))
	byColumn := make(map[string]int)
	for _, rel := range detected {
		index[rel.Key()] = len(merged)
		if rel.Kind == relationship.KindDirectReference && rel.LocalColumn != "" {
			byColumn[rel.LocalColumn] = len(merged)
		}
		merged = append(merged, rel.Clone())
	}

	dropped := make(map[int]bool)
	for _, rel := range overrides {
		rel = rel.Clone()
		rel.Source = relationship.SourceOverride

		pos, ok := index[rel.Key()]
		if rel.Kind == relationship.KindDirectReference && rel.LocalColumn != "" {
			if colPos, found := byColumn[rel.LocalColumn]; found {
				// The method name now belongs to the column's reference.
				if ok && pos != colPos {
					dropped[pos] = true
					if byColumn[merged[pos].LocalColumn] == pos {
						delete(byColumn, merged[pos].LocalColumn)
					}
				}
				pos, ok = colPos, true
			}
		}
		if !ok {
			pos = len(merged)
			merged = append(merged, rel)
		} else {
			delete(index, merged[pos].Key())
			merged[pos] = rel
		}
		index[rel.Key()] = pos
		if rel.Kind == relationship.KindDirectReference && rel.LocalColumn != "" {
			byColumn[rel.LocalColumn] = pos
		}
	}

	if len(dropped) == 0 {
		return merged
	}
	kept := merged[:0]
	for i, rel := range merged {
		if !dropped[i] {
			kept = append(kept, rel)
		}
	}
	return kept
}
