package analyzer

import (
	"relmap/internal/introspection"
	"relmap/internal/relationship"
)

// registrationOrder fixes which descriptor keeps a contested name.
var registrationOrder = []relationship.Kind{
	relationship.KindDirectReference,
	relationship.KindPolymorphicReference,
	relationship.KindInverseCollection,
	relationship.KindManyToMany,
	relationship.KindPolymorphicCollection,
}

// disambiguate makes method names unique within the focal table. Column names
// are claimed first; earlier kinds in registrationOrder win the plain name.
func (r *Run) disambiguate(focal introspection.Table, acc []relationship.Relationship) []relationship.Relationship {
	resolver := r.analyzer.namer.NewCollisionResolver(focal.Name, focal.Columns.Names())
	out := make([]relationship.Relationship, len(acc))
	for _, kind := range registrationOrder {
		for i, rel := range acc {
			if rel.Kind != kind {
				continue
			}
			name := resolver.Register(rel.MethodName, collisionSource(rel))
			if name == rel.MethodName {
				out[i] = rel
				continue
			}
			out[i] = rel.WithMethodName(name)
		}
	}
	return out
}

func collisionSource(rel relationship.Relationship) string {
	switch rel.Kind {
	case relationship.KindDirectReference:
		return "direct:" + rel.LocalColumn
	case relationship.KindInverseCollection:
		return "inverse:" + rel.TargetTable + "." + rel.ForeignKey
	case relationship.KindManyToMany:
		return "m2m:" + rel.JunctionTable + "." + rel.JunctionTargetKey
	case relationship.KindPolymorphicReference:
		return "morph_to:" + rel.MorphName
	case relationship.KindPolymorphicCollection:
		return "morph_many:" + rel.TargetTable + "." + rel.MorphName
	default:
		return string(rel.Kind)
	}
}
