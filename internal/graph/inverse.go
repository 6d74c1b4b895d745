package graph

import (
	"relmap/internal/relationship"
)

// linkInverses pairs descriptors with their opposite side:
//   - direct reference and inverse collection, by foreign key column
//   - many-to-many in both directions, by junction and swapped keys
//   - each polymorphic reference target and its collection, by morph name
//
// Polymorphic references record the inverse per target rather than in Inverse.
func linkInverses(tables []string, byTable map[string][]relationship.Relationship) map[string][]relationship.Relationship {
	linked := make(map[string][]relationship.Relationship, len(byTable))
	for table, rels := range byTable {
		out := make([]relationship.Relationship, len(rels))
		for i, rel := range rels {
			out[i] = rel.Clone()
		}
		linked[table] = out
	}

	for _, table := range tables {
		rels := linked[table]
		for i := range rels {
			rel := rels[i]
			switch rel.Kind {
			case relationship.KindDirectReference:
				j, ok := find(linked[rel.TargetTable], func(c relationship.Relationship) bool {
					return c.Kind == relationship.KindInverseCollection &&
						c.TargetTable == rel.LocalTable &&
						c.ForeignKey == rel.LocalColumn
				})
				if ok {
					pair(linked, table, i, rel.TargetTable, j)
				}

			case relationship.KindManyToMany:
				j, ok := find(linked[rel.TargetTable], func(c relationship.Relationship) bool {
					return c.Kind == relationship.KindManyToMany &&
						c.TargetTable == rel.LocalTable &&
						c.JunctionTable == rel.JunctionTable &&
						c.JunctionLocalKey == rel.JunctionTargetKey &&
						c.JunctionTargetKey == rel.JunctionLocalKey
				})
				if ok {
					pair(linked, table, i, rel.TargetTable, j)
				}

			case relationship.KindPolymorphicReference:
				if len(rel.ResolvedTargets) == 0 {
					continue
				}
				targets := make([]relationship.MorphTarget, len(rel.ResolvedTargets))
				copy(targets, rel.ResolvedTargets)
				for k, target := range targets {
					j, ok := find(linked[target.Table], func(c relationship.Relationship) bool {
						return c.Kind == relationship.KindPolymorphicCollection &&
							c.TargetTable == rel.LocalTable &&
							c.MorphName == rel.MorphName
					})
					if !ok {
						continue
					}
					targets[k].InverseMethod = linked[target.Table][j].MethodName
					linked[target.Table][j] = linked[target.Table][j].WithInverse(rel.LocalTable, rel.MethodName)
				}
				updated := rel.Clone()
				updated.ResolvedTargets = targets
				rels[i] = updated
			}
		}
	}
	return linked
}

// pair points two descriptors at each other.
func pair(linked map[string][]relationship.Relationship, aTable string, a int, bTable string, b int) {
	left, right := linked[aTable][a], linked[bTable][b]
	linked[aTable][a] = left.WithInverse(bTable, right.MethodName)
	linked[bTable][b] = right.WithInverse(aTable, left.MethodName)
}

func find(rels []relationship.Relationship, match func(relationship.Relationship) bool) (int, bool) {
	for i, rel := range rels {
		if match(rel) {
			return i, true
		}
	}
	return -1, false
}
