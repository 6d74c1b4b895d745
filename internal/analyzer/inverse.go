package analyzer

import (
	"relmap/internal/introspection"
	"relmap/internal/relationship"
)

// inverseCollections scans every analyzed table, the focal one included, for
// foreign keys into the focal table's reference key. Without a primary key,
// keys that target a unique index of the focal table are accepted.
func (r *Run) inverseCollections(focal introspection.Table, tables []introspection.Table, acc []relationship.Relationship) []relationship.Relationship {
	var found []relationship.Relationship
	for _, child := range tables {
		var refs []introspection.ForeignKeyConstraint
		for _, fk := range child.ForeignKeys {
			if len(fk.Columns) == 0 || !referencesKey(focal, fk) {
				continue
			}
			refs = append(refs, fk)
		}

		// A self reference is prefixed like a second key so both sides stay distinct.
		isOnlyFK := len(refs) == 1 && child.Name != focal.Name
		for _, fk := range refs {
			cardinality := relationship.Many
			if child.UniquelyConstrained(fk.Columns...) {
				cardinality = relationship.One
			}
			found = append(found, relationship.Relationship{
				Kind:          relationship.KindInverseCollection,
				LocalTable:    focal.Name,
				TargetTable:   child.Name,
				MethodName:    r.analyzer.namer.InverseCollectionMethod(child.Name, fk.Columns[0], cardinality == relationship.One, isOnlyFK),
				Source:        relationship.SourceDetected,
				ForeignKey:    fk.Columns[0],
				RelatedKey:    fk.ReferencedColumns[0],
				CascadeDelete: fk.OnDelete == introspection.ActionCascade,
				CascadeUpdate: fk.OnUpdate == introspection.ActionCascade,
				Cardinality:   cardinality,
			})
		}
	}
	return extend(acc, found...)
}

func referencesKey(focal introspection.Table, fk introspection.ForeignKeyConstraint) bool {
	if fk.ReferencedTable != focal.Name || len(fk.ReferencedColumns) == 0 {
		return false
	}
	if len(focal.PrimaryKey) > 0 {
		return fk.References(focal.Name, focal.PrimaryKey)
	}
	return focal.UniquelyConstrained(fk.ReferencedColumns...)
}
