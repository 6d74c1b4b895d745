package analyzer

import (
	"log/slog"
	"strings"

	"relmap/internal/introspection"
	"relmap/internal/relationship"
)

// directReferences emits one descriptor per foreign key held by the focal
// table. Composite keys are represented by their first column pair.
func (r *Run) directReferences(focal introspection.Table, acc []relationship.Relationship) []relationship.Relationship {
	var found []relationship.Relationship
	for _, fk := range focal.ForeignKeys {
		if len(fk.Columns) == 0 || len(fk.ReferencedColumns) == 0 {
			continue
		}
		if !r.known[fk.ReferencedTable] {
			r.analyzer.logger.Debug("skipping reference to excluded table",
				slog.String("table", focal.Name),
				slog.String("column", fk.Columns[0]),
				slog.String("target", fk.ReferencedTable),
			)
			continue
		}

		localColumn := fk.Columns[0]
		required := false
		if col, ok := focal.Columns.Lookup(localColumn); ok {
			required = !(col.Nullable || col.HasDefault)
		}

		found = append(found, relationship.Relationship{
			Kind:         relationship.KindDirectReference,
			LocalTable:   focal.Name,
			TargetTable:  fk.ReferencedTable,
			MethodName:   r.analyzer.namer.DirectReferenceMethod(localColumn, fk.ReferencedTable),
			Source:       relationship.SourceDetected,
			LocalColumn:  localColumn,
			TargetColumn: fk.ReferencedColumns[0],
			Required:     required,
			OnDelete:     fk.OnDelete,
			OnUpdate:     fk.OnUpdate,
		})
	}
	return extend(acc, found...)
}

// morphPair is a "{name}_type" + "{name}_id" column pair without FK backing.
type morphPair struct {
	name       string
	typeColumn string
	idColumn   string
	required   bool
}

// morphPairs finds polymorphic column pairs in declaration order. The type
// column must hold character data.
func morphPairs(table introspection.Table) []morphPair {
	var pairs []morphPair
	for _, col := range table.Columns {
		name, ok := strings.CutSuffix(col.Name, "_type")
		if !ok || name == "" || !col.Type.IsTextual() || table.IsForeignKeyColumn(col.Name) {
			continue
		}
		idColumn := name + "_id"
		idCol, ok := table.Columns.Lookup(idColumn)
		if !ok || table.IsForeignKeyColumn(idColumn) {
			continue
		}
		pairs = append(pairs, morphPair{
			name:       name,
			typeColumn: col.Name,
			idColumn:   idColumn,
			required:   !col.Nullable && !idCol.Nullable,
		})
	}
	return pairs
}

// morphReferences emits target-less stubs for each polymorphic pair. Targets
// are resolved by the probe pass when it runs.
func (r *Run) morphReferences(focal introspection.Table, acc []relationship.Relationship) []relationship.Relationship {
	var found []relationship.Relationship
	for _, pair := range morphPairs(focal) {
		stub := relationship.Relationship{
			Kind:       relationship.KindPolymorphicReference,
			LocalTable: focal.Name,
			MethodName: r.analyzer.namer.MorphToMethod(pair.name),
			Source:     relationship.SourceDetected,
			MorphName:  pair.name,
			TypeColumn: pair.typeColumn,
			IDColumn:   pair.idColumn,
			Required:   pair.required,
		}
		found = append(found, stub.WithAmbiguity(relationship.ReasonProbeDisabled, "discriminator values were not sampled"))
	}
	return extend(acc, found...)
}
