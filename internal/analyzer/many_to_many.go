package analyzer

import (
	"log/slog"

	"relmap/internal/introspection"
	"relmap/internal/junction"
	"relmap/internal/relationship"
)

// manyToMany emits one descriptor per junction candidate. Candidates are found
// by foreign key shape; the junction name only sets ByNamingConvention.
func (r *Run) manyToMany(focal introspection.Table, tables []introspection.Table, acc []relationship.Relationship) []relationship.Relationship {
	byName := make(map[string]introspection.Table, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	var found []relationship.Relationship
	for _, c := range junction.Find(focal.Name, tables, r.analyzer.config.Junction) {
		related := c.RelatedTable()
		if !r.known[related] || len(c.TargetFK.ReferencedColumns) == 0 || len(c.LocalFK.ReferencedColumns) == 0 {
			continue
		}
		if !c.HasCoveringConstraint(byName[c.Table]) {
			r.analyzer.logger.Debug("junction keys are not uniquely constrained",
				slog.String("table", focal.Name),
				slog.String("junction", c.Table),
				slog.String("type", c.Type.String()),
			)
		}

		targetKey := c.TargetFK.Columns[0]
		found = append(found, relationship.Relationship{
			Kind:               relationship.KindManyToMany,
			LocalTable:         focal.Name,
			TargetTable:        related,
			MethodName:         r.analyzer.namer.ManyToManyMethod(related, targetKey, c.SelfReferential),
			Source:             relationship.SourceDetected,
			JunctionTable:      c.Table,
			JunctionLocalKey:   c.LocalFK.Columns[0],
			JunctionTargetKey:  targetKey,
			LocalKey:           c.LocalFK.ReferencedColumns[0],
			TargetKey:          c.TargetFK.ReferencedColumns[0],
			ExtraAttributes:    c.ExtraAttributes,
			HasTimestamps:      c.HasTimestamps,
			HasSoftDelete:      c.HasSoftDelete,
			ByNamingConvention: r.analyzer.namer.MatchesJunctionName(c.Table, focal.Name, related),
		})
	}
	return extend(acc, found...)
}
