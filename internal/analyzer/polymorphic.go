package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"relmap/internal/introspection"
	"relmap/internal/relationship"
)

// morphValues returns the discriminator values a type column can hold. The
// members of an ENUM column are authoritative and need no sampling; other
// columns are sampled only when probing is enabled. ok is false when no value
// source is available.
func (r *Run) morphValues(ctx context.Context, table introspection.Table, column string) ([]any, bool, error) {
	if col, found := table.Columns.Lookup(column); found && len(col.EnumValues) > 0 {
		values := make([]any, len(col.EnumValues))
		for i, v := range col.EnumValues {
			values[i] = v
		}
		return values, true, nil
	}
	if !r.analyzer.config.Probe.Enabled {
		return nil, false, nil
	}
	values, err := r.distinctValues(ctx, table.Name, column)
	return values, true, err
}

// resolveMorphTargets reads each polymorphic stub's discriminator values and
// matches them against the identifiers of every other table. Stubs without a
// value source stay unresolved. Unsupported probes leave the descriptor
// ambiguous; any other probe failure aborts.
func (r *Run) resolveMorphTargets(ctx context.Context, focal introspection.Table, tables []introspection.Table, acc []relationship.Relationship) ([]relationship.Relationship, error) {
	out := make([]relationship.Relationship, 0, len(acc))
	for _, rel := range acc {
		if rel.Kind != relationship.KindPolymorphicReference || rel.LocalTable != focal.Name || rel.Source != relationship.SourceDetected {
			out = append(out, rel)
			continue
		}

		values, ok, err := r.morphValues(ctx, focal, rel.TypeColumn)
		if !ok {
			out = append(out, rel)
			continue
		}
		if err != nil {
			if errors.Is(err, introspection.ErrUnsupported) {
				out = append(out, rel.WithAmbiguity(relationship.ReasonProbeUnsupported, err.Error()))
				continue
			}
			return nil, fmt.Errorf("failed to probe %s.%s: %w", focal.Name, rel.TypeColumn, err)
		}

		var targets []relationship.MorphTarget
		for _, table := range tables {
			if table.Name == focal.Name {
				continue
			}
			for _, id := range r.analyzer.namer.ModelIdentifiers(table.Name) {
				if containsValue(values, id) {
					targets = append(targets, relationship.MorphTarget{Table: table.Name, DiscriminatorValue: id})
				}
			}
		}

		if len(targets) == 0 {
			out = append(out, rel.WithResolvedTargets(nil).WithAmbiguity(relationship.ReasonNoMatch,
				fmt.Sprintf("%d discriminator values matched no table", len(values))))
			continue
		}
		out = append(out, rel.WithResolvedTargets(targets))
	}
	return out, nil
}

// morphCollections emits the owner-side descriptors: for every other table
// with a polymorphic pair whose discriminator values identify the focal table. The
// most specific identifier present becomes the discriminator value.
func (r *Run) morphCollections(ctx context.Context, focal introspection.Table, tables []introspection.Table, acc []relationship.Relationship) ([]relationship.Relationship, error) {
	identifiers := r.analyzer.namer.ModelIdentifiers(focal.Name)

	var found []relationship.Relationship
	for _, child := range tables {
		if child.Name == focal.Name {
			continue
		}
		for _, pair := range morphPairs(child) {
			values, ok, err := r.morphValues(ctx, child, pair.typeColumn)
			if !ok {
				continue
			}
			if err != nil {
				if errors.Is(err, introspection.ErrUnsupported) {
					r.analyzer.logger.Warn("polymorphic collection probe unsupported, skipped",
						slog.String("table", focal.Name),
						slog.String("child", child.Name),
						slog.String("column", pair.typeColumn),
						slog.String("error", err.Error()),
					)
					continue
				}
				return nil, fmt.Errorf("failed to probe %s.%s: %w", child.Name, pair.typeColumn, err)
			}

			value, ok := firstPresent(identifiers, values)
			if !ok {
				continue
			}
			cardinality := relationship.Many
			if child.UniquelyConstrained(pair.typeColumn, pair.idColumn) {
				cardinality = relationship.One
			}
			found = append(found, relationship.Relationship{
				Kind:               relationship.KindPolymorphicCollection,
				LocalTable:         focal.Name,
				TargetTable:        child.Name,
				MethodName:         r.analyzer.namer.MorphCollectionMethod(child.Name, cardinality == relationship.One),
				Source:             relationship.SourceDetected,
				MorphName:          pair.name,
				TypeColumn:         pair.typeColumn,
				IDColumn:           pair.idColumn,
				Cardinality:        cardinality,
				DiscriminatorValue: value,
			})
		}
	}
	return extend(acc, found...), nil
}

func firstPresent(identifiers []string, values []any) (string, bool) {
	for _, id := range identifiers {
		if containsValue(values, id) {
			return id, true
		}
	}
	return "", false
}

func containsValue(values []any, want string) bool {
	for _, v := range values {
		switch s := v.(type) {
		case string:
			if s == want {
				return true
			}
		case []byte:
			if string(s) == want {
				return true
			}
		}
	}
	return false
}
