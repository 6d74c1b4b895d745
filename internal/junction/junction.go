// Package junction finds the junction tables that link a focal table to its
// many-to-many peers, and extracts the pivot attributes each junction carries.
package junction

import (
	"relmap/internal/introspection"
)

// Type classifies a junction by the columns it carries beyond its keys.
type Type int

const (
	// PureJunction holds only the two linking keys (plus bookkeeping columns).
	PureJunction Type = iota
	// AttributeJunction carries extra pivot attributes.
	AttributeJunction
)

// String returns a human-readable representation of the junction type.
func (t Type) String() string {
	switch t {
	case PureJunction:
		return "PureJunction"
	case AttributeJunction:
		return "AttributeJunction"
	default:
		return "Unknown"
	}
}

// Config names the bookkeeping columns that are not pivot attributes.
type Config struct {
	CreatedAtColumn  string `mapstructure:"created_at_column"`
	UpdatedAtColumn  string `mapstructure:"updated_at_column"`
	SoftDeleteColumn string `mapstructure:"soft_delete_column"`
}

// DefaultConfig returns the conventional timestamp and soft-delete columns.
func DefaultConfig() Config {
	return Config{
		CreatedAtColumn:  "created_at",
		UpdatedAtColumn:  "updated_at",
		SoftDeleteColumn: "deleted_at",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CreatedAtColumn == "" {
		c.CreatedAtColumn = d.CreatedAtColumn
	}
	if c.UpdatedAtColumn == "" {
		c.UpdatedAtColumn = d.UpdatedAtColumn
	}
	if c.SoftDeleteColumn == "" {
		c.SoftDeleteColumn = d.SoftDeleteColumn
	}
	return c
}

// Candidate is one many-to-many path from the focal table through Table.
type Candidate struct {
	// Table is the junction table name.
	Table string
	// LocalFK points from the junction to the focal table.
	LocalFK introspection.ForeignKeyConstraint
	// TargetFK points from the junction to the related table.
	TargetFK introspection.ForeignKeyConstraint
	// SelfReferential is set when both keys point at the focal table.
	SelfReferential bool
	Type            Type
	// ExtraAttributes lists pivot columns in declaration order.
	ExtraAttributes []string
	HasTimestamps   bool
	HasSoftDelete   bool
}

// RelatedTable is the table on the far side of the junction.
func (c Candidate) RelatedTable() string {
	return c.TargetFK.ReferencedTable
}

// Find returns the junction candidates for focal among tables, in table order.
// A table qualifies when it has at least two foreign keys and exactly one of
// them points at focal; each other key yields a candidate. A table with exactly
// two keys pointing at focal yields one candidate per direction, whatever
// other keys it carries.
func Find(focal string, tables []introspection.Table, cfg Config) []Candidate {
	cfg = cfg.withDefaults()
	var result []Candidate
	for _, table := range tables {
		if table.Name == focal || len(table.ForeignKeys) < 2 {
			continue
		}
		result = append(result, candidatesFor(focal, table, cfg)...)
	}
	return result
}

func candidatesFor(focal string, table introspection.Table, cfg Config) []Candidate {
	var toFocal, others []introspection.ForeignKeyConstraint
	for _, fk := range table.ForeignKeys {
		if len(fk.Columns) == 0 {
			continue
		}
		if fk.ReferencedTable == focal {
			toFocal = append(toFocal, fk)
		} else {
			others = append(others, fk)
		}
	}

	switch {
	case len(toFocal) == 1:
		out := make([]Candidate, 0, len(others))
		for _, other := range others {
			out = append(out, newCandidate(table, toFocal[0], other, false, cfg))
		}
		return out
	case len(toFocal) == 2:
		return []Candidate{
			newCandidate(table, toFocal[0], toFocal[1], true, cfg),
			newCandidate(table, toFocal[1], toFocal[0], true, cfg),
		}
	default:
		return nil
	}
}

func newCandidate(table introspection.Table, local, target introspection.ForeignKeyConstraint, self bool, cfg Config) Candidate {
	keyCols := make(map[string]bool, len(local.Columns)+len(target.Columns))
	for _, col := range local.Columns {
		keyCols[col] = true
	}
	for _, col := range target.Columns {
		keyCols[col] = true
	}

	hasTimestamps := table.Columns.Has(cfg.CreatedAtColumn) && table.Columns.Has(cfg.UpdatedAtColumn)
	hasSoftDelete := table.Columns.Has(cfg.SoftDeleteColumn)
	attrs := findAttributeColumns(table, keyCols, hasTimestamps, cfg)

	junctionType := PureJunction
	if len(attrs) > 0 {
		junctionType = AttributeJunction
	}

	return Candidate{
		Table:           table.Name,
		LocalFK:         local,
		TargetFK:        target,
		SelfReferential: self,
		Type:            junctionType,
		ExtraAttributes: attrs,
		HasTimestamps:   hasTimestamps,
		HasSoftDelete:   hasSoftDelete,
	}
}

// findAttributeColumns returns the columns that are neither linking keys nor
// bookkeeping. Timestamps only count as bookkeeping when both are present.
func findAttributeColumns(table introspection.Table, keyCols map[string]bool, hasTimestamps bool, cfg Config) []string {
	var attrs []string
	for _, col := range table.Columns {
		switch {
		case keyCols[col.Name]:
		case hasTimestamps && (col.Name == cfg.CreatedAtColumn || col.Name == cfg.UpdatedAtColumn):
		case col.Name == cfg.SoftDeleteColumn:
		default:
			attrs = append(attrs, col.Name)
		}
	}
	return attrs
}

// HasCoveringConstraint reports whether the junction's linking keys are
// covered by its primary key or a unique index.
func (c Candidate) HasCoveringConstraint(table introspection.Table) bool {
	required := make(map[string]bool)
	for _, col := range c.LocalFK.Columns {
		required[col] = true
	}
	for _, col := range c.TargetFK.Columns {
		required[col] = true
	}

	pkCols := make(map[string]bool, len(table.PrimaryKey))
	for _, col := range table.PrimaryKey {
		pkCols[col] = true
	}
	if coversAll(pkCols, required) {
		return true
	}
	for _, idx := range table.Indexes {
		if !idx.Unique && !idx.Primary {
			continue
		}
		idxCols := make(map[string]bool, len(idx.Columns))
		for _, col := range idx.Columns {
			idxCols[col] = true
		}
		if coversAll(idxCols, required) {
			return true
		}
	}
	return false
}

// coversAll returns true if 'covering' contains all keys from 'required'.
func coversAll(covering, required map[string]bool) bool {
	for col := range required {
		if !covering[col] {
			return false
		}
	}
	return true
}
