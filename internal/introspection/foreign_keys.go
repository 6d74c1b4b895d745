package introspection

import (
	"fmt"
	"sort"
	"strings"
)

// Action is the referential action applied to dependent rows.
type Action string

const (
	ActionNone     Action = "none"
	ActionCascade  Action = "cascade"
	ActionRestrict Action = "restrict"
	ActionSetNull  Action = "set-null"
)

// ParseAction normalizes catalog spellings of a referential action.
// Word forms ("CASCADE", "SET NULL", "NO_ACTION") and pg_catalog codes
// ("c", "r", "n", "a", "d") are accepted. Unknown values map to none.
func ParseAction(raw string) Action {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("_", " ", "-", " ").Replace(normalized)
	switch normalized {
	case "CASCADE", "C":
		return ActionCascade
	case "RESTRICT", "R":
		return ActionRestrict
	case "SET NULL", "N":
		return ActionSetNull
	default:
		return ActionNone
	}
}

// ForeignKeyConstraint is an ordered mapping of local columns to referenced columns.
type ForeignKeyConstraint struct {
	Name              string   `json:"name,omitempty"`
	Columns           []string `json:"columns"`
	ReferencedTable   string   `json:"referencedTable"`
	ReferencedColumns []string `json:"referencedColumns"`
	OnDelete          Action   `json:"onDelete,omitempty"`
	OnUpdate          Action   `json:"onUpdate,omitempty"`
}

// foreignKeyRow is one column of a constraint as returned by the catalog.
type foreignKeyRow struct {
	ConstraintName   string
	ColumnName       string
	ReferencedTable  string
	ReferencedColumn string
	OrdinalPosition  int
	DeleteRule       string
	UpdateRule       string
}

// groupForeignKeys folds per-column rows into constraints with deterministic ordering.
func groupForeignKeys(fkRows []foreignKeyRow) []ForeignKeyConstraint {
	if len(fkRows) == 0 {
		return nil
	}

	type row struct {
		key   string
		fk    foreignKeyRow
		index int
	}
	rows := make([]row, 0, len(fkRows))
	for i, fk := range fkRows {
		key := fk.ConstraintName
		if key == "" {
			// Unnamed constraints stay isolated to avoid accidental merging.
			key = fmt.Sprintf("__unnamed_%d", i)
		}
		rows = append(rows, row{key: key, fk: fk, index: i})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].key != rows[j].key {
			return rows[i].key < rows[j].key
		}
		iPos := rows[i].fk.OrdinalPosition
		jPos := rows[j].fk.OrdinalPosition
		if iPos != jPos {
			if iPos == 0 {
				return false
			}
			if jPos == 0 {
				return true
			}
			return iPos < jPos
		}
		return rows[i].index < rows[j].index
	})

	var orderedKeys []string
	grouped := make(map[string]*ForeignKeyConstraint)
	for _, item := range rows {
		group, ok := grouped[item.key]
		if !ok {
			group = &ForeignKeyConstraint{
				Name:            item.fk.ConstraintName,
				ReferencedTable: item.fk.ReferencedTable,
				OnDelete:        ParseAction(item.fk.DeleteRule),
				OnUpdate:        ParseAction(item.fk.UpdateRule),
			}
			grouped[item.key] = group
			orderedKeys = append(orderedKeys, item.key)
		}
		group.Columns = append(group.Columns, item.fk.ColumnName)
		group.ReferencedColumns = append(group.ReferencedColumns, item.fk.ReferencedColumn)
	}

	result := make([]ForeignKeyConstraint, 0, len(orderedKeys))
	for _, key := range orderedKeys {
		result = append(result, *grouped[key])
	}
	return result
}

// References reports whether the constraint targets exactly the given columns of table.
func (fk ForeignKeyConstraint) References(table string, columns []string) bool {
	if fk.ReferencedTable != table || len(fk.ReferencedColumns) != len(columns) {
		return false
	}
	for i := range columns {
		if fk.ReferencedColumns[i] != columns[i] {
			return false
		}
	}
	return true
}
