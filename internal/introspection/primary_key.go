package introspection

// PrimaryKeyColumns returns all primary key columns for a table in key order.
// Returns nil if the table has no primary key.
func PrimaryKeyColumns(table Table) []Column {
	var cols []Column
	for _, name := range table.PrimaryKey {
		if col, ok := table.Columns.Lookup(name); ok {
			cols = append(cols, col)
		}
	}
	return cols
}

// ReferenceKey returns the columns other tables are expected to reference:
// the primary key, or the first single-column unique index when there is none.
func ReferenceKey(table Table) []string {
	if len(table.PrimaryKey) > 0 {
		return table.PrimaryKey
	}
	for _, idx := range table.Indexes {
		if idx.Unique && len(idx.Columns) == 1 {
			return idx.Columns
		}
	}
	return nil
}
