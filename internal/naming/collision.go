package naming

import (
	"fmt"
	"log/slog"
)

// CollisionResolver tracks the method names registered for one table and
// resolves collisions by applying numeric suffixes.
type CollisionResolver struct {
	table   string
	columns map[string]string // method-cased column name → column
	seen    map[string]string // method name → source
	namer   *Namer
	logger  *slog.Logger
}

// NewCollisionResolver creates a resolver for a table's relationship methods.
// Column names are claimed first, so accessors never shadow attributes.
func (n *Namer) NewCollisionResolver(table string, columns []string) *CollisionResolver {
	c := &CollisionResolver{
		table:   table,
		columns: make(map[string]string, len(columns)),
		seen:    make(map[string]string),
		namer:   n,
		logger:  n.logger,
	}
	for _, col := range columns {
		c.columns[n.Method(col)] = col
		c.columns[col] = col
	}
	return c
}

// Register claims a method name and returns the resolved name. Names that
// shadow a column or a reserved model member get a "Relation" suffix; names
// already claimed by another relationship get the next free numeric suffix.
func (c *CollisionResolver) Register(name, source string) string {
	if column, ok := c.columns[name]; ok || isReservedMethodName(name) {
		renamed := c.namer.Method(toSnakeCase(name) + "_relation")
		c.logger.Warn("relationship method shadows a model member, auto-suffixed",
			slog.String("table", c.table),
			slog.String("original", name),
			slog.String("renamed", renamed),
			slog.String("column", column),
		)
		name = renamed
	}
	return c.resolveCollision(name, source)
}

// Exists checks if a method name is already registered.
func (c *CollisionResolver) Exists(name string) bool {
	_, ok := c.seen[name]
	return ok
}

// resolveCollision registers name, or the next available numeric suffix.
func (c *CollisionResolver) resolveCollision(name, source string) string {
	if _, exists := c.seen[name]; !exists {
		c.seen[name] = source
		return name
	}

	existingSource := c.seen[name]
	c.logger.Warn("relationship method collision detected, applying suffix",
		slog.String("table", c.table),
		slog.String("name", name),
		slog.String("existing_source", existingSource),
		slog.String("new_source", source),
	)

	for i := 2; ; i++ {
		suffixed := fmt.Sprintf("%s%d", name, i)
		if _, exists := c.seen[suffixed]; !exists {
			c.seen[suffixed] = source
			return suffixed
		}
	}
}
