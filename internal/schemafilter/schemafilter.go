// Package schemafilter applies allow/deny glob filters to table names.
package schemafilter

import (
	"fmt"
	"path"
	"slices"
	"strings"
)

// Config controls which tables take part in analysis.
type Config struct {
	AllowTables []string `mapstructure:"allow_tables"`
	// DenyTables are excluded entirely: neither analyzed nor related to.
	DenyTables []string `mapstructure:"deny_tables"`
}

// WithDenied returns a copy of the config with extra deny patterns appended.
func (c Config) WithDenied(patterns ...string) Config {
	out := Config{
		AllowTables: slices.Clone(c.AllowTables),
		DenyTables:  slices.Clone(c.DenyTables),
	}
	out.DenyTables = append(out.DenyTables, patterns...)
	return out
}

// Validate reports the first malformed glob pattern.
func (c Config) Validate() error {
	for _, group := range [][]string{c.AllowTables, c.DenyTables} {
		for _, pattern := range group {
			if _, err := path.Match(strings.ToLower(pattern), ""); err != nil {
				return fmt.Errorf("invalid table pattern %q: %w", pattern, err)
			}
		}
	}
	return nil
}

// Apply returns the allowed table names, preserving order.
// Missing allow lists default to allow-all; deny rules always win.
func Apply(tables []string, cfg Config) []string {
	filtered := make([]string, 0, len(tables))
	for _, table := range tables {
		if TableAllowed(table, cfg) {
			filtered = append(filtered, table)
		}
	}
	return filtered
}

// TableAllowed reports whether a single table passes the filter.
func TableAllowed(table string, cfg Config) bool {
	return tableAllowed(table, cfg.AllowTables, cfg.DenyTables)
}

func tableAllowed(table string, allow, deny []string) bool {
	if matchesAny(table, deny) {
		return false
	}
	if len(allow) == 0 {
		return true
	}
	return matchesAny(table, allow)
}

func matchesAny(value string, patterns []string) bool {
	value = strings.ToLower(value)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		// matching should be case-insensitive
		ok, err := path.Match(strings.ToLower(pattern), value)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}
