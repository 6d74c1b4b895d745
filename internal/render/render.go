// Package render encodes command and API results as JSON or YAML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"sigs.k8s.io/yaml"

	"relmap/internal/graph"
	"relmap/internal/relationship"
)

// Format is an output encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml in any case. Empty means JSON.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use json or yaml)", raw)
	}
}

// Write encodes v to w. JSON output is indented and newline terminated.
// YAML goes through the JSON tags so both formats share field names.
func Write(w io.Writer, format Format, v any) error {
	switch format {
	case YAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	case JSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// TableReport is the result of analyzing one table.
type TableReport struct {
	Table         string                      `json:"table"`
	Relationships []relationship.Relationship `json:"relationships"`
	Ambiguous     int                         `json:"ambiguous"`
}

// NewTableReport wraps a table's descriptors. A nil slice renders as empty.
func NewTableReport(table string, rels []relationship.Relationship) TableReport {
	if rels == nil {
		rels = []relationship.Relationship{}
	}
	ambiguous := 0
	for _, rel := range rels {
		if rel.Ambiguous() {
			ambiguous++
		}
	}
	return TableReport{Table: table, Relationships: rels, Ambiguous: ambiguous}
}

// CycleReport lists the reference cycles of a graph.
type CycleReport struct {
	RunID  string     `json:"runId,omitempty"`
	Cycles [][]string `json:"cycles"`
}

// NewCycleReport extracts the cycles from g.
func NewCycleReport(g *graph.Graph) CycleReport {
	cycles := g.Cycles
	if cycles == nil {
		cycles = [][]string{}
	}
	return CycleReport{RunID: g.RunID, Cycles: cycles}
}

// TableList is the set of tables a graph build would analyze.
type TableList struct {
	Tables []string `json:"tables"`
}
