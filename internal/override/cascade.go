package override

import (
	"fmt"
	"sort"
	"strings"

	"relmap/internal/relationship"
)

// CascadeRule declares how deletes and updates propagate across a relationship.
type CascadeRule struct {
	Delete bool `mapstructure:"delete" json:"delete"`
	Update bool `mapstructure:"update" json:"update"`
}

// CascadePolicy maps "<table>.<method>" to the rule for that relationship.
type CascadePolicy map[string]CascadeRule

// NewCascadePolicy flattens rules nested by table and then method, which is
// how configuration loaders read dotted keys.
func NewCascadePolicy(byTable map[string]map[string]CascadeRule) CascadePolicy {
	policy := make(CascadePolicy)
	for table, methods := range byTable {
		for method, rule := range methods {
			policy[table+"."+method] = rule
		}
	}
	return policy
}

// Validate checks that every key names a table and a method.
func (p CascadePolicy) Validate() error {
	for _, key := range p.keys() {
		if _, _, ok := splitKey(key); !ok {
			return fmt.Errorf("invalid cascade key %q (use <table>.<method>)", key)
		}
	}
	return nil
}

// Apply sets cascade flags on the collection-side descriptors of table that
// the policy names. It returns the updated descriptors and the policy keys for
// table that matched nothing, sorted.
func (p CascadePolicy) Apply(table string, rels []relationship.Relationship) ([]relationship.Relationship, []string) {
	out := make([]relationship.Relationship, len(rels))
	applied := make(map[string]bool)
	for i, rel := range rels {
		key := rel.LocalTable + "." + rel.MethodName
		rule, ok := p[key]
		if !ok || !cascadable(rel.Kind) {
			out[i] = rel
			continue
		}
		out[i] = rel.WithCascade(rule.Delete, rule.Update)
		applied[key] = true
	}

	var unmatched []string
	for _, key := range p.keys() {
		keyTable, _, ok := splitKey(key)
		if ok && keyTable == table && !applied[key] {
			unmatched = append(unmatched, key)
		}
	}
	return out, unmatched
}

// UnknownTables returns the policy keys whose table is not in tables, sorted.
func (p CascadePolicy) UnknownTables(tables []string) []string {
	known := make(map[string]bool, len(tables))
	for _, t := range tables {
		known[t] = true
	}
	var unknown []string
	for _, key := range p.keys() {
		table, _, ok := splitKey(key)
		if ok && !known[table] {
			unknown = append(unknown, key)
		}
	}
	return unknown
}

func (p CascadePolicy) keys() []string {
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// cascadable kinds own the dependent rows a cascade acts on.
func cascadable(kind relationship.Kind) bool {
	switch kind {
	case relationship.KindInverseCollection, relationship.KindManyToMany, relationship.KindPolymorphicCollection:
		return true
	default:
		return false
	}
}

func splitKey(key string) (string, string, bool) {
	idx := strings.LastIndex(key, ".")
	if idx <= 0 || idx == len(key)-1 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}
