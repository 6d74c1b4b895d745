package naming

import (
	"log/slog"
	"sort"
	"strings"
)

// Namer derives model identifiers and relationship method names from SQL names.
type Namer struct {
	config Config
	logger *slog.Logger
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.MethodCase == "" {
		cfg.MethodCase = defaults.MethodCase
	}
	if cfg.ForeignKeySuffixes == nil {
		cfg.ForeignKeySuffixes = defaults.ForeignKeySuffixes
	}
	return &Namer{
		config: cfg,
		logger: logger,
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// ModelName converts a table name to its model name (singular PascalCase).
// Example: "user_profiles" -> "UserProfile"
func (n *Namer) ModelName(tableName string) string {
	return toPascalCase(n.Singularize(strings.ToLower(tableName)))
}

// ModelIdentifiers returns the discriminator values that identify a table in a
// polymorphic type column, most specific first: the morph-map alias, the
// class-path form and the bare model name.
// Example: "posts" -> ["App\Models\Post", "Post"]
func (n *Namer) ModelIdentifiers(tableName string) []string {
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		for _, existing := range ids {
			if existing == id {
				return
			}
		}
		ids = append(ids, id)
	}

	if alias, ok := lookupFold(n.config.MorphMap, tableName); ok {
		add(alias)
	}
	model := n.ModelName(tableName)
	if ns := strings.Trim(n.config.ModelNamespace, `\`); ns != "" {
		add(ns + `\` + model)
	}
	add(model)
	return ids
}

// Method formats a snake_case name in the configured method case.
func (n *Namer) Method(name string) string {
	if n.config.MethodCase == MethodCaseSnake {
		return toSnakeCase(name)
	}
	return toCamelCase(toSnakeCase(name))
}

// StripForeignKeySuffix removes the first matching FK suffix (e.g. "_id").
// The second result is false when no suffix matched.
func (n *Namer) StripForeignKeySuffix(column string) (string, bool) {
	lower := strings.ToLower(column)
	for _, suffix := range n.config.ForeignKeySuffixes {
		if suffix == "" {
			continue
		}
		if strings.HasSuffix(lower, strings.ToLower(suffix)) && len(column) > len(suffix) {
			return column[:len(column)-len(suffix)], true
		}
	}
	return column, false
}

// DirectReferenceMethod names the accessor for a foreign key held by the table.
// Example: "author_id" -> "author"; an FK column without a suffix falls back
// to the singular target table.
func (n *Namer) DirectReferenceMethod(localColumn, targetTable string) string {
	if stripped, ok := n.StripForeignKeySuffix(localColumn); ok {
		return n.Method(stripped)
	}
	return n.Method(n.Singularize(targetTable))
}

// InverseCollectionMethod names the parent-side accessor for a child table.
// With several FKs from the same child, the FK stem prefixes the name.
// Example: isOnlyFK=true: "comments" -> "comments"
// Example: isOnlyFK=false, fkColumn="author_id": "posts" -> "authorPosts"
func (n *Namer) InverseCollectionMethod(childTable, fkColumn string, one, isOnlyFK bool) string {
	name := n.Pluralize(childTable)
	if one {
		name = n.Singularize(childTable)
	}
	if isOnlyFK {
		return n.Method(name)
	}
	prefix, _ := n.StripForeignKeySuffix(fkColumn)
	return n.Method(prefix + "_" + name)
}

// ManyToManyMethod names the accessor across a junction table. Self-referential
// junctions are named from the far-side key so both directions stay distinct.
// Example: "roles" -> "roles"; self-referential with key "friend_id" -> "friends"
func (n *Namer) ManyToManyMethod(targetTable, junctionTargetKey string, selfReferential bool) string {
	if selfReferential {
		stem, _ := n.StripForeignKeySuffix(junctionTargetKey)
		return n.Method(n.Pluralize(stem))
	}
	return n.Method(n.Pluralize(targetTable))
}

// MorphToMethod names a polymorphic reference accessor after its morph name.
func (n *Namer) MorphToMethod(morphName string) string {
	return n.Method(morphName)
}

// MorphCollectionMethod names the owner-side accessor of a polymorphic child table.
func (n *Namer) MorphCollectionMethod(childTable string, one bool) string {
	if one {
		return n.Method(n.Singularize(childTable))
	}
	return n.Method(n.Pluralize(childTable))
}

// PivotName returns the conventional junction table name for two tables:
// both singular, sorted alphabetically, joined by "_". The result does not
// depend on argument order.
// Example: ("users", "roles") -> "role_user"
func (n *Namer) PivotName(a, b string) string {
	parts := []string{
		strings.ToLower(n.Singularize(a)),
		strings.ToLower(n.Singularize(b)),
	}
	sort.Strings(parts)
	return parts[0] + "_" + parts[1]
}

// JunctionNamePatterns lists the names a junction between focal and related
// would conventionally carry, in both orders and singular/plural forms.
func (n *Namer) JunctionNamePatterns(focal, related string) []string {
	sf, pf := strings.ToLower(n.Singularize(focal)), strings.ToLower(n.Pluralize(focal))
	sr, pr := strings.ToLower(n.Singularize(related)), strings.ToLower(n.Pluralize(related))

	candidates := []string{
		sf + "_" + sr, sr + "_" + sf,
		sf + "_" + pr, sr + "_" + pf,
		pf + "_" + pr, pr + "_" + pf,
	}
	patterns := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		patterns = append(patterns, c)
	}
	return patterns
}

// MatchesJunctionName reports whether junction follows a naming pattern for the pair.
func (n *Namer) MatchesJunctionName(junction, focal, related string) bool {
	for _, pattern := range n.JunctionNamePatterns(focal, related) {
		if strings.EqualFold(junction, pattern) {
			return true
		}
	}
	return false
}

// toPascalCase converts snake_case to PascalCase
func toPascalCase(s string) string {
	parts := strings.Split(s, "_")
	for i, part := range parts {
		if len(part) > 0 {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, "")
}

// toCamelCase converts snake_case to camelCase
func toCamelCase(s string) string {
	parts := strings.Split(s, "_")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	for i := 1; i < len(out); i++ {
		out[i] = strings.ToUpper(out[i][:1]) + out[i][1:]
	}
	return strings.Join(out, "")
}

// toSnakeCase lowercases and splits camelCase boundaries with underscores.
// Example: "authorPosts" -> "author_posts", "UserProfile" -> "user_profile"
func toSnakeCase(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && s[i-1] != '_' && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				sb.WriteByte('_')
			}
			sb.WriteRune(r + ('a' - 'A'))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
