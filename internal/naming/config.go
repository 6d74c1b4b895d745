// Package naming derives model, method and junction names from table and
// column names: pluralization, case conversion, method-name formatting and
// per-table collision handling.
package naming

// Method case styles.
const (
	MethodCaseCamel = "camel"
	MethodCaseSnake = "snake"
)

// Config holds naming customization options
type Config struct {
	// PluralOverrides maps singular -> custom plural
	// Example: {"person": "people", "status": "statuses"}
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`

	// SingularOverrides maps plural -> custom singular
	// Example: {"people": "person", "data": "datum"}
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`

	// MethodCase selects how relationship method names are formatted: camel or snake.
	MethodCase string `mapstructure:"method_case"`

	// ForeignKeySuffixes are stripped from FK column names to form method names.
	ForeignKeySuffixes []string `mapstructure:"foreign_key_suffixes"`

	// ModelNamespace prefixes model names in class-path discriminator values.
	// Example: "App\Models" gives "App\Models\Post" for table "posts".
	ModelNamespace string `mapstructure:"model_namespace"`

	// MorphMap maps table names to explicit discriminator aliases.
	// Example: {"posts": "post"}
	MorphMap map[string]string `mapstructure:"morph_map"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		PluralOverrides:    make(map[string]string),
		SingularOverrides:  make(map[string]string),
		MethodCase:         MethodCaseCamel,
		ForeignKeySuffixes: []string{"_id", "_fk"},
		ModelNamespace:     `App\Models`,
		MorphMap:           make(map[string]string),
	}
}
