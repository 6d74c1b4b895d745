package naming

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// Pluralize converts a singular word to its plural form.
// Overrides are checked for the whole word and then for its last
// underscore-separated segment, so "blog_person" can become "blog_people".
func (n *Namer) Pluralize(word string) string {
	return n.inflect(word, n.config.PluralOverrides, inflection.Plural)
}

// Singularize converts a plural word to its singular form.
func (n *Namer) Singularize(word string) string {
	return n.inflect(word, n.config.SingularOverrides, inflection.Singular)
}

func (n *Namer) inflect(word string, overrides map[string]string, fallback func(string) string) string {
	if override, ok := lookupFold(overrides, word); ok {
		return override
	}
	if idx := strings.LastIndex(word, "_"); idx != -1 && idx < len(word)-1 {
		if override, ok := lookupFold(overrides, word[idx+1:]); ok {
			return word[:idx+1] + override
		}
	}
	return fallback(word)
}

func lookupFold(m map[string]string, key string) (string, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
