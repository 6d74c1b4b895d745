package introspection

import (
	"fmt"
	"strings"
)

// parseEnumValues reads the member list out of a MySQL ENUM(...) or SET(...)
// COLUMN_TYPE so enumerated values are available without sampling rows.
func parseEnumValues(columnType string) ([]string, error) {
	trimmed := strings.TrimSpace(columnType)
	lower := strings.ToLower(trimmed)

	var prefix string
	switch {
	case strings.HasPrefix(lower, "enum("):
		prefix = "enum("
	case strings.HasPrefix(lower, "set("):
		prefix = "set("
	default:
		return nil, fmt.Errorf("invalid enum prefix")
	}
	if !strings.HasSuffix(lower, ")") {
		return nil, fmt.Errorf("invalid enum suffix")
	}

	definition := trimmed[len(prefix) : len(trimmed)-1]
	values := []string{}
	i := 0
	for i < len(definition) {
		for i < len(definition) && (definition[i] == ' ' || definition[i] == ',') {
			i++
		}
		if i >= len(definition) {
			break
		}
		if definition[i] != '\'' {
			return nil, fmt.Errorf("expected quote at position %d", i)
		}
		value, next, err := readQuoted(definition, i+1)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
		i = next
		for i < len(definition) && definition[i] == ' ' {
			i++
		}
		if i < len(definition) {
			if definition[i] != ',' {
				return nil, fmt.Errorf("expected comma at position %d", i)
			}
			i++
		}
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("no enum values parsed")
	}
	return values, nil
}

// readQuoted consumes a single-quoted literal body starting at i and returns
// the unescaped value and the index just past the closing quote.
func readQuoted(s string, i int) (string, int, error) {
	var sb strings.Builder
	for i < len(s) {
		ch := s[i]
		switch {
		case ch == '\\':
			if i+1 >= len(s) {
				return "", 0, fmt.Errorf("unterminated escape")
			}
			sb.WriteByte(s[i+1])
			i += 2
		case ch == '\'' && i+1 < len(s) && s[i+1] == '\'':
			sb.WriteByte('\'')
			i += 2
		case ch == '\'':
			return sb.String(), i + 1, nil
		default:
			sb.WriteByte(ch)
			i++
		}
	}
	return "", 0, fmt.Errorf("unterminated value")
}
