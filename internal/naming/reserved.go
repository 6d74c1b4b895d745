package naming

import "strings"

// reservedMethodNames are base-model members a generated relationship
// accessor must not shadow.
var reservedMethodNames = map[string]bool{
	"attributes": true,
	"connection": true,
	"create":     true,
	"delete":     true,
	"fill":       true,
	"find":       true,
	"fresh":      true,
	"getkey":     true,
	"load":       true,
	"push":       true,
	"query":      true,
	"refresh":    true,
	"relations":  true,
	"save":       true,
	"table":      true,
	"toarray":    true,
	"tojson":     true,
	"touch":      true,
	"update":     true,
}

// isReservedMethodName checks a method name case-insensitively, ignoring underscores.
func isReservedMethodName(name string) bool {
	key := strings.ToLower(strings.ReplaceAll(name, "_", ""))
	return reservedMethodNames[key]
}
