// Package sqltype maps declared SQL column types from the supported engines to
// a small set of semantic categories used during relationship analysis.
package sqltype

import "strings"

// Type is the semantic category of a SQL column.
type Type int

const (
	// TypeString is the default for character data and unknown SQL types.
	TypeString Type = iota
	// TypeText represents large character objects.
	TypeText
	// TypeInteger represents integer numeric types.
	TypeInteger
	// TypeDecimal represents floating-point and fixed-point numeric types.
	TypeDecimal
	// TypeBoolean represents boolean types.
	TypeBoolean
	// TypeDateTime represents dates, times and timestamps.
	TypeDateTime
	// TypeJSON represents JSON document types.
	TypeJSON
	// TypeBinary represents raw byte types.
	TypeBinary
	// TypeUUID represents native UUID types.
	TypeUUID
	// TypeEnum represents enumerated and set types.
	TypeEnum
)

// Map converts a declared SQL type to its semantic category.
// The input is case-insensitive. Size specifiers like (10,2) or (255) and
// trailing modifiers such as "unsigned" or "with time zone" are ignored.
func Map(sqlType string) Type {
	base := strings.TrimSpace(sqlType)
	if idx := strings.Index(base, "("); idx != -1 {
		base = base[:idx]
	}
	base = strings.ToUpper(strings.TrimSpace(base))
	if strings.HasPrefix(base, "TIMESTAMP") || strings.HasPrefix(base, "TIME ") {
		return TypeDateTime
	}
	if strings.HasPrefix(base, "INTERVAL") {
		return TypeString
	}
	if fields := strings.Fields(base); len(fields) > 1 && fields[0] != "CHARACTER" && fields[0] != "DOUBLE" {
		base = fields[0]
	}

	switch base {
	// Integer types (MySQL, Postgres udt names, SQL Server)
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT",
		"SERIAL", "BIGSERIAL", "SMALLSERIAL", "INT2", "INT4", "INT8", "BIT":
		return TypeInteger
	case "FLOAT", "DOUBLE", "DOUBLE PRECISION", "REAL", "DECIMAL", "NUMERIC",
		"NUMBER", "FLOAT4", "FLOAT8", "MONEY", "SMALLMONEY", "BINARY_FLOAT", "BINARY_DOUBLE":
		return TypeDecimal
	case "BOOL", "BOOLEAN":
		return TypeBoolean
	case "JSON", "JSONB":
		return TypeJSON
	case "UUID", "UNIQUEIDENTIFIER":
		return TypeUUID
	case "ENUM", "SET":
		return TypeEnum
	case "TEXT", "TINYTEXT", "MEDIUMTEXT", "LONGTEXT", "CLOB", "NCLOB", "NTEXT", "LONG":
		return TypeText
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY",
		"BYTEA", "IMAGE", "RAW":
		return TypeBinary
	case "DATE", "DATETIME", "DATETIME2", "SMALLDATETIME", "DATETIMEOFFSET",
		"TIME", "TIMETZ", "TIMESTAMPTZ", "YEAR":
		return TypeDateTime
	case "CHAR", "VARCHAR", "NCHAR", "NVARCHAR", "VARCHAR2", "NVARCHAR2",
		"CHARACTER", "CHARACTER VARYING", "BPCHAR", "CITEXT":
		return TypeString
	default:
		return TypeString
	}
}

// IsTextual reports whether values of this type compare as strings.
func (t Type) IsTextual() bool {
	return t == TypeString || t == TypeText || t == TypeEnum
}

// IsKeyLike reports whether a column of this type can hold a row identifier.
func (t Type) IsKeyLike() bool {
	switch t {
	case TypeInteger, TypeDecimal, TypeString, TypeUUID, TypeBinary:
		return true
	default:
		return false
	}
}

// String returns the lowercase category name used in rendered output.
func (t Type) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeInteger:
		return "integer"
	case TypeDecimal:
		return "decimal"
	case TypeBoolean:
		return "boolean"
	case TypeDateTime:
		return "datetime"
	case TypeJSON:
		return "json"
	case TypeBinary:
		return "binary"
	case TypeUUID:
		return "uuid"
	case TypeEnum:
		return "enum"
	default:
		return "string"
	}
}

// MarshalText renders the category name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a category name written by MarshalText.
func (t *Type) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "text":
		*t = TypeText
	case "integer":
		*t = TypeInteger
	case "decimal":
		*t = TypeDecimal
	case "boolean":
		*t = TypeBoolean
	case "datetime":
		*t = TypeDateTime
	case "json":
		*t = TypeJSON
	case "binary":
		*t = TypeBinary
	case "uuid":
		*t = TypeUUID
	case "enum":
		*t = TypeEnum
	default:
		*t = TypeString
	}
	return nil
}
