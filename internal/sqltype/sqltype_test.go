package sqltype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap_IntegerTypes(t *testing.T) {
	intTypes := []string{
		"TINYINT", "tinyint",
		"INT", "int(11)",
		"bigint unsigned",
		"INTEGER", "int4", "int8",
		"bigserial",
	}

	for _, sqlType := range intTypes {
		t.Run(sqlType, func(t *testing.T) {
			assert.Equal(t, TypeInteger, Map(sqlType))
			assert.Equal(t, "integer", Map(sqlType).String())
		})
	}
}

func TestMap_Categories(t *testing.T) {
	tests := []struct {
		sqlType  string
		expected Type
	}{
		{"decimal(10,2)", TypeDecimal},
		{"double precision", TypeDecimal},
		{"NUMBER", TypeDecimal},
		{"boolean", TypeBoolean},
		{"jsonb", TypeJSON},
		{"uuid", TypeUUID},
		{"uniqueidentifier", TypeUUID},
		{"enum('a','b')", TypeEnum},
		{"longtext", TypeText},
		{"CLOB", TypeText},
		{"bytea", TypeBinary},
		{"varbinary(16)", TypeBinary},
		{"timestamp with time zone", TypeDateTime},
		{"time without time zone", TypeDateTime},
		{"datetime2", TypeDateTime},
		{"character varying", TypeString},
		{"varchar(255)", TypeString},
		{"NVARCHAR2", TypeString},
		{"geometry", TypeString},
	}

	for _, tt := range tests {
		t.Run(tt.sqlType, func(t *testing.T) {
			assert.Equal(t, tt.expected, Map(tt.sqlType))
		})
	}
}

func TestType_Predicates(t *testing.T) {
	assert.True(t, TypeString.IsTextual())
	assert.True(t, TypeEnum.IsTextual())
	assert.False(t, TypeInteger.IsTextual())

	assert.True(t, TypeInteger.IsKeyLike())
	assert.True(t, TypeUUID.IsKeyLike())
	assert.False(t, TypeBoolean.IsKeyLike())
	assert.False(t, TypeDateTime.IsKeyLike())
}

func TestType_TextRoundTrip(t *testing.T) {
	for _, typ := range []Type{TypeString, TypeText, TypeInteger, TypeDecimal, TypeBoolean, TypeDateTime, TypeJSON, TypeBinary, TypeUUID, TypeEnum} {
		text, err := typ.MarshalText()
		assert.NoError(t, err)

		var parsed Type
		assert.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, typ, parsed)
	}
}
