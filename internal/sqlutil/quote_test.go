package sqlutil

import "testing"

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"users", "`users`"},
		{"select", "`select`"},         // reserved word
		{"first name", "`first name`"}, // space in name
		{"user`data", "`user``data`"},  // backtick in name
		{"", "``"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := QuoteIdentifier(tt.input)
			if result != tt.expected {
				t.Errorf("QuoteIdentifier(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestQuoteANSIIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"users", `"users"`},
		{`odd"name`, `"odd""name"`},
		{"Mixed Case", `"Mixed Case"`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := QuoteANSIIdentifier(tt.input)
			if result != tt.expected {
				t.Errorf("QuoteANSIIdentifier(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestQuoteBracketIdentifier(t *testing.T) {
	if got := QuoteBracketIdentifier("order]items"); got != "[order]]items]" {
		t.Errorf("QuoteBracketIdentifier() = %q", got)
	}
}

func TestQualifiedName(t *testing.T) {
	if got := QualifiedName(QuoteANSIIdentifier, "public", "users"); got != `"public"."users"` {
		t.Errorf("QualifiedName() = %q", got)
	}
	if got := QualifiedName(QuoteIdentifier, "", "users"); got != "`users`" {
		t.Errorf("QualifiedName() without schema = %q", got)
	}
}
