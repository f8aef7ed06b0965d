package extract

import (
	"errors"
	"reflect"
	"testing"
)

func TestTransform(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		names    []string
		expected any
	}{
		{"trim", "  x  ", []string{"trim"}, "x"},
		{"lowercase", "ABC", []string{"lowercase"}, "abc"},
		{"uppercase", "abc", []string{"uppercase"}, "ABC"},
		{"normalize whitespace", "a\n\t b   c", []string{"normalize_whitespace"}, "a b c"},
		{"decode entities", "a &amp; b &lt;c&gt;", []string{"decode_entities"}, "a & b <c>"},
		{"parse int", "42", []string{"parse_int"}, int64(42)},
		{"parse int with currency", "$1,299", []string{"parse_int"}, int64(1299)},
		{"parse int truncates decimals", "1299.95", []string{"parse_int"}, int64(1299)},
		{"parse int without digits", "no digits here", []string{"parse_int"}, int64(0)},
		{"parse float", "12.5", []string{"parse_float"}, 12.5},
		{"parse float with thousands", "$1,299.00", []string{"parse_float"}, 1299.0},
		{"parse float without digits", "no digits here", []string{"parse_float"}, 0.0},
		{"parse elementwise with garbage", []any{"7", "none"}, []string{"parse_int"}, []any{int64(7), int64(0)}},
		{"extract number", "ships in 3 days", []string{"extract_number"}, "3"},
		{"extract number negative", "temp -5 deg", []string{"extract_number"}, "-5"},
		{"extract number absent", "no digits", []string{"extract_number"}, ""},
		{"extract email", "mail me at bob@example.com now", []string{"extract_email"}, "bob@example.com"},
		{"extract url", `see https://example.com/page for info`, []string{"extract_url"}, "https://example.com/page"},
		{"pipeline order", "  MIXED Case  ", []string{"trim", "lowercase"}, "mixed case"},
		{"elementwise over array", []any{" a ", " b "}, []string{"trim", "uppercase"}, []any{"A", "B"}},
		{"no transforms passes through", "same", nil, "same"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transform(tt.value, tt.names)
			if err != nil {
				t.Fatalf("Transform: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected %#v, got %#v", tt.expected, got)
			}
		})
	}
}

func TestTransform_Errors(t *testing.T) {
	if _, err := Transform("x", []string{"sparkle"}); !errors.Is(err, ErrUnknownTransform) {
		t.Errorf("expected ErrUnknownTransform, got %v", err)
	}

	// ошибка на одном элементе массива роняет всё преобразование
	if _, err := Transform([]any{"a", "b"}, []string{"sparkle"}); !errors.Is(err, ErrUnknownTransform) {
		t.Errorf("elementwise failure should propagate, got %v", err)
	}
}
