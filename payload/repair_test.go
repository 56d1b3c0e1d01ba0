package payload

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestRepairTrailingCommaAndSingleQuotes(t *testing.T) {
	got := Repair(`{name: 'X', beds: 2,}`)
	want := `{"name": "X", "beds": 2}`
	if got != want {
		t.Fatalf("Repair() = %q, want %q", got, want)
	}

	var decoded, expected map[string]any
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("repaired text is not JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(`{"name": "X", "beds": 2}`), &expected); err != nil {
		t.Fatalf("unmarshal expected: %v", err)
	}
	if !reflect.DeepEqual(decoded, expected) {
		t.Fatalf("decoded = %v, want %v", decoded, expected)
	}
}

func TestRepair(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "key without space after colon",
			input: `{geo:{lat: 1.5},isMF:true}`,
			want:  `{"geo":{"lat": 1.5},"isMF":true}`,
		},
		{
			name:  "colon inside string is untouched",
			input: `{note: 'open: 9am, close: 5pm'}`,
			want:  `{"note": "open: 9am, close: 5pm"}`,
		},
		{
			name:  "double quotes inside single-quoted string",
			input: `{title: 'The "Loft"'}`,
			want:  `{"title": "The \"Loft\""}`,
		},
		{
			name:  "escaped single quote",
			input: `{name: 'Joe\'s Place'}`,
			want:  `{"name": "Joe's Place"}`,
		},
		{
			name:  "hex escape",
			input: `{amp: '\x26'}`,
			want:  `{"amp": "\u0026"}`,
		},
		{
			name:  "trailing comma in array",
			input: `{tags: ['a', 'b', ]}`,
			want:  `{"tags": ["a", "b"]}`,
		},
		{
			name:  "already quoted keys",
			input: `{"a": 1, 'b': 2}`,
			want:  `{"a": 1, "b": 2}`,
		},
		{
			name:  "undefined and NaN",
			input: `{a: undefined, b: NaN, c: -Infinity}`,
			want:  `{"a": null, "b": null, "c": null}`,
		},
		{
			name:  "comments",
			input: "{a: 1, // first\n/* gone */ b: 2,\n}",
			want:  "{\"a\": 1, \n \"b\": 2}",
		},
		{
			name:  "numeric key",
			input: `{1: 'one'}`,
			want:  `{"1": "one"}`,
		},
		{
			name:  "objects inside array",
			input: `{rentals: [{RentalKey: 'k1',}, {RentalKey: 'k2'}]}`,
			want:  `{"rentals": [{"RentalKey": "k1"}, {"RentalKey": "k2"}]}`,
		},
		{
			name:  "exponent number",
			input: `{n: 1.5e3}`,
			want:  `{"n": 1.5e3}`,
		},
		{
			name:  "url value",
			input: `{url: 'https://example.test/a-b/'}`,
			want:  `{"url": "https://example.test/a-b/"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Repair(tt.input)
			if got != tt.want {
				t.Fatalf("Repair(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if !json.Valid([]byte(got)) {
				t.Fatalf("Repair(%q) produced invalid JSON %q", tt.input, got)
			}
		})
	}
}
