package names

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	p := DefaultParser()

	tests := []struct {
		name     string
		input    string
		expected NormalizedName
	}{
		{
			name:  "surname with full given names",
			input: "Ellis, John Richard",
			expected: NormalizedName{
				Surname:    "Ellis",
				Initials:   []string{"J", "R"},
				GivenNames: []string{"John", "Richard"},
				Positions:  []int{0, 1},
			},
		},
		{
			name:  "mixed given names and bare initial",
			input: "Ellis, John Richard T.",
			expected: NormalizedName{
				Surname:    "Ellis",
				Initials:   []string{"J", "R", "T"},
				GivenNames: []string{"John", "Richard"},
				Positions:  []int{0, 1},
			},
		},
		{
			name:  "parenthetical annotation stripped",
			input: "Ellis, John Richard T. (Jr.)",
			expected: NormalizedName{
				Surname:    "Ellis",
				Initials:   []string{"J", "R", "T"},
				GivenNames: []string{"John", "Richard"},
				Positions:  []int{0, 1},
			},
		},
		{
			name:  "annotation in the middle",
			input: "Ellis (Ed.), John",
			expected: NormalizedName{
				Surname:    "Ellis",
				Initials:   []string{"J"},
				GivenNames: []string{"John"},
				Positions:  []int{0},
			},
		},
		{
			name:  "no separator splits on last space",
			input: "John Ellis",
			expected: NormalizedName{
				Surname:    "Ellis",
				Initials:   []string{"J"},
				GivenNames: []string{"John"},
				Positions:  []int{0},
			},
		},
		{
			name:     "single token is all surname",
			input:    "Ellis",
			expected: NormalizedName{Surname: "Ellis"},
		},
		{
			name:     "surname capitalized",
			input:    "ELLIS, John",
			expected: NormalizedName{Surname: "Ellis", Initials: []string{"J"}, GivenNames: []string{"John"}, Positions: []int{0}},
		},
		{
			name:  "comma suffix dropped",
			input: "Ellis, John, III",
			expected: NormalizedName{
				Surname:    "Ellis",
				Initials:   []string{"J"},
				GivenNames: []string{"John"},
				Positions:  []int{0},
			},
		},
		{
			name:  "hyphenated given name splits",
			input: "Watson, Mary-Jane",
			expected: NormalizedName{
				Surname:    "Watson",
				Initials:   []string{"M", "J"},
				GivenNames: []string{"Mary", "Jane"},
				Positions:  []int{0, 1},
			},
		},
		{
			name:  "dotted initials",
			input: "Ellis, J.R.",
			expected: NormalizedName{
				Surname:  "Ellis",
				Initials: []string{"J", "R"},
			},
		},
		{
			name:     "empty string",
			input:    "",
			expected: NormalizedName{},
		},
		{
			name:     "all separators degrades to empty",
			input:    ";.=()-",
			expected: NormalizedName{},
		},
		{
			name:     "empty remainder after surname",
			input:    "Ellis,",
			expected: NormalizedName{Surname: "Ellis"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := p.Normalize(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Normalize(%q) = %+v, want %+v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeWith_Lowercase(t *testing.T) {
	t.Parallel()

	p := DefaultParser()
	got := p.NormalizeWith("ELLIS, John R.", NormalizeOptions{Lowercase: true})

	expected := NormalizedName{
		Surname:    "ellis",
		Initials:   []string{"j", "r"},
		GivenNames: []string{"john"},
		Positions:  []int{0},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("NormalizeWith() = %+v, want %+v", got, expected)
	}
}

func TestNormalizeWith_KeepAdditions(t *testing.T) {
	t.Parallel()

	p := DefaultParser()
	got := p.NormalizeWith("Ellis, John (Jr)", NormalizeOptions{KeepAdditions: true})

	// With additions kept, "(Jr)" tokenizes into a given name of its own.
	if len(got.GivenNames) != 2 || got.GivenNames[1] != "Jr" {
		t.Errorf("expected annotation to survive as a token, got %+v", got)
	}
}

func TestNormalizeWith_SeparatorOverride(t *testing.T) {
	t.Parallel()

	p := DefaultParser()
	got := p.NormalizeWith("Ellis; John", NormalizeOptions{SurnameSeparator: ";"})

	if got.Surname != "Ellis" {
		t.Errorf("Surname = %q, want %q", got.Surname, "Ellis")
	}
	if len(got.GivenNames) != 1 || got.GivenNames[0] != "John" {
		t.Errorf("GivenNames = %v, want [John]", got.GivenNames)
	}
}

func TestCanonicalName(t *testing.T) {
	t.Parallel()

	p := DefaultParser()

	tests := []struct {
		input    string
		expected string
	}{
		{"Ellis, John Richard", "Ellis.J.R"},
		{"Ellis, J.R.", "Ellis.J.R"},
		{"John Richard Ellis", "Ellis.J.R"},
		{"O'Brien, Mary", "Obrien.M"},
		{"Van Der Berg, Jan", "Van.Der.Berg.J"},
		{"Ellis", "Ellis"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := p.CanonicalName(tt.input); got != tt.expected {
				t.Errorf("CanonicalName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestBucketKey(t *testing.T) {
	t.Parallel()

	p := DefaultParser()

	tests := []struct {
		input    string
		expected string
	}{
		{"Ellis, John", "ellis"},
		{"ELLIS, J.", "ellis"},
		{"O'Brien, Mary", "obrien"},
		{"John Ellis", "ellis"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := p.BucketKey(tt.input); got != tt.expected {
				t.Errorf("BucketKey(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
