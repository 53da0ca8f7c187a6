// Package names provides parsing and fuzzy comparison of author name strings.
//
// The package has two layers: a normalizer that parses a raw name string into
// a structured form (surname, initials, given names and their positions), and
// a comparator that scores the similarity of two names in [0, 1] from surname
// edit distance, initials overlap and a set of given-name heuristics backed by
// gender and synonym word lists.
package names

import (
	"regexp"
	"strings"
	"unicode"
)

// Default separator sets for name parsing. Both can be overridden through the
// Parser, which is populated from static configuration.
const (
	// DefaultTokenSeparators is the set of characters that split the
	// given-name part of a name into tokens.
	DefaultTokenSeparators = ",;.=()-"
)

// DefaultSurnameSeparators is the ordered list of separators scanned to split
// the surname from the rest of the name.
var DefaultSurnameSeparators = []string{","}

// additionsRe matches parenthetical annotations such as "(Ed.)" or
// "(spokesperson)". Non-greedy so multiple annotations are each removed.
var additionsRe = regexp.MustCompile(`\(.*?\)`)

// nonAlnumRe strips every non-alphanumeric character.
var nonAlnumRe = regexp.MustCompile(`[^a-zA-Z0-9]`)

// NormalizedName is the canonical structured form of a raw name string.
// It is immutable once produced and carries no persistent identity; callers
// discard it after a comparison.
//
// Every given name corresponds to one entry in the merged initials stream:
// Positions[i] is the 0-based ordinal of GivenNames[i] in that stream, and
// Initials[Positions[i]] is its first letter. Bare initials occupy stream
// positions of their own without a corresponding given name.
type NormalizedName struct {
	Surname    string
	Initials   []string
	GivenNames []string
	Positions  []int
}

// IsInitialsOnly reports whether no full given-name token is available.
func (n NormalizedName) IsInitialsOnly() bool {
	return len(n.GivenNames) == 0
}

// Parser splits raw name strings according to configured separator sets.
// The zero value is not usable; construct with NewParser or DefaultParser.
type Parser struct {
	surnameSeparators []string
	tokenSeparators   string
}

// NewParser creates a Parser with the given separator configuration.
// Empty arguments fall back to the package defaults.
func NewParser(surnameSeparators []string, tokenSeparators string) *Parser {
	if len(surnameSeparators) == 0 {
		surnameSeparators = DefaultSurnameSeparators
	}
	if tokenSeparators == "" {
		tokenSeparators = DefaultTokenSeparators
	}
	return &Parser{
		surnameSeparators: surnameSeparators,
		tokenSeparators:   tokenSeparators,
	}
}

// DefaultParser creates a Parser with the default separator sets.
func DefaultParser() *Parser {
	return NewParser(nil, "")
}

// NormalizeOptions adjusts a single Normalize call.
type NormalizeOptions struct {
	// KeepAdditions retains parenthetical annotations instead of stripping them.
	KeepAdditions bool

	// SurnameSeparator overrides the parser's surname separator list with a
	// single separator for this call.
	SurnameSeparator string

	// Lowercase lowercases every output field, for case-insensitive matching.
	Lowercase bool
}

// Normalize parses a raw name string with default options: parenthetical
// additions stripped, configured separators, original casing preserved except
// for surname capitalization.
func (p *Parser) Normalize(raw string) NormalizedName {
	return p.NormalizeWith(raw, NormalizeOptions{})
}

// NormalizeWith parses a raw name string into its normalized form.
//
// The surname is determined by the first configured separator found anywhere
// in the string. Without any separator the last space splits the name; a
// single token is taken entirely as the surname. A second separator occurrence
// delimits a suffix, which is dropped. Degenerate inputs (empty or
// all-separator strings) yield an all-empty NormalizedName rather than an
// error.
func (p *Parser) NormalizeWith(raw string, opts NormalizeOptions) NormalizedName {
	name := raw
	if !opts.KeepAdditions {
		name = additionsRe.ReplaceAllString(name, "")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return NormalizedName{}
	}

	separators := p.surnameSeparators
	if opts.SurnameSeparator != "" {
		separators = []string{opts.SurnameSeparator}
	}

	surname, rest := splitSurname(name, separators)
	surname = capitalize(strings.TrimSpace(surname))

	out := NormalizedName{Surname: surname}
	if opts.Lowercase {
		out.Surname = strings.ToLower(out.Surname)
	}

	pos := 0
	for _, token := range p.tokenize(rest) {
		if opts.Lowercase {
			token = strings.ToLower(token)
		}
		initial := firstLetter(token)
		if opts.Lowercase {
			initial = strings.ToLower(initial)
		}
		out.Initials = append(out.Initials, initial)
		if len([]rune(token)) > 1 {
			out.GivenNames = append(out.GivenNames, token)
			out.Positions = append(out.Positions, pos)
		}
		pos++
	}

	return out
}

// splitSurname separates the surname from the rest of the name. The first
// separator in the configured order that occurs anywhere in the string wins;
// a trailing suffix after a second occurrence is dropped.
func splitSurname(name string, separators []string) (surname, rest string) {
	for _, sep := range separators {
		if sep == "" || !strings.Contains(name, sep) {
			continue
		}
		parts := strings.Split(name, sep)
		return parts[0], parts[1]
	}

	// No configured separator present: the last space splits the name, with
	// the surname on the right. A single token is all surname.
	if idx := strings.LastIndex(name, " "); idx >= 0 {
		return name[idx+1:], name[:idx]
	}
	return name, ""
}

// tokenize splits the given-name part on the configured separator characters
// and whitespace, discarding empty tokens.
func (p *Parser) tokenize(rest string) []string {
	return strings.FieldsFunc(rest, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(p.tokenSeparators, r)
	})
}

// capitalize uppercases the first letter and lowercases the remainder.
// Case-insensitive comparison still requires explicit lowercasing by callers.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// firstLetter returns the uppercased first rune of a token.
func firstLetter(token string) string {
	for _, r := range token {
		return string(unicode.ToUpper(r))
	}
	return ""
}

// stripNonAlnum removes every non-alphanumeric character from a string.
func stripNonAlnum(s string) string {
	return nonAlnumRe.ReplaceAllString(s, "")
}

// CanonicalName derives a dotted canonical key from a raw name string, e.g.
// "Ellis.J.R" for "Ellis, John R.". The key reverses name order (surname
// first), strips non-alphanumeric characters and collapses whitespace into
// dots. It serves as a stable identity key independent of formatting, not as
// a comparison mechanism.
func (p *Parser) CanonicalName(raw string) string {
	n := p.Normalize(raw)

	var parts []string
	for _, field := range strings.Fields(n.Surname) {
		if cleaned := stripNonAlnum(field); cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	for _, initial := range n.Initials {
		if cleaned := stripNonAlnum(initial); cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	return strings.Join(parts, ".")
}

// BucketKey derives the last-name grouping key used to bound candidate search
// during cluster assignment: the surname, lowercased, with non-alphanumeric
// characters removed.
func (p *Parser) BucketKey(raw string) string {
	n := p.Normalize(raw)
	return strings.ToLower(stripNonAlnum(n.Surname))
}
