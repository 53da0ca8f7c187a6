package names

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Gender classifies a name by its given names against the gender word lists.
type Gender int

const (
	// GenderUnknown means no given name matched either word list.
	GenderUnknown Gender = iota
	// GenderMale means at least one given name matched the boys list only.
	GenderMale
	// GenderFemale means at least one given name matched the girls list only.
	GenderFemale
	// GenderConflict means given names matched both lists.
	GenderConflict
)

// String implements fmt.Stringer.
func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	case GenderConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Lexicon holds the reference word lists used by the comparator: boy and girl
// given names for gender detection, and groups of interchangeable given names
// ("Robert"/"Bob") for the synonym boost. A Lexicon is immutable after
// construction and safe for concurrent use; reloading reference data means
// building a new Lexicon.
type Lexicon struct {
	boys  map[string]struct{}
	girls map[string]struct{}

	// groups maps a lowercased given name to the synonym group ids it
	// belongs to. A name may appear in several groups.
	groups map[string][]int
	ngroup int
}

// NewLexicon builds a Lexicon from in-memory word lists. Names are matched
// case-insensitively.
func NewLexicon(boys, girls []string, synonymGroups [][]string) *Lexicon {
	lex := &Lexicon{
		boys:   make(map[string]struct{}, len(boys)),
		girls:  make(map[string]struct{}, len(girls)),
		groups: make(map[string][]int),
	}
	for _, name := range boys {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			lex.boys[name] = struct{}{}
		}
	}
	for _, name := range girls {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			lex.girls[name] = struct{}{}
		}
	}
	for _, group := range synonymGroups {
		id := lex.ngroup
		seen := false
		for _, name := range group {
			if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
				lex.groups[name] = append(lex.groups[name], id)
				seen = true
			}
		}
		if seen {
			lex.ngroup++
		}
	}
	return lex
}

// EmptyLexicon returns a Lexicon with no reference data. Gender detection
// always reports unknown and no synonym pairs exist; useful for tests and
// for running without word-list files.
func EmptyLexicon() *Lexicon {
	return NewLexicon(nil, nil, nil)
}

// LoadLexicon reads the reference data from flat files: one name per line in
// the gender lists, one semicolon-delimited synonym group per line in the
// synonyms file. Lines starting with '#' are skipped. Any path may be empty,
// leaving that list empty.
func LoadLexicon(boysPath, girlsPath, synonymsPath string) (*Lexicon, error) {
	boys, err := readWordList(boysPath)
	if err != nil {
		return nil, fmt.Errorf("loading boys list: %w", err)
	}
	girls, err := readWordList(girlsPath)
	if err != nil {
		return nil, fmt.Errorf("loading girls list: %w", err)
	}

	var groups [][]string
	if synonymsPath != "" {
		lines, err := readWordList(synonymsPath)
		if err != nil {
			return nil, fmt.Errorf("loading synonyms list: %w", err)
		}
		for _, line := range lines {
			groups = append(groups, strings.Split(line, ";"))
		}
	}

	return NewLexicon(boys, girls, groups), nil
}

// readWordList reads non-empty, non-comment lines from a file. An empty path
// yields an empty list.
func readWordList(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// GenderOf classifies a name by scanning its given-name tokens against both
// word lists. A name matching both lists is reported as GenderConflict.
func (l *Lexicon) GenderOf(givenNames []string) Gender {
	var isBoy, isGirl bool
	for _, name := range givenNames {
		name = strings.ToLower(name)
		if _, ok := l.boys[name]; ok {
			isBoy = true
		}
		if _, ok := l.girls[name]; ok {
			isGirl = true
		}
	}
	switch {
	case isBoy && isGirl:
		return GenderConflict
	case isBoy:
		return GenderMale
	case isGirl:
		return GenderFemale
	default:
		return GenderUnknown
	}
}

// Synonymous reports whether two given names are co-members of some synonym
// group. Matching is case-insensitive. A name is not considered its own
// synonym unless it appears in a group.
func (l *Lexicon) Synonymous(a, b string) bool {
	ga := l.groups[strings.ToLower(a)]
	gb := l.groups[strings.ToLower(b)]
	for _, ia := range ga {
		for _, ib := range gb {
			if ia == ib {
				return true
			}
		}
	}
	return false
}
