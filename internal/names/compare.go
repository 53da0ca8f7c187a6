package names

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// MaxAllowedSurnameDistance is the surname edit-distance cutoff. Any pair of
// names whose surnames differ by more than this is scored 0.0 unconditionally,
// overriding every boost.
const MaxAllowedSurnameDistance = 2

// Scoring weights of the comparison algorithm. These are part of the contract
// with downstream clustering thresholds; changing any of them recalibrates
// every stored compatibility score.
const (
	weightInitialsScrewup  = 0.75
	weightInitialsCoeff    = 0.10
	weightInitialsDistance = 0.15

	weightMaxNamesScrewup = 0.75
	weightAvgNamesScrewup = 0.25

	boostSynonymAligned   = 0.5
	boostSynonym          = 0.15
	boostSubstringAligned = 0.2
	boostSubstring        = 0.05
	boostComposite        = 0.2

	genderPenaltyDivisor = 3.0
	initialsOnlyPenalty  = 0.9
)

// Soft comparison weights for search-style fuzzy lookup.
const (
	softSurnameEqual = 0.6
	softSurnameClose = 0.4
	softNamesWeight  = 0.4
)

// Comparator scores the similarity of two author name strings. It is
// deterministic given identical inputs and identical reference data, and safe
// for concurrent use: both the parser and the lexicon are immutable.
type Comparator struct {
	parser  *Parser
	lexicon *Lexicon
}

// NewComparator creates a Comparator using the given parser and lexicon.
// A nil parser falls back to the default separator sets; a nil lexicon
// disables gender and synonym signals.
func NewComparator(parser *Parser, lexicon *Lexicon) *Comparator {
	if parser == nil {
		parser = DefaultParser()
	}
	if lexicon == nil {
		lexicon = EmptyLexicon()
	}
	return &Comparator{parser: parser, lexicon: lexicon}
}

// Compare scores the similarity of two name strings in [0, 1]. Scores above
// roughly 0.8 signal high confidence that both names denote the same person;
// 0 signals definitely different people.
//
// initialsPenalty forces the initials-only penalty even when both names carry
// nothing but initials, for callers that want bare-initials matches damped.
//
// The score is built in fixed stages: a surname base score from edit
// distance, deductions for initials and given-name mismatches, multiplicative
// gap boosts for synonym, substring and composite-name evidence, a gender
// conflict penalty, the surname hard veto, and finally the initials-only
// penalty. The surname veto is re-applied after all boosts so that no boost
// can resurrect a pair of incompatible surnames.
func (c *Comparator) Compare(nameA, nameB string, initialsPenalty bool) float64 {
	a := c.parser.NormalizeWith(nameA, NormalizeOptions{Lowercase: true})
	b := c.parser.NormalizeWith(nameB, NormalizeOptions{Lowercase: true})

	surnameDist := levenshtein.ComputeDistance(a.Surname, b.Surname)

	var score float64
	switch {
	case surnameDist == 0:
		score = 1.0
	case stripNonAlnum(a.Surname) == stripNonAlnum(b.Surname):
		score = 1.0
	default:
		score = 0.5 - float64(surnameDist)/float64(MaxAllowedSurnameDistance)
		if score < 0 {
			score = 0
		}
	}

	// Initials-only condition: no full given-name token available on the
	// shorter side. When neither side has one, only initials are available
	// at all and the closing penalty is waived unless explicitly requested.
	initialsOnly := len(a.GivenNames) == 0 || len(b.GivenNames) == 0
	onlyInitialsAvailable := len(a.GivenNames) == 0 && len(b.GivenNames) == 0

	score = applyInitialsDeduction(score, a, b)
	if !initialsOnly {
		score = applyGivenNamesDeduction(score, a, b)
	}

	// Boosts close part of the gap to 1.0 rather than adding to the raw
	// score, so they can never push past 1. Order matters: synonym, then
	// substring, then composite.
	for _, pair := range c.synonymPairs(a, b) {
		if pair.aligned {
			score = boost(score, boostSynonymAligned)
		} else {
			score = boost(score, boostSynonym)
		}
	}
	if !initialsOnly {
		for _, pair := range substringPairs(a, b) {
			if pair.aligned {
				score = boost(score, boostSubstringAligned)
			} else {
				score = boost(score, boostSubstring)
			}
		}
		if compositeEqual(a, b) {
			score = boost(score, boostComposite)
		}
	}

	if c.gendersConflict(a, b) {
		score = score / genderPenaltyDivisor
	}

	// The surname veto wins over everything computed above.
	if surnameDist > MaxAllowedSurnameDistance {
		return 0.0
	}

	if initialsOnly && (!onlyInitialsAvailable || initialsPenalty) {
		score *= initialsOnlyPenalty
	}

	return score
}

// applyInitialsDeduction reduces the score by a weighted combination of three
// initials signals: the positional mismatch term, the complement of the
// Jaccard coefficient over the initials sets, and the normalized edit
// distance between the concatenated initials strings.
func applyInitialsDeduction(score float64, a, b NormalizedName) float64 {
	maxN := len(a.Initials)
	if len(b.Initials) > maxN {
		maxN = len(b.Initials)
	}

	coeff := initialsCoefficient(a.Initials, b.Initials)

	var dist, screwup float64
	if maxN > 0 {
		raw := levenshtein.ComputeDistance(strings.Join(a.Initials, ""), strings.Join(b.Initials, ""))
		dist = float64(raw) / float64(maxN)
		screwup = initialsScrewup(a.Initials, b.Initials, maxN)
	}

	score -= (weightInitialsScrewup*screwup + weightInitialsCoeff*(1-coeff) + weightInitialsDistance*dist) * score
	if score < 0 {
		return 0
	}
	return score
}

// initialsCoefficient is the Jaccard coefficient over the two initials sets;
// 1 when the union is empty.
func initialsCoefficient(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, s := range a {
		setA[s] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, s := range b {
		setB[s] = struct{}{}
	}

	union := len(setB)
	intersection := 0
	for s := range setA {
		if _, ok := setB[s]; ok {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(intersection) / float64(union)
}

// initialsScrewup penalizes mismatched initials after right-aligning the two
// sequences. A mismatch at reverse index i weighs i+1, so mismatches closer
// to the front of the name count more; the sum is normalized by the
// triangular number of the longer sequence length.
func initialsScrewup(a, b []string, maxN int) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0
	for i := 0; i < n; i++ {
		if a[len(a)-1-i] != b[len(b)-1-i] {
			sum += i + 1
		}
	}
	return float64(sum) / (float64(maxN) * float64(maxN+1) / 2)
}

// applyGivenNamesDeduction reduces the score by the maximum and average
// normalized edit distance over right-aligned given-name pairs.
func applyGivenNamesDeduction(score float64, a, b NormalizedName) float64 {
	n := len(a.GivenNames)
	if len(b.GivenNames) < n {
		n = len(b.GivenNames)
	}
	if n == 0 {
		return score
	}

	var maxRatio, sum float64
	for i := 0; i < n; i++ {
		ga := a.GivenNames[len(a.GivenNames)-1-i]
		gb := b.GivenNames[len(b.GivenNames)-1-i]
		width := len(ga)
		if len(gb) > width {
			width = len(gb)
		}
		if width == 0 {
			continue
		}
		ratio := float64(levenshtein.ComputeDistance(ga, gb)) / float64(width)
		if ratio > maxRatio {
			maxRatio = ratio
		}
		sum += ratio
	}
	avg := sum / float64(n)

	score = score - score*weightMaxNamesScrewup*maxRatio - score*weightAvgNamesScrewup*avg
	if score < 0 {
		return 0
	}
	return score
}

// boost closes part of the remaining gap to 1.0: score + (1-score)*weight.
func boost(score, weight float64) float64 {
	return score + (1-score)*weight
}

// namePair marks a matching pair of given-name tokens and whether the two
// tokens sit at the same ordinal position in their respective names.
type namePair struct {
	aligned bool
}

// synonymPairs finds every pair of given-name tokens across the two names
// that are co-members of a synonym group. Each pair triggers its own boost.
func (c *Comparator) synonymPairs(a, b NormalizedName) []namePair {
	var pairs []namePair
	for i, ga := range a.GivenNames {
		for j, gb := range b.GivenNames {
			if c.lexicon.Synonymous(ga, gb) {
				pairs = append(pairs, namePair{aligned: i == j})
			}
		}
	}
	return pairs
}

// substringPairs finds every pair of given-name tokens where one token is a
// prefix of the other.
func substringPairs(a, b NormalizedName) []namePair {
	var pairs []namePair
	for i, ga := range a.GivenNames {
		for j, gb := range b.GivenNames {
			if strings.HasPrefix(ga, gb) || strings.HasPrefix(gb, ga) {
				pairs = append(pairs, namePair{aligned: i == j})
			}
		}
	}
	return pairs
}

// compositeEqual reports whether some recombination of one name's given-name
// tokens equals a recombination of the other's, after removing
// non-alphanumeric characters. This catches transliteration splits such as
// "Guangsheng" vs "Guang Sheng".
func compositeEqual(a, b NormalizedName) bool {
	ja := stripNonAlnum(strings.Join(a.GivenNames, ""))
	jb := stripNonAlnum(strings.Join(b.GivenNames, ""))
	if ja == "" || jb == "" {
		return false
	}
	return ja == jb
}

// gendersConflict reports whether the two names resolve to different
// determinate genders. Conflict and unknown classifications never penalize.
func (c *Comparator) gendersConflict(a, b NormalizedName) bool {
	ga := c.lexicon.GenderOf(a.GivenNames)
	gb := c.lexicon.GenderOf(b.GivenNames)
	return (ga == GenderMale && gb == GenderFemale) || (ga == GenderFemale && gb == GenderMale)
}

// SoftCompare is a cheaper comparison variant intended for search-style fuzzy
// lookup rather than record linkage. The score is built from a surname tier
// (equal, near, or unrelated) plus the fraction of matching initials and
// given names weighted at 0.4. It is a distinct contract from Compare and the
// two are not interchangeable.
func (c *Comparator) SoftCompare(nameA, nameB string) float64 {
	a := c.parser.NormalizeWith(nameA, NormalizeOptions{Lowercase: true})
	b := c.parser.NormalizeWith(nameB, NormalizeOptions{Lowercase: true})

	var score float64
	surnameDist := levenshtein.ComputeDistance(a.Surname, b.Surname)
	switch {
	case surnameDist == 0:
		score += softSurnameEqual
	case surnameDist <= MaxAllowedSurnameDistance:
		score += softSurnameClose
	}

	score += softNamesWeight * mergedMatchFraction(a, b)
	return score
}

// mergedMatchFraction is the proportion of initials and given names shared
// between two names, over the size of the larger of each list. Two names with
// no given-name material at all count as fully matching.
func mergedMatchFraction(a, b NormalizedName) float64 {
	maxInitials := len(a.Initials)
	if len(b.Initials) > maxInitials {
		maxInitials = len(b.Initials)
	}
	maxGiven := len(a.GivenNames)
	if len(b.GivenNames) > maxGiven {
		maxGiven = len(b.GivenNames)
	}
	denom := maxInitials + maxGiven
	if denom == 0 {
		return 1
	}

	matched := countCommon(a.Initials, b.Initials) + countCommon(a.GivenNames, b.GivenNames)
	return float64(matched) / float64(denom)
}

// countCommon counts multiset intersection size between two token lists.
func countCommon(a, b []string) int {
	remaining := make(map[string]int, len(b))
	for _, s := range b {
		remaining[s]++
	}
	count := 0
	for _, s := range a {
		if remaining[s] > 0 {
			remaining[s]--
			count++
		}
	}
	return count
}
