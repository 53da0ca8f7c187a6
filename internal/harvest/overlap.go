package harvest

import (
	"context"
	"strings"

	"github.com/helixir/author-disambiguation-service/internal/domain"
)

// CoauthorModule scores signature pairs by the overlap of their co-author
// lists. Two signatures sharing co-authors are very likely the same person;
// the module has no signal when either signature lists no co-authors.
type CoauthorModule struct{}

// NewCoauthorModule creates the co-author overlap module.
func NewCoauthorModule() *CoauthorModule { return &CoauthorModule{} }

func (m *CoauthorModule) Name() string { return "coauthor" }

func (m *CoauthorModule) Compare(_ context.Context, a, b *domain.VirtualAuthor) (float64, bool, error) {
	return overlapScore(a.AttributeValues(domain.TagCoauthor), b.AttributeValues(domain.TagCoauthor))
}

// AffiliationModule scores signature pairs by shared institutional
// affiliations. A weaker signal than co-authorship (institutes are large),
// but useful to separate common surnames across institutions.
type AffiliationModule struct{}

// NewAffiliationModule creates the affiliation overlap module.
func NewAffiliationModule() *AffiliationModule { return &AffiliationModule{} }

func (m *AffiliationModule) Name() string { return "affiliation" }

func (m *AffiliationModule) Compare(_ context.Context, a, b *domain.VirtualAuthor) (float64, bool, error) {
	return overlapScore(a.AttributeValues(domain.TagAffiliation), b.AttributeValues(domain.TagAffiliation))
}

// overlapScore is the Jaccard index of the two value sets, case-insensitive.
// It reports no signal when either side is empty.
func overlapScore(a, b []string) (float64, bool, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, false, nil
	}

	setA := make(map[string]struct{}, len(a))
	for _, v := range a {
		setA[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, v := range b {
		setB[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}

	common := 0
	for v := range setA {
		if _, ok := setB[v]; ok {
			common++
		}
	}
	union := len(setA) + len(setB) - common
	if union == 0 {
		return 0, false, nil
	}
	return float64(common) / float64(union), true, nil
}
