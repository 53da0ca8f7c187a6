package harvest

import (
	"context"

	"github.com/helixir/author-disambiguation-service/internal/domain"
	"github.com/helixir/author-disambiguation-service/internal/names"
	"github.com/helixir/author-disambiguation-service/internal/store"
)

// NameModule scores signature pairs by full name similarity and, on
// extraction, records the signature's canonical name key in the cluster's
// aggregate index.
type NameModule struct {
	comparator      *names.Comparator
	parser          *names.Parser
	store           store.SignatureStore
	initialsPenalty bool
}

// NewNameModule creates the name-similarity module. The store is used only
// for extraction and may be nil when the module is used purely for scoring.
func NewNameModule(comparator *names.Comparator, parser *names.Parser, s store.SignatureStore, initialsPenalty bool) *NameModule {
	if parser == nil {
		parser = names.DefaultParser()
	}
	return &NameModule{
		comparator:      comparator,
		parser:          parser,
		store:           s,
		initialsPenalty: initialsPenalty,
	}
}

func (m *NameModule) Name() string { return "name" }

// Compare scores the two signatures' name strings. Names are always present
// on a signature, so the module always has signal.
func (m *NameModule) Compare(_ context.Context, a, b *domain.VirtualAuthor) (float64, bool, error) {
	if a.Name == "" || b.Name == "" {
		return 0, false, domain.ErrMalformedName
	}
	return m.comparator.Compare(a.Name, b.Name, m.initialsPenalty), true, nil
}

// Extract records the signature's canonical name key as a data point on the
// cluster, so clusters accumulate the spelling variants of their members.
func (m *NameModule) Extract(ctx context.Context, vaID, raID int64) error {
	if m.store == nil {
		return nil
	}
	va, err := m.store.VirtualAuthor(ctx, vaID)
	if err != nil {
		return err
	}
	canonical := m.parser.CanonicalName(va.Name)
	if canonical == "" {
		return domain.ErrMalformedName
	}
	return m.store.AddDataPoint(ctx, raID, domain.TagName, canonical, va.Probability)
}
