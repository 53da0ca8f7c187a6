package cluster

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/author-disambiguation-service/internal/domain"
	"github.com/helixir/author-disambiguation-service/internal/events"
	"github.com/helixir/author-disambiguation-service/internal/harvest"
	"github.com/helixir/author-disambiguation-service/internal/names"
	"github.com/helixir/author-disambiguation-service/internal/store"
)

// scriptModule scores pairs from a fixed table keyed by unordered name pair,
// giving tests exact control over compatibility scores.
type scriptModule struct {
	scores map[[2]string]float64
}

func (m *scriptModule) Name() string { return "script" }

func (m *scriptModule) Compare(_ context.Context, a, b *domain.VirtualAuthor) (float64, bool, error) {
	if s, ok := m.scores[[2]string{a.Name, b.Name}]; ok {
		return s, true, nil
	}
	if s, ok := m.scores[[2]string{b.Name, a.Name}]; ok {
		return s, true, nil
	}
	return 0, false, nil
}

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	events []*domain.Event
}

func (p *capturingPublisher) Publish(_ context.Context, event *domain.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) types() []string {
	var out []string
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

func nameRegistry(s store.SignatureStore) *harvest.Registry {
	r := harvest.NewRegistry(zerolog.Nop())
	r.Register(harvest.NewNameModule(names.NewComparator(nil, nil), nil, s, false))
	return r
}

func scriptRegistry(scores map[[2]string]float64) *harvest.Registry {
	r := harvest.NewRegistry(zerolog.Nop())
	r.Register(&scriptModule{scores: scores})
	return r
}

func newTestEngine(t *testing.T, s store.SignatureStore, r *harvest.Registry, cfg EngineConfig) (*Engine, *capturingPublisher) {
	t.Helper()
	pub := &capturingPublisher{}
	e, err := NewEngine(s, r, pub, nil, zerolog.Nop(), cfg)
	require.NoError(t, err)
	return e, pub
}

func addSignature(t *testing.T, s store.SignatureStore, name string) int64 {
	t.Helper()
	parser := names.DefaultParser()
	id, err := s.AddVirtualAuthor(context.Background(), &domain.VirtualAuthor{
		Name:      name,
		BucketKey: parser.BucketKey(name),
	})
	require.NoError(t, err)
	return id
}

func TestNewEngine_RequiresModules(t *testing.T) {
	t.Parallel()
	s := store.NewMemoryStore()

	_, err := NewEngine(s, harvest.NewRegistry(zerolog.Nop()), nil, nil, zerolog.Nop(), EngineConfig{})
	assert.ErrorIs(t, err, domain.ErrNoHarvesters)

	_, err = NewEngine(s, nil, nil, nil, zerolog.Nop(), EngineConfig{})
	assert.ErrorIs(t, err, domain.ErrNoHarvesters)
}

func TestAssign_FirstSignatureCreatesCluster(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := store.NewMemoryStore()
	e, pub := newTestEngine(t, s, nameRegistry(s), EngineConfig{})

	vaID := addSignature(t, s, "Ellis, John")
	outcome, err := e.Assign(ctx, vaID, false)
	require.NoError(t, err)

	assert.Equal(t, domain.AssignmentCreated, outcome.Kind)
	require.Len(t, outcome.RealAuthorIDs, 1)
	assert.True(t, outcome.Assigned())

	va, err := s.VirtualAuthor(ctx, vaID)
	require.NoError(t, err)
	assert.True(t, va.Connected)
	assert.False(t, va.Updated)

	assert.Equal(t, []string{domain.EventTypeClusterCreated}, pub.types())
}

func TestAssign_CompatibleSignatureAttaches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := store.NewMemoryStore()
	e, pub := newTestEngine(t, s, nameRegistry(s), EngineConfig{})

	full := addSignature(t, s, "Ellis, John")
	abbrev := addSignature(t, s, "Ellis, J.")

	created, err := e.Assign(ctx, full, false)
	require.NoError(t, err)
	require.Equal(t, domain.AssignmentCreated, created.Kind)

	attached, err := e.Assign(ctx, abbrev, false)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentAttached, attached.Kind)
	assert.Equal(t, created.RealAuthorIDs, attached.RealAuthorIDs)
	assert.InDelta(t, 0.9, attached.Score, 1e-9)

	ra, err := s.RealAuthor(ctx, created.RealAuthorIDs[0])
	require.NoError(t, err)
	assert.Len(t, ra.Members, 2)

	assert.Equal(t, []string{domain.EventTypeClusterCreated, domain.EventTypeSignatureAttached}, pub.types())
}

func TestAssign_IncompatibleSignatureCreatesSeparateCluster(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := store.NewMemoryStore()
	e, _ := newTestEngine(t, s, nameRegistry(s), EngineConfig{})

	john := addSignature(t, s, "Ellis, John")
	mary := addSignature(t, s, "Ellis, Mary")

	first, err := e.Assign(ctx, john, false)
	require.NoError(t, err)
	second, err := e.Assign(ctx, mary, false)
	require.NoError(t, err)

	assert.Equal(t, domain.AssignmentCreated, first.Kind)
	assert.Equal(t, domain.AssignmentCreated, second.Kind)
	assert.NotEqual(t, first.RealAuthorIDs, second.RealAuthorIDs)
}

func TestAssign_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := store.NewMemoryStore()
	e, _ := newTestEngine(t, s, nameRegistry(s), EngineConfig{})

	vaID := addSignature(t, s, "Ellis, John")
	first, err := e.Assign(ctx, vaID, false)
	require.NoError(t, err)

	// Flag updated again, as an upstream data change would.
	require.NoError(t, s.SetFlags(ctx, vaID, true, true))

	second, err := e.Assign(ctx, vaID, false)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentAlreadyAssigned, second.Kind)
	assert.Equal(t, first.RealAuthorIDs, second.RealAuthorIDs)

	va, err := s.VirtualAuthor(ctx, vaID)
	require.NoError(t, err)
	assert.True(t, va.Connected)
	assert.False(t, va.Updated)

	ra, err := s.RealAuthor(ctx, first.RealAuthorIDs[0])
	require.NoError(t, err)
	assert.Len(t, ra.Members, 1)
}

func TestAssign_ThresholdBoundary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// A score exactly at the threshold attaches; strictly below creates.
	cases := []struct {
		name  string
		score float64
		want  domain.AssignmentKind
	}{
		{"at threshold", 0.7, domain.AssignmentAttached},
		{"below threshold", 0.6999, domain.AssignmentCreated},
		{"above threshold", 0.71, domain.AssignmentAttached},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := store.NewMemoryStore()
			r := scriptRegistry(map[[2]string]float64{
				{"Ellis, John", "Ellis, J."}: tc.score,
			})
			e, _ := newTestEngine(t, s, r, EngineConfig{})

			seed := addSignature(t, s, "Ellis, John")
			_, err := e.Assign(ctx, seed, false)
			require.NoError(t, err)

			next := addSignature(t, s, "Ellis, J.")
			outcome, err := e.Assign(ctx, next, false)
			require.NoError(t, err)
			assert.Equal(t, tc.want, outcome.Kind)
		})
	}
}

func TestAssign_WeakestLinkScoring(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := store.NewMemoryStore()

	// The new signature scores 0.95 against one member but only 0.5
	// against the other; the cluster score is the minimum, so it falls
	// below the threshold and a new cluster is created.
	r := scriptRegistry(map[[2]string]float64{
		{"Ellis, John", "Ellis, John R."}: 0.9,
		{"Ellis, J.", "Ellis, John"}:      0.95,
		{"Ellis, J.", "Ellis, John R."}:   0.5,
	})
	e, _ := newTestEngine(t, s, r, EngineConfig{})

	first := addSignature(t, s, "Ellis, John")
	second := addSignature(t, s, "Ellis, John R.")
	third := addSignature(t, s, "Ellis, J.")

	_, err := e.Assign(ctx, first, false)
	require.NoError(t, err)
	attached, err := e.Assign(ctx, second, false)
	require.NoError(t, err)
	require.Equal(t, domain.AssignmentAttached, attached.Kind)

	outcome, err := e.Assign(ctx, third, false)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentCreated, outcome.Kind)
}

func TestAssign_TieDefersWithoutMultiAssignment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := store.NewMemoryStore()

	// Two incompatible clusters, and a third signature equally
	// compatible with both.
	r := scriptRegistry(map[[2]string]float64{
		{"Ellis, John", "Ellis, Jane"}: 0.1,
		{"Ellis, J.", "Ellis, John"}:   0.8,
		{"Ellis, J.", "Ellis, Jane"}:   0.8,
	})
	e, pub := newTestEngine(t, s, r, EngineConfig{})

	john := addSignature(t, s, "Ellis, John")
	jane := addSignature(t, s, "Ellis, Jane")
	bare := addSignature(t, s, "Ellis, J.")

	_, err := e.Assign(ctx, john, false)
	require.NoError(t, err)
	_, err = e.Assign(ctx, jane, false)
	require.NoError(t, err)

	outcome, err := e.Assign(ctx, bare, false)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentDeferred, outcome.Kind)
	assert.Len(t, outcome.RealAuthorIDs, 2)
	assert.False(t, outcome.Assigned())

	// Deferred signatures stay orphaned and re-queued.
	va, err := s.VirtualAuthor(ctx, bare)
	require.NoError(t, err)
	assert.False(t, va.Connected)
	assert.True(t, va.Updated)

	memberships, err := s.RealAuthorsForVA(ctx, bare)
	require.NoError(t, err)
	assert.Empty(t, memberships)

	assert.Contains(t, pub.types(), domain.EventTypeSignatureDeferred)
}

func TestAssign_TieAttachesAllWithMultiAssignment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := store.NewMemoryStore()

	r := scriptRegistry(map[[2]string]float64{
		{"Ellis, John", "Ellis, Jane"}: 0.1,
		{"Ellis, J.", "Ellis, John"}:   0.8,
		{"Ellis, J.", "Ellis, Jane"}:   0.8,
	})
	e, _ := newTestEngine(t, s, r, EngineConfig{})

	john := addSignature(t, s, "Ellis, John")
	jane := addSignature(t, s, "Ellis, Jane")
	bare := addSignature(t, s, "Ellis, J.")

	_, err := e.Assign(ctx, john, false)
	require.NoError(t, err)
	_, err = e.Assign(ctx, jane, false)
	require.NoError(t, err)

	outcome, err := e.Assign(ctx, bare, true)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentAttachedMultiple, outcome.Kind)
	assert.Len(t, outcome.RealAuthorIDs, 2)
	assert.InDelta(t, 0.8, outcome.Score, 1e-9)

	memberships, err := s.RealAuthorsForVA(ctx, bare)
	require.NoError(t, err)
	assert.Len(t, memberships, 2)
}

func TestAssign_CacheRefreshedAfterCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := store.NewMemoryStore()
	e, _ := newTestEngine(t, s, nameRegistry(s), EngineConfig{})

	// Both signatures exist before either is assigned, so the bucket
	// content (and hash) is identical for both Assign calls. The first
	// call caches an empty candidate list; without the refresh after
	// creating, the second call would see no candidates and wrongly
	// create a second cluster.
	full := addSignature(t, s, "Ellis, John")
	abbrev := addSignature(t, s, "Ellis, J.")

	created, err := e.Assign(ctx, full, false)
	require.NoError(t, err)
	require.Equal(t, domain.AssignmentCreated, created.Kind)

	attached, err := e.Assign(ctx, abbrev, false)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentAttached, attached.Kind)
	assert.Equal(t, created.RealAuthorIDs, attached.RealAuthorIDs)
}

func TestAssign_UsesNopPublisherWhenNil(t *testing.T) {
	t.Parallel()
	s := store.NewMemoryStore()
	e, err := NewEngine(s, nameRegistry(s), nil, nil, zerolog.Nop(), EngineConfig{})
	require.NoError(t, err)

	vaID := addSignature(t, s, "Ellis, John")
	outcome, err := e.Assign(context.Background(), vaID, false)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentCreated, outcome.Kind)
}

func TestAssign_ExtractionAddsCanonicalName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := store.NewMemoryStore()
	e, _ := newTestEngine(t, s, nameRegistry(s), EngineConfig{})

	vaID := addSignature(t, s, "Ellis, John R.")
	outcome, err := e.Assign(ctx, vaID, false)
	require.NoError(t, err)

	rows, err := s.RealAuthorData(ctx, outcome.RealAuthorIDs[0], domain.TagName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ellis.J.R", rows[0].Value)
}

var _ events.Publisher = (*capturingPublisher)(nil)
