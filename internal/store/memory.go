package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/helixir/author-disambiguation-service/internal/domain"
)

// MemoryStore is an in-memory SignatureStore backed by indexed maps: primary
// arenas keyed by id plus secondary indexes by bucket key and by membership,
// so candidate lookups avoid linear scans over all clusters.
//
// All methods are safe for concurrent use, though the engine itself processes
// signatures sequentially per bucket.
type MemoryStore struct {
	mu sync.RWMutex

	nextVAID int64
	nextRAID int64

	vas map[int64]*domain.VirtualAuthor
	ras map[int64]*domain.RealAuthor

	// buckets indexes signature ids by last-name key, in insertion order.
	buckets map[string][]int64

	// membership indexes cluster ids by member signature id.
	membership map[int64][]int64

	// data holds the aggregate index keyed by cluster id, then (tag, value).
	data map[int64]map[dataKey]*domain.RealAuthorData

	// compatCache maps bucket content hashes to candidate cluster ids.
	compatCache map[string][]int64
}

type dataKey struct {
	tag   string
	value string
}

// NewMemoryStore creates an empty in-memory signature store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vas:         make(map[int64]*domain.VirtualAuthor),
		ras:         make(map[int64]*domain.RealAuthor),
		buckets:     make(map[string][]int64),
		membership:  make(map[int64][]int64),
		data:        make(map[int64]map[dataKey]*domain.RealAuthorData),
		compatCache: make(map[string][]int64),
	}
}

// compile-time check that MemoryStore implements SignatureStore.
var _ SignatureStore = (*MemoryStore)(nil)

// AddVirtualAuthor stores a new signature and returns its id.
func (s *MemoryStore) AddVirtualAuthor(_ context.Context, va *domain.VirtualAuthor) (int64, error) {
	if va == nil || va.Name == "" {
		return 0, domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextVAID++
	stored := *va
	stored.ID = s.nextVAID
	stored.Connected = false
	stored.Updated = true
	if stored.Probability == 0 {
		stored.Probability = 1.0
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.Attributes = append([]domain.Attribute(nil), va.Attributes...)

	s.vas[stored.ID] = &stored
	s.buckets[stored.BucketKey] = append(s.buckets[stored.BucketKey], stored.ID)
	return stored.ID, nil
}

// VirtualAuthor returns a copy of the signature with the given id.
func (s *MemoryStore) VirtualAuthor(_ context.Context, vaID int64) (*domain.VirtualAuthor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	va, ok := s.vas[vaID]
	if !ok {
		return nil, domain.NewNotFoundError("virtual author", vaID)
	}
	out := *va
	out.Attributes = append([]domain.Attribute(nil), va.Attributes...)
	return &out, nil
}

// VAAttributes returns the signature's attributes, optionally filtered by tag.
func (s *MemoryStore) VAAttributes(_ context.Context, vaID int64, tag string) ([]domain.Attribute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	va, ok := s.vas[vaID]
	if !ok {
		return nil, domain.NewNotFoundError("virtual author", vaID)
	}

	var attrs []domain.Attribute
	for _, attr := range va.Attributes {
		if tag == "" || attr.Tag == tag {
			attrs = append(attrs, attr)
		}
	}
	return attrs, nil
}

// SetFlags updates the connected/updated state flags of a signature.
func (s *MemoryStore) SetFlags(_ context.Context, vaID int64, connected, updated bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	va, ok := s.vas[vaID]
	if !ok {
		return domain.NewNotFoundError("virtual author", vaID)
	}
	va.Connected = connected
	va.Updated = updated
	return nil
}

// Bucket returns the ids of all signatures sharing a last-name key.
func (s *MemoryStore) Bucket(_ context.Context, bucketKey string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int64(nil), s.buckets[bucketKey]...), nil
}

// RealAuthor returns a copy of the cluster with the given id.
func (s *MemoryStore) RealAuthor(_ context.Context, raID int64) (*domain.RealAuthor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ra, ok := s.ras[raID]
	if !ok {
		return nil, domain.NewNotFoundError("real author", raID)
	}
	out := *ra
	out.Members = append([]domain.Membership(nil), ra.Members...)
	return &out, nil
}

// RealAuthorsForVA returns the ids of every cluster containing the signature.
func (s *MemoryStore) RealAuthorsForVA(_ context.Context, vaID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int64(nil), s.membership[vaID]...), nil
}

// CreateRealAuthor creates a new cluster containing only the given signature.
func (s *MemoryStore) CreateRealAuthor(_ context.Context, vaID int64, probability float64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	va, ok := s.vas[vaID]
	if !ok {
		return 0, domain.NewNotFoundError("virtual author", vaID)
	}

	s.nextRAID++
	ra := &domain.RealAuthor{
		ID:        s.nextRAID,
		Members:   []domain.Membership{{VirtualAuthorID: vaID, Probability: probability}},
		CreatedAt: time.Now(),
	}
	s.ras[ra.ID] = ra
	s.membership[vaID] = append(s.membership[vaID], ra.ID)
	s.mergeAttributes(ra.ID, va, probability)
	return ra.ID, nil
}

// AttachVA attaches a signature to an existing cluster and folds its
// attributes into the aggregate index.
func (s *MemoryStore) AttachVA(_ context.Context, raID, vaID int64, probability float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ra, ok := s.ras[raID]
	if !ok {
		return domain.NewNotFoundError("real author", raID)
	}
	va, ok := s.vas[vaID]
	if !ok {
		return domain.NewNotFoundError("virtual author", vaID)
	}
	if ra.HasMember(vaID) {
		return nil
	}

	ra.Members = append(ra.Members, domain.Membership{VirtualAuthorID: vaID, Probability: probability})
	s.membership[vaID] = append(s.membership[vaID], raID)
	s.mergeAttributes(raID, va, probability)
	return nil
}

// DetachVA removes a signature from a cluster and decrements the aggregate
// index, deleting rows whose count reaches zero.
func (s *MemoryStore) DetachVA(_ context.Context, raID, vaID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ra, ok := s.ras[raID]
	if !ok {
		return domain.NewNotFoundError("real author", raID)
	}
	va, ok := s.vas[vaID]
	if !ok {
		return domain.NewNotFoundError("virtual author", vaID)
	}

	var prob float64
	found := false
	members := ra.Members[:0]
	for _, m := range ra.Members {
		if m.VirtualAuthorID == vaID {
			prob = m.Probability
			found = true
			continue
		}
		members = append(members, m)
	}
	if !found {
		return domain.NewNotFoundError("membership", vaID)
	}
	ra.Members = members

	ids := s.membership[vaID][:0]
	for _, id := range s.membership[vaID] {
		if id != raID {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		delete(s.membership, vaID)
	} else {
		s.membership[vaID] = ids
	}

	for _, attr := range va.Attributes {
		if domain.IsBookkeepingTag(attr.Tag) {
			continue
		}
		s.decrementData(raID, attr.Tag, attr.Value, prob)
	}
	return nil
}

// RealAuthorData returns the aggregate rows for a cluster.
func (s *MemoryStore) RealAuthorData(_ context.Context, raID int64, tag string) ([]domain.RealAuthorData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []domain.RealAuthorData
	for _, row := range s.data[raID] {
		if tag == "" || row.Tag == tag {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

// AddDataPoint folds one (tag, value) observation into a cluster's aggregate.
func (s *MemoryStore) AddDataPoint(_ context.Context, raID int64, tag, value string, probability float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ras[raID]; !ok {
		return domain.NewNotFoundError("real author", raID)
	}
	s.incrementData(raID, tag, value, probability)
	return nil
}

// Orphans returns signatures with no cluster membership and not yet connected.
func (s *MemoryStore) Orphans(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for id, va := range s.vas {
		if !va.Connected && len(s.membership[id]) == 0 {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids, nil
}

// UpdatedQueue returns signatures flagged updated.
func (s *MemoryStore) UpdatedQueue(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []int64
	for id, va := range s.vas {
		if va.Updated {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids, nil
}

// CachedCandidates looks up the compatibility cache by bucket hash.
func (s *MemoryStore) CachedCandidates(_ context.Context, bucketHash string) ([]int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, ok := s.compatCache[bucketHash]
	if !ok {
		return nil, false, nil
	}
	return append([]int64(nil), ids...), true, nil
}

// PutCachedCandidates records candidate cluster ids for a bucket hash.
func (s *MemoryStore) PutCachedCandidates(_ context.Context, bucketHash string, raIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compatCache[bucketHash] = append([]int64(nil), raIDs...)
	return nil
}

// InvalidateCache drops every compatibility cache entry.
func (s *MemoryStore) InvalidateCache(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compatCache = make(map[string][]int64)
	return nil
}

// mergeAttributes folds all non-bookkeeping attributes of a signature into a
// cluster's aggregate rows. Callers must hold the write lock.
func (s *MemoryStore) mergeAttributes(raID int64, va *domain.VirtualAuthor, probability float64) {
	for _, attr := range va.Attributes {
		if domain.IsBookkeepingTag(attr.Tag) {
			continue
		}
		s.incrementData(raID, attr.Tag, attr.Value, probability)
	}
}

func (s *MemoryStore) incrementData(raID int64, tag, value string, probability float64) {
	rows := s.data[raID]
	if rows == nil {
		rows = make(map[dataKey]*domain.RealAuthorData)
		s.data[raID] = rows
	}
	key := dataKey{tag: tag, value: value}
	row, ok := rows[key]
	if !ok {
		rows[key] = &domain.RealAuthorData{
			RealAuthorID: raID,
			Tag:          tag,
			Value:        value,
			Count:        1,
			NumVAs:       1,
			SumProb:      probability,
		}
		return
	}
	row.Count++
	row.NumVAs++
	row.SumProb += probability
}

func (s *MemoryStore) decrementData(raID int64, tag, value string, probability float64) {
	rows := s.data[raID]
	if rows == nil {
		return
	}
	key := dataKey{tag: tag, value: value}
	row, ok := rows[key]
	if !ok {
		return
	}
	row.Count--
	row.NumVAs--
	row.SumProb -= probability
	if row.Count <= 0 {
		delete(rows, key)
	}
}

// sortIDs keeps queue order deterministic across map iterations.
func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
