package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/author-disambiguation-service/internal/domain"
)

func newTestVA(name, bucketKey string, attrs ...domain.Attribute) *domain.VirtualAuthor {
	return &domain.VirtualAuthor{
		Name:       name,
		BucketKey:  bucketKey,
		Attributes: attrs,
	}
}

func TestMemoryStore_AddAndGetVirtualAuthor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.AddVirtualAuthor(ctx, newTestVA("Ellis, John", "ellis",
		domain.Attribute{Tag: domain.TagCoauthor, Value: "Smith, A."},
	))
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	va, err := s.VirtualAuthor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ellis, John", va.Name)
	assert.Equal(t, "ellis", va.BucketKey)
	assert.False(t, va.Connected)
	assert.True(t, va.Updated)
	assert.Equal(t, 1.0, va.Probability)
	assert.Len(t, va.Attributes, 1)
}

func TestMemoryStore_AddVirtualAuthor_Invalid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.AddVirtualAuthor(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.AddVirtualAuthor(ctx, newTestVA("", "ellis"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMemoryStore_VirtualAuthor_NotFound(t *testing.T) {
	t.Parallel()
	s := NewMemoryStore()

	_, err := s.VirtualAuthor(context.Background(), 42)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, int64(42), nf.ID)
}

func TestMemoryStore_VirtualAuthor_ReturnsCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.AddVirtualAuthor(ctx, newTestVA("Ellis, John", "ellis",
		domain.Attribute{Tag: domain.TagAffiliation, Value: "CERN"},
	))
	require.NoError(t, err)

	va, err := s.VirtualAuthor(ctx, id)
	require.NoError(t, err)
	va.Name = "mutated"
	va.Attributes[0].Value = "mutated"

	fresh, err := s.VirtualAuthor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ellis, John", fresh.Name)
	assert.Equal(t, "CERN", fresh.Attributes[0].Value)
}

func TestMemoryStore_VAAttributes_TagFilter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.AddVirtualAuthor(ctx, newTestVA("Ellis, John", "ellis",
		domain.Attribute{Tag: domain.TagCoauthor, Value: "Smith, A."},
		domain.Attribute{Tag: domain.TagCoauthor, Value: "Jones, B."},
		domain.Attribute{Tag: domain.TagAffiliation, Value: "CERN"},
	))
	require.NoError(t, err)

	all, err := s.VAAttributes(ctx, id, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	coauthors, err := s.VAAttributes(ctx, id, domain.TagCoauthor)
	require.NoError(t, err)
	assert.Len(t, coauthors, 2)
}

func TestMemoryStore_SetFlags(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.AddVirtualAuthor(ctx, newTestVA("Ellis, John", "ellis"))
	require.NoError(t, err)

	require.NoError(t, s.SetFlags(ctx, id, true, false))

	va, err := s.VirtualAuthor(ctx, id)
	require.NoError(t, err)
	assert.True(t, va.Connected)
	assert.False(t, va.Updated)

	err = s.SetFlags(ctx, 99, true, false)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_Bucket_InsertionOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	id1, err := s.AddVirtualAuthor(ctx, newTestVA("Ellis, John", "ellis"))
	require.NoError(t, err)
	id2, err := s.AddVirtualAuthor(ctx, newTestVA("Ellis, J.", "ellis"))
	require.NoError(t, err)
	_, err = s.AddVirtualAuthor(ctx, newTestVA("Smith, Ann", "smith"))
	require.NoError(t, err)

	bucket, err := s.Bucket(ctx, "ellis")
	require.NoError(t, err)
	assert.Equal(t, []int64{id1, id2}, bucket)

	empty, err := s.Bucket(ctx, "nosuch")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore_CreateRealAuthor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	vaID, err := s.AddVirtualAuthor(ctx, newTestVA("Ellis, John", "ellis",
		domain.Attribute{Tag: domain.TagAffiliation, Value: "CERN"},
		domain.Attribute{Tag: domain.TagUpdated, Value: "true"},
	))
	require.NoError(t, err)

	raID, err := s.CreateRealAuthor(ctx, vaID, 1.0)
	require.NoError(t, err)

	ra, err := s.RealAuthor(ctx, raID)
	require.NoError(t, err)
	require.Len(t, ra.Members, 1)
	assert.Equal(t, vaID, ra.Members[0].VirtualAuthorID)
	assert.True(t, ra.HasMember(vaID))

	ids, err := s.RealAuthorsForVA(ctx, vaID)
	require.NoError(t, err)
	assert.Equal(t, []int64{raID}, ids)

	// Bookkeeping tags stay out of the aggregate.
	rows, err := s.RealAuthorData(ctx, raID, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.TagAffiliation, rows[0].Tag)
	assert.Equal(t, "CERN", rows[0].Value)
	assert.Equal(t, 1, rows[0].Count)
	assert.Equal(t, 1.0, rows[0].SumProb)
}

func TestMemoryStore_AttachVA_FoldsAggregate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	va1, err := s.AddVirtualAuthor(ctx, newTestVA("Ellis, John", "ellis",
		domain.Attribute{Tag: domain.TagAffiliation, Value: "CERN"},
	))
	require.NoError(t, err)
	va2, err := s.AddVirtualAuthor(ctx, newTestVA("Ellis, J.", "ellis",
		domain.Attribute{Tag: domain.TagAffiliation, Value: "CERN"},
		domain.Attribute{Tag: domain.TagCoauthor, Value: "Smith, A."},
	))
	require.NoError(t, err)

	raID, err := s.CreateRealAuthor(ctx, va1, 1.0)
	require.NoError(t, err)
	require.NoError(t, s.AttachVA(ctx, raID, va2, 0.85))

	ra, err := s.RealAuthor(ctx, raID)
	require.NoError(t, err)
	assert.Len(t, ra.Members, 2)

	rows, err := s.RealAuthorData(ctx, raID, domain.TagAffiliation)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Count)
	assert.InDelta(t, 1.85, rows[0].SumProb, 1e-9)

	coauthors, err := s.RealAuthorData(ctx, raID, domain.TagCoauthor)
	require.NoError(t, err)
	require.Len(t, coauthors, 1)
	assert.Equal(t, "Smith, A.", coauthors[0].Value)
}

func TestMemoryStore_AttachVA_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	vaID, err := s.AddVirtualAuthor(ctx, newTestVA("Ellis, John", "ellis",
		domain.Attribute{Tag: domain.TagAffiliation, Value: "CERN"},
	))
	require.NoError(t, err)

	raID, err := s.CreateRealAuthor(ctx, vaID, 1.0)
	require.NoError(t, err)
	require.NoError(t, s.AttachVA(ctx, raID, vaID, 1.0))

	ra, err := s.RealAuthor(ctx, raID)
	require.NoError(t, err)
	assert.Len(t, ra.Members, 1)

	rows, err := s.RealAuthorData(ctx, raID, domain.TagAffiliation)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Count)
}

func TestMemoryStore_DetachVA(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	va1, err := s.AddVirtualAuthor(ctx, newTestVA("Ellis, John", "ellis",
		domain.Attribute{Tag: domain.TagAffiliation, Value: "CERN"},
	))
	require.NoError(t, err)
	va2, err := s.AddVirtualAuthor(ctx, newTestVA("Ellis, J.", "ellis",
		domain.Attribute{Tag: domain.TagAffiliation, Value: "CERN"},
	))
	require.NoError(t, err)

	raID, err := s.CreateRealAuthor(ctx, va1, 1.0)
	require.NoError(t, err)
	require.NoError(t, s.AttachVA(ctx, raID, va2, 0.8))

	require.NoError(t, s.DetachVA(ctx, raID, va2))

	ra, err := s.RealAuthor(ctx, raID)
	require.NoError(t, err)
	assert.Len(t, ra.Members, 1)
	assert.False(t, ra.HasMember(va2))

	ids, err := s.RealAuthorsForVA(ctx, va2)
	require.NoError(t, err)
	assert.Empty(t, ids)

	rows, err := s.RealAuthorData(ctx, raID, domain.TagAffiliation)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Count)
	assert.InDelta(t, 1.0, rows[0].SumProb, 1e-9)

	// Detaching the last member deletes the aggregate row but keeps the
	// cluster and the signature.
	require.NoError(t, s.DetachVA(ctx, raID, va1))
	rows, err = s.RealAuthorData(ctx, raID, "")
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = s.RealAuthor(ctx, raID)
	assert.NoError(t, err)
	_, err = s.VirtualAuthor(ctx, va1)
	assert.NoError(t, err)
}

func TestMemoryStore_DetachVA_NotMember(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	va1, err := s.AddVirtualAuthor(ctx, newTestVA("Ellis, John", "ellis"))
	require.NoError(t, err)
	va2, err := s.AddVirtualAuthor(ctx, newTestVA("Smith, Ann", "smith"))
	require.NoError(t, err)

	raID, err := s.CreateRealAuthor(ctx, va1, 1.0)
	require.NoError(t, err)

	err = s.DetachVA(ctx, raID, va2)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_AddDataPoint(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	vaID, err := s.AddVirtualAuthor(ctx, newTestVA("Ellis, John", "ellis"))
	require.NoError(t, err)
	raID, err := s.CreateRealAuthor(ctx, vaID, 1.0)
	require.NoError(t, err)

	require.NoError(t, s.AddDataPoint(ctx, raID, domain.TagName, "Ellis.J", 1.0))
	require.NoError(t, s.AddDataPoint(ctx, raID, domain.TagName, "Ellis.J", 0.5))

	rows, err := s.RealAuthorData(ctx, raID, domain.TagName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Count)
	assert.InDelta(t, 1.5, rows[0].SumProb, 1e-9)

	err = s.AddDataPoint(ctx, 99, domain.TagName, "x", 1.0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_OrphansAndUpdatedQueue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	va1, err := s.AddVirtualAuthor(ctx, newTestVA("Ellis, John", "ellis"))
	require.NoError(t, err)
	va2, err := s.AddVirtualAuthor(ctx, newTestVA("Smith, Ann", "smith"))
	require.NoError(t, err)
	va3, err := s.AddVirtualAuthor(ctx, newTestVA("Jones, Bob", "jones"))
	require.NoError(t, err)

	_, err = s.CreateRealAuthor(ctx, va1, 1.0)
	require.NoError(t, err)
	require.NoError(t, s.SetFlags(ctx, va1, true, false))
	require.NoError(t, s.SetFlags(ctx, va3, false, false))

	orphans, err := s.Orphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{va2, va3}, orphans)

	updated, err := s.UpdatedQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{va2}, updated)
}

func TestMemoryStore_CompatCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.CachedCandidates(ctx, "hash1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.PutCachedCandidates(ctx, "hash1", []int64{3, 7}))

	ids, ok, err := s.CachedCandidates(ctx, "hash1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int64{3, 7}, ids)

	// An empty candidate list is still a hit.
	require.NoError(t, s.PutCachedCandidates(ctx, "hash2", nil))
	ids, ok, err = s.CachedCandidates(ctx, "hash2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, ids)

	require.NoError(t, s.InvalidateCache(ctx))
	_, ok, err = s.CachedCandidates(ctx, "hash1")
	require.NoError(t, err)
	assert.False(t, ok)
}
