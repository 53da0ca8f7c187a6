// Package store defines the signature store contract: persistence of virtual
// author signatures, real author clusters, the denormalized RealAuthorData
// aggregate, last-name buckets and the candidate compatibility cache.
//
// The clustering engine is written against the SignatureStore interface; the
// in-memory implementation in this package backs tests and single-process
// batch runs, and internal/repository provides a PostgreSQL implementation
// with the same semantics.
package store

import (
	"context"

	"github.com/helixir/author-disambiguation-service/internal/domain"
)

// SignatureStore is the persistence contract consumed by the cluster
// assignment engine.
//
// Aggregate maintenance is part of the attach/detach contract: AttachVA and
// CreateRealAuthor fold the signature's non-bookkeeping attributes into the
// cluster's RealAuthorData index, and DetachVA decrements them, deleting rows
// whose count reaches zero. Harvester modules add further derived rows
// through AddDataPoint.
type SignatureStore interface {
	// AddVirtualAuthor stores a new signature and returns its id. The
	// signature starts unconnected and flagged updated.
	AddVirtualAuthor(ctx context.Context, va *domain.VirtualAuthor) (int64, error)

	// VirtualAuthor returns a signature by id, or domain.ErrNotFound.
	VirtualAuthor(ctx context.Context, vaID int64) (*domain.VirtualAuthor, error)

	// VAAttributes returns the signature's attributes, filtered by tag when
	// tag is non-empty.
	VAAttributes(ctx context.Context, vaID int64, tag string) ([]domain.Attribute, error)

	// SetFlags updates the connected/updated state flags of a signature.
	SetFlags(ctx context.Context, vaID int64, connected, updated bool) error

	// Bucket returns the ids of all signatures sharing the given last-name
	// key, in insertion order.
	Bucket(ctx context.Context, bucketKey string) ([]int64, error)

	// RealAuthor returns a cluster by id, or domain.ErrNotFound.
	RealAuthor(ctx context.Context, raID int64) (*domain.RealAuthor, error)

	// RealAuthorsForVA returns the ids of every cluster the signature
	// belongs to. Empty for orphans.
	RealAuthorsForVA(ctx context.Context, vaID int64) ([]int64, error)

	// CreateRealAuthor creates a new cluster containing only the given
	// signature and returns the cluster id.
	CreateRealAuthor(ctx context.Context, vaID int64, probability float64) (int64, error)

	// AttachVA attaches a signature to an existing cluster.
	AttachVA(ctx context.Context, raID, vaID int64, probability float64) error

	// DetachVA removes a signature from a cluster, decrementing the
	// aggregate index. Removing the last member deletes neither the cluster
	// nor the signature.
	DetachVA(ctx context.Context, raID, vaID int64) error

	// RealAuthorData returns the aggregate rows for a cluster, filtered by
	// tag when tag is non-empty.
	RealAuthorData(ctx context.Context, raID int64, tag string) ([]domain.RealAuthorData, error)

	// AddDataPoint folds one (tag, value) observation into a cluster's
	// aggregate index: a new row on first occurrence, otherwise incremented
	// counts and probability sum.
	AddDataPoint(ctx context.Context, raID int64, tag, value string, probability float64) error

	// Orphans returns the ids of signatures with no cluster membership that
	// are not yet connected.
	Orphans(ctx context.Context) ([]int64, error)

	// UpdatedQueue returns the ids of signatures flagged updated.
	UpdatedQueue(ctx context.Context) ([]int64, error)

	// CachedCandidates looks up the compatibility cache: the candidate
	// cluster ids recorded for a bucket content hash. The second return is
	// false on a cache miss.
	CachedCandidates(ctx context.Context, bucketHash string) ([]int64, bool, error)

	// PutCachedCandidates records candidate cluster ids for a bucket hash,
	// replacing any previous entry.
	PutCachedCandidates(ctx context.Context, bucketHash string, raIDs []int64) error

	// InvalidateCache drops every compatibility cache entry. The cache is
	// purely a performance structure; invalidation never loses correctness.
	InvalidateCache(ctx context.Context) error
}
