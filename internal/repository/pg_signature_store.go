package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/author-disambiguation-service/internal/domain"
	"github.com/helixir/author-disambiguation-service/internal/store"
)

// Compile-time interface verification.
var _ store.SignatureStore = (*PgSignatureStore)(nil)

// PgSignatureStore is a PostgreSQL implementation of store.SignatureStore.
type PgSignatureStore struct {
	db DBTX
}

// NewPgSignatureStore creates a new PostgreSQL signature store.
func NewPgSignatureStore(db DBTX) *PgSignatureStore {
	return &PgSignatureStore{db: db}
}

// AddVirtualAuthor stores a new signature and its attributes. The signature
// starts unconnected and flagged updated.
func (r *PgSignatureStore) AddVirtualAuthor(ctx context.Context, va *domain.VirtualAuthor) (int64, error) {
	if va == nil {
		return 0, fmt.Errorf("%w: virtual author cannot be nil", domain.ErrInvalidInput)
	}
	if va.Name == "" {
		return 0, fmt.Errorf("%w: virtual author name cannot be empty", domain.ErrInvalidInput)
	}

	probability := va.Probability
	if probability == 0 {
		probability = 1.0
	}

	query := `
		INSERT INTO virtual_authors (name, bucket_key, probability, connected, updated)
		VALUES ($1, $2, $3, FALSE, TRUE)
		RETURNING id`

	var id int64
	if err := r.db.QueryRow(ctx, query, va.Name, va.BucketKey, probability).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to add virtual author: %w", err)
	}

	if len(va.Attributes) > 0 {
		var valueStrings []string
		var args []interface{}
		for i, attr := range va.Attributes {
			valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3))
			args = append(args, id, attr.Tag, attr.Value)
		}
		attrQuery := fmt.Sprintf(`
			INSERT INTO virtual_author_attributes (virtual_author_id, tag, value)
			VALUES %s`, strings.Join(valueStrings, ", "))
		if _, err := r.db.Exec(ctx, attrQuery, args...); err != nil {
			return 0, fmt.Errorf("failed to add virtual author attributes: %w", err)
		}
	}

	return id, nil
}

// VirtualAuthor retrieves a signature by id, including its attributes.
func (r *PgSignatureStore) VirtualAuthor(ctx context.Context, vaID int64) (*domain.VirtualAuthor, error) {
	query := `
		SELECT id, name, bucket_key, probability, connected, updated, created_at
		FROM virtual_authors
		WHERE id = $1`

	var va domain.VirtualAuthor
	err := r.db.QueryRow(ctx, query, vaID).Scan(
		&va.ID, &va.Name, &va.BucketKey, &va.Probability,
		&va.Connected, &va.Updated, &va.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("virtual author", vaID)
		}
		return nil, fmt.Errorf("failed to get virtual author: %w", err)
	}

	attrs, err := r.VAAttributes(ctx, vaID, "")
	if err != nil {
		return nil, err
	}
	va.Attributes = attrs

	return &va, nil
}

// VAAttributes retrieves the signature's attributes, filtered by tag when tag
// is non-empty.
func (r *PgSignatureStore) VAAttributes(ctx context.Context, vaID int64, tag string) ([]domain.Attribute, error) {
	query := `
		SELECT tag, value
		FROM virtual_author_attributes
		WHERE virtual_author_id = $1`
	args := []interface{}{vaID}

	if tag != "" {
		query += " AND tag = $2"
		args = append(args, tag)
	}
	query += " ORDER BY id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get attributes: %w", err)
	}
	defer rows.Close()

	var attrs []domain.Attribute
	for rows.Next() {
		var attr domain.Attribute
		if err := rows.Scan(&attr.Tag, &attr.Value); err != nil {
			return nil, fmt.Errorf("failed to scan attribute: %w", err)
		}
		attrs = append(attrs, attr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attributes: %w", err)
	}

	return attrs, nil
}

// SetFlags updates the connected/updated state flags of a signature.
func (r *PgSignatureStore) SetFlags(ctx context.Context, vaID int64, connected, updated bool) error {
	query := `
		UPDATE virtual_authors
		SET connected = $2, updated = $3, updated_at = now()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, vaID, connected, updated)
	if err != nil {
		return fmt.Errorf("failed to set flags: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("virtual author", vaID)
	}

	return nil
}

// Bucket retrieves the ids of all signatures sharing the given last-name key,
// in insertion order.
func (r *PgSignatureStore) Bucket(ctx context.Context, bucketKey string) ([]int64, error) {
	query := `
		SELECT id
		FROM virtual_authors
		WHERE bucket_key = $1
		ORDER BY id`

	return r.queryIDs(ctx, query, bucketKey)
}

// RealAuthor retrieves a cluster by id together with its membership.
func (r *PgSignatureStore) RealAuthor(ctx context.Context, raID int64) (*domain.RealAuthor, error) {
	var ra domain.RealAuthor
	err := r.db.QueryRow(ctx, `SELECT id, created_at FROM real_authors WHERE id = $1`, raID).
		Scan(&ra.ID, &ra.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("real author", raID)
		}
		return nil, fmt.Errorf("failed to get real author: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT virtual_author_id, probability
		FROM real_author_members
		WHERE real_author_id = $1
		ORDER BY attached_at, virtual_author_id`, raID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cluster members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.VirtualAuthorID, &m.Probability); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		ra.Members = append(ra.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}

	return &ra, nil
}

// RealAuthorsForVA retrieves the ids of every cluster the signature belongs
// to. Empty for orphans.
func (r *PgSignatureStore) RealAuthorsForVA(ctx context.Context, vaID int64) ([]int64, error) {
	query := `
		SELECT real_author_id
		FROM real_author_members
		WHERE virtual_author_id = $1
		ORDER BY attached_at, real_author_id`

	return r.queryIDs(ctx, query, vaID)
}

// CreateRealAuthor creates a new cluster containing only the given signature.
func (r *PgSignatureStore) CreateRealAuthor(ctx context.Context, vaID int64, probability float64) (int64, error) {
	if _, err := r.VirtualAuthor(ctx, vaID); err != nil {
		return 0, err
	}

	var raID int64
	if err := r.db.QueryRow(ctx, `INSERT INTO real_authors DEFAULT VALUES RETURNING id`).Scan(&raID); err != nil {
		return 0, fmt.Errorf("failed to create real author: %w", err)
	}

	if err := r.AttachVA(ctx, raID, vaID, probability); err != nil {
		return 0, err
	}

	return raID, nil
}

// AttachVA attaches a signature to an existing cluster and folds the
// signature's non-bookkeeping attributes into the cluster's aggregate index.
// Attaching an existing member is a no-op.
func (r *PgSignatureStore) AttachVA(ctx context.Context, raID, vaID int64, probability float64) error {
	attrs, err := r.VAAttributes(ctx, vaID, "")
	if err != nil {
		return err
	}

	query := `
		INSERT INTO real_author_members (real_author_id, virtual_author_id, probability)
		VALUES ($1, $2, $3)
		ON CONFLICT (real_author_id, virtual_author_id) DO NOTHING`

	tag, err := r.db.Exec(ctx, query, raID, vaID, probability)
	if err != nil {
		return fmt.Errorf("failed to attach virtual author: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already a member; the aggregate index is already up to date.
		return nil
	}

	for _, attr := range attrs {
		if domain.IsBookkeepingTag(attr.Tag) {
			continue
		}
		if err := r.AddDataPoint(ctx, raID, attr.Tag, attr.Value, probability); err != nil {
			return err
		}
	}

	return nil
}

// DetachVA removes a signature from a cluster, decrementing the aggregate
// index and deleting rows whose count reaches zero.
func (r *PgSignatureStore) DetachVA(ctx context.Context, raID, vaID int64) error {
	var probability float64
	err := r.db.QueryRow(ctx, `
		DELETE FROM real_author_members
		WHERE real_author_id = $1 AND virtual_author_id = $2
		RETURNING probability`, raID, vaID).Scan(&probability)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewNotFoundError("membership", vaID)
		}
		return fmt.Errorf("failed to detach virtual author: %w", err)
	}

	attrs, err := r.VAAttributes(ctx, vaID, "")
	if err != nil {
		return err
	}

	for _, attr := range attrs {
		if domain.IsBookkeepingTag(attr.Tag) {
			continue
		}
		_, err := r.db.Exec(ctx, `
			UPDATE real_author_data
			SET occurrence_count = occurrence_count - 1,
				num_vas = num_vas - 1,
				probability_sum = probability_sum - $4
			WHERE real_author_id = $1 AND tag = $2 AND value = $3`,
			raID, attr.Tag, attr.Value, probability)
		if err != nil {
			return fmt.Errorf("failed to decrement aggregate data: %w", err)
		}
	}

	if _, err := r.db.Exec(ctx, `
		DELETE FROM real_author_data
		WHERE real_author_id = $1 AND occurrence_count <= 0`, raID); err != nil {
		return fmt.Errorf("failed to prune aggregate data: %w", err)
	}

	return nil
}

// RealAuthorData retrieves the aggregate rows for a cluster, filtered by tag
// when tag is non-empty.
func (r *PgSignatureStore) RealAuthorData(ctx context.Context, raID int64, tag string) ([]domain.RealAuthorData, error) {
	query := `
		SELECT real_author_id, tag, value, occurrence_count, num_vas, probability_sum
		FROM real_author_data
		WHERE real_author_id = $1`
	args := []interface{}{raID}

	if tag != "" {
		query += " AND tag = $2"
		args = append(args, tag)
	}
	query += " ORDER BY tag, value"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get aggregate data: %w", err)
	}
	defer rows.Close()

	var data []domain.RealAuthorData
	for rows.Next() {
		var d domain.RealAuthorData
		if err := rows.Scan(&d.RealAuthorID, &d.Tag, &d.Value, &d.Count, &d.NumVAs, &d.SumProb); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate data: %w", err)
		}
		data = append(data, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aggregate data: %w", err)
	}

	return data, nil
}

// AddDataPoint folds one (tag, value) observation into a cluster's aggregate
// index.
func (r *PgSignatureStore) AddDataPoint(ctx context.Context, raID int64, tag, value string, probability float64) error {
	query := `
		INSERT INTO real_author_data (real_author_id, tag, value, occurrence_count, num_vas, probability_sum)
		VALUES ($1, $2, $3, 1, 1, $4)
		ON CONFLICT (real_author_id, tag, value) DO UPDATE SET
			occurrence_count = real_author_data.occurrence_count + 1,
			num_vas = real_author_data.num_vas + 1,
			probability_sum = real_author_data.probability_sum + EXCLUDED.probability_sum`

	if _, err := r.db.Exec(ctx, query, raID, tag, value, probability); err != nil {
		return fmt.Errorf("failed to add data point: %w", err)
	}

	return nil
}

// Orphans retrieves the ids of signatures with no cluster membership that are
// not yet connected.
func (r *PgSignatureStore) Orphans(ctx context.Context) ([]int64, error) {
	query := `
		SELECT va.id
		FROM virtual_authors va
		WHERE NOT va.connected
			AND NOT EXISTS (
				SELECT 1 FROM real_author_members m
				WHERE m.virtual_author_id = va.id
			)
		ORDER BY va.id`

	return r.queryIDs(ctx, query)
}

// UpdatedQueue retrieves the ids of signatures flagged updated.
func (r *PgSignatureStore) UpdatedQueue(ctx context.Context) ([]int64, error) {
	query := `
		SELECT id
		FROM virtual_authors
		WHERE updated
		ORDER BY id`

	return r.queryIDs(ctx, query)
}

// CachedCandidates looks up the compatibility cache for a bucket content
// hash. The second return is false on a cache miss.
func (r *PgSignatureStore) CachedCandidates(ctx context.Context, bucketHash string) ([]int64, bool, error) {
	var raIDs []int64
	err := r.db.QueryRow(ctx, `
		SELECT real_author_ids
		FROM compatibility_cache
		WHERE bucket_hash = $1`, bucketHash).Scan(&raIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cached candidates: %w", err)
	}

	return raIDs, true, nil
}

// PutCachedCandidates records candidate cluster ids for a bucket hash,
// replacing any previous entry.
func (r *PgSignatureStore) PutCachedCandidates(ctx context.Context, bucketHash string, raIDs []int64) error {
	// A bucket with no clusters yet caches an empty list. pgx encodes a nil
	// slice as SQL NULL, which the NOT NULL array column rejects.
	if raIDs == nil {
		raIDs = []int64{}
	}

	query := `
		INSERT INTO compatibility_cache (bucket_hash, real_author_ids, computed_at)
		VALUES ($1, $2, now())
		ON CONFLICT (bucket_hash) DO UPDATE SET
			real_author_ids = EXCLUDED.real_author_ids,
			computed_at = EXCLUDED.computed_at`

	if _, err := r.db.Exec(ctx, query, bucketHash, raIDs); err != nil {
		return fmt.Errorf("failed to put cached candidates: %w", err)
	}

	return nil
}

// InvalidateCache drops every compatibility cache entry.
func (r *PgSignatureStore) InvalidateCache(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM compatibility_cache`); err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}

// queryIDs runs a query returning a single bigint column and collects the
// values in row order.
func (r *PgSignatureStore) queryIDs(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ids: %w", err)
	}

	return ids, nil
}
