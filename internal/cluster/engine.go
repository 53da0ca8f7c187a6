// Package cluster implements the assignment engine: deciding, for each author
// signature, whether it joins an existing real-author cluster or seeds a new
// one, plus the batch loops that drain the orphan and update queues.
package cluster

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/author-disambiguation-service/internal/domain"
	"github.com/helixir/author-disambiguation-service/internal/events"
	"github.com/helixir/author-disambiguation-service/internal/harvest"
	"github.com/helixir/author-disambiguation-service/internal/names"
	"github.com/helixir/author-disambiguation-service/internal/observability"
	"github.com/helixir/author-disambiguation-service/internal/store"
)

// DefaultAddingThreshold is the minimum compatibility score required to
// attach a signature to an existing cluster.
const DefaultAddingThreshold = 0.7

// EngineConfig holds the engine's tunables.
type EngineConfig struct {
	// AddingThreshold is the minimum winning score for attaching to an
	// existing cluster; below it a new cluster is created.
	AddingThreshold float64

	// MultiAssignment resolves score ties by attaching the signature to
	// every tied cluster on the final orphan pass instead of deferring.
	MultiAssignment bool

	// OrphanIterations is the number of passes ProcessOrphans runs.
	OrphanIterations int
}

// Engine assigns author signatures to real-author clusters. Assignment reads
// then writes cluster membership and the compatibility cache non-atomically,
// so concurrent Assign calls on the same bucket are not supported.
type Engine struct {
	store    store.SignatureStore
	registry *harvest.Registry
	events   events.Publisher
	metrics  *observability.Metrics
	parser   *names.Parser
	logger   zerolog.Logger
	cfg      EngineConfig
}

// NewEngine creates the assignment engine. At least one comparison module
// must be registered; without scoring signal every assignment is meaningless,
// so an empty registry is a fatal configuration error.
func NewEngine(
	s store.SignatureStore,
	registry *harvest.Registry,
	publisher events.Publisher,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	cfg EngineConfig,
) (*Engine, error) {
	if registry == nil || registry.Len() == 0 {
		return nil, domain.ErrNoHarvesters
	}
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}
	if cfg.AddingThreshold == 0 {
		cfg.AddingThreshold = DefaultAddingThreshold
	}
	if cfg.OrphanIterations <= 0 {
		cfg.OrphanIterations = 1
	}
	return &Engine{
		store:    s,
		registry: registry,
		events:   publisher,
		metrics:  metrics,
		parser:   names.DefaultParser(),
		logger:   logger.With().Str("component", "cluster_engine").Logger(),
		cfg:      cfg,
	}, nil
}

// candidate is one cluster under consideration, with its weakest-link score.
type candidate struct {
	raID  int64
	score float64
}

// Assign evaluates one signature and attaches it to the best compatible
// cluster, creates a new cluster, or defers on an unresolved tie.
//
// Assignment is idempotent: a signature that already belongs to a cluster is
// not re-evaluated, only its flags are refreshed.
func (e *Engine) Assign(ctx context.Context, vaID int64, allowMulti bool) (domain.AssignmentOutcome, error) {
	start := time.Now()
	outcome, err := e.assign(ctx, vaID, allowMulti)
	if err == nil && e.metrics != nil {
		e.metrics.RecordAssignment(string(outcome.Kind), time.Since(start).Seconds())
	}
	return outcome, err
}

func (e *Engine) assign(ctx context.Context, vaID int64, allowMulti bool) (domain.AssignmentOutcome, error) {
	existing, err := e.store.RealAuthorsForVA(ctx, vaID)
	if err != nil {
		return domain.AssignmentOutcome{}, fmt.Errorf("lookup memberships for va %d: %w", vaID, err)
	}
	if len(existing) > 0 {
		if err := e.store.SetFlags(ctx, vaID, true, false); err != nil {
			return domain.AssignmentOutcome{}, fmt.Errorf("refresh flags for va %d: %w", vaID, err)
		}
		return domain.AssignmentOutcome{
			Kind:          domain.AssignmentAlreadyAssigned,
			RealAuthorIDs: existing,
		}, nil
	}

	va, err := e.store.VirtualAuthor(ctx, vaID)
	if err != nil {
		return domain.AssignmentOutcome{}, err
	}
	logger := observability.WithSignatureContext(e.logger, vaID, va.BucketKey)

	bucket, err := e.store.Bucket(ctx, va.BucketKey)
	if err != nil {
		return domain.AssignmentOutcome{}, fmt.Errorf("load bucket %q: %w", va.BucketKey, err)
	}

	bucketHash := hashBucket(va.BucketKey, bucket)
	candidateIDs, err := e.candidateClusters(ctx, bucketHash, bucket, vaID)
	if err != nil {
		return domain.AssignmentOutcome{}, err
	}

	candidates, err := e.scoreCandidates(ctx, va, candidateIDs)
	if err != nil {
		return domain.AssignmentOutcome{}, err
	}

	best, tied := bestCandidates(candidates)
	switch {
	case len(tied) == 0 || best < e.cfg.AddingThreshold:
		return e.createCluster(ctx, logger, va, bucketHash, candidateIDs)
	case len(tied) == 1:
		return e.attach(ctx, logger, va, tied, best, false)
	case allowMulti:
		return e.attach(ctx, logger, va, tied, best, true)
	default:
		return e.deferAssignment(ctx, logger, va, tied, best)
	}
}

// candidateClusters returns the distinct clusters already containing a member
// of the bucket, excluding the signature being assigned. The result comes
// from the compatibility cache when the bucket content is unchanged.
func (e *Engine) candidateClusters(ctx context.Context, bucketHash string, bucket []int64, vaID int64) ([]int64, error) {
	if cached, ok, err := e.store.CachedCandidates(ctx, bucketHash); err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	} else if ok {
		if e.metrics != nil {
			e.metrics.RecordCacheHit()
		}
		return cached, nil
	}
	if e.metrics != nil {
		e.metrics.RecordCacheMiss()
	}

	seen := make(map[int64]struct{})
	var candidates []int64
	for _, memberID := range bucket {
		if memberID == vaID {
			continue
		}
		raIDs, err := e.store.RealAuthorsForVA(ctx, memberID)
		if err != nil {
			return nil, fmt.Errorf("lookup memberships for va %d: %w", memberID, err)
		}
		for _, raID := range raIDs {
			if _, dup := seen[raID]; dup {
				continue
			}
			seen[raID] = struct{}{}
			candidates = append(candidates, raID)
		}
	}

	if err := e.store.PutCachedCandidates(ctx, bucketHash, candidates); err != nil {
		return nil, fmt.Errorf("cache store: %w", err)
	}
	return candidates, nil
}

// scoreCandidates computes the weakest-link score of the signature against
// each candidate cluster: the minimum compatibility across the cluster's
// members. Members with no scoring signal are skipped; a cluster where no
// member produced signal is dropped from consideration.
func (e *Engine) scoreCandidates(ctx context.Context, va *domain.VirtualAuthor, candidateIDs []int64) ([]candidate, error) {
	var candidates []candidate
	for _, raID := range candidateIDs {
		ra, err := e.store.RealAuthor(ctx, raID)
		if err != nil {
			return nil, fmt.Errorf("load cluster %d: %w", raID, err)
		}
		if ra.HasMember(va.ID) {
			continue
		}

		minScore := 1.0
		scored := false
		for _, member := range ra.Members {
			memberVA, err := e.store.VirtualAuthor(ctx, member.VirtualAuthorID)
			if err != nil {
				return nil, err
			}
			score, ok, err := e.registry.Compatibility(ctx, va, memberVA)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			scored = true
			if score < minScore {
				minScore = score
			}
		}
		if scored {
			candidates = append(candidates, candidate{raID: raID, score: minScore})
		}
	}
	return candidates, nil
}

// bestCandidates returns the maximum weakest-link score and every candidate
// attaining it, in candidate order.
func bestCandidates(candidates []candidate) (float64, []int64) {
	if len(candidates) == 0 {
		return 0, nil
	}
	best := candidates[0].score
	for _, c := range candidates[1:] {
		if c.score > best {
			best = c.score
		}
	}
	var tied []int64
	for _, c := range candidates {
		if c.score == best {
			tied = append(tied, c.raID)
		}
	}
	return best, tied
}

func (e *Engine) createCluster(
	ctx context.Context,
	logger zerolog.Logger,
	va *domain.VirtualAuthor,
	bucketHash string,
	candidateIDs []int64,
) (domain.AssignmentOutcome, error) {
	raID, err := e.store.CreateRealAuthor(ctx, va.ID, 1.0)
	if err != nil {
		return domain.AssignmentOutcome{}, fmt.Errorf("create cluster for va %d: %w", va.ID, err)
	}
	if err := e.store.SetFlags(ctx, va.ID, true, false); err != nil {
		return domain.AssignmentOutcome{}, fmt.Errorf("set flags for va %d: %w", va.ID, err)
	}

	e.registry.ExtractAll(ctx, va.ID, raID)

	// The bucket content has not changed, so the cached candidate list for
	// this hash would stay stale without the new cluster appended.
	if err := e.store.PutCachedCandidates(ctx, bucketHash, append(candidateIDs, raID)); err != nil {
		return domain.AssignmentOutcome{}, fmt.Errorf("cache refresh: %w", err)
	}

	e.publish(ctx, domain.EventTypeClusterCreated, raID, domain.AggregateTypeRealAuthor,
		domain.ClusterCreatedPayload{RealAuthorID: raID, VirtualAuthorID: va.ID, Probability: 1.0})

	logger.Info().Int64("ra_id", raID).Msg("created new cluster")
	return domain.AssignmentOutcome{
		Kind:          domain.AssignmentCreated,
		RealAuthorIDs: []int64{raID},
		Score:         1.0,
	}, nil
}

func (e *Engine) attach(
	ctx context.Context,
	logger zerolog.Logger,
	va *domain.VirtualAuthor,
	raIDs []int64,
	score float64,
	multi bool,
) (domain.AssignmentOutcome, error) {
	for _, raID := range raIDs {
		if err := e.store.AttachVA(ctx, raID, va.ID, score); err != nil {
			return domain.AssignmentOutcome{}, fmt.Errorf("attach va %d to cluster %d: %w", va.ID, raID, err)
		}
		e.registry.ExtractAll(ctx, va.ID, raID)
	}
	if err := e.store.SetFlags(ctx, va.ID, true, false); err != nil {
		return domain.AssignmentOutcome{}, fmt.Errorf("set flags for va %d: %w", va.ID, err)
	}
	if e.metrics != nil {
		e.metrics.RecordAssignmentScore(score)
	}

	e.publish(ctx, domain.EventTypeSignatureAttached, va.ID, domain.AggregateTypeVirtualAuthor,
		domain.SignatureAttachedPayload{RealAuthorIDs: raIDs, VirtualAuthorID: va.ID, Score: score, MultiAssigned: multi})

	kind := domain.AssignmentAttached
	if multi {
		kind = domain.AssignmentAttachedMultiple
	}
	logger.Info().
		Ints64("ra_ids", raIDs).
		Float64("score", score).
		Bool("multi", multi).
		Msg("attached signature to cluster")
	return domain.AssignmentOutcome{Kind: kind, RealAuthorIDs: raIDs, Score: score}, nil
}

// deferAssignment leaves a tied signature unassigned and flags it updated so a later
// pass, possibly with multi-assignment enabled, can resolve the tie.
func (e *Engine) deferAssignment(
	ctx context.Context,
	logger zerolog.Logger,
	va *domain.VirtualAuthor,
	tied []int64,
	score float64,
) (domain.AssignmentOutcome, error) {
	if err := e.store.SetFlags(ctx, va.ID, false, true); err != nil {
		return domain.AssignmentOutcome{}, fmt.Errorf("set flags for va %d: %w", va.ID, err)
	}

	e.publish(ctx, domain.EventTypeSignatureDeferred, va.ID, domain.AggregateTypeVirtualAuthor,
		domain.SignatureDeferredPayload{VirtualAuthorID: va.ID, TiedCandidates: tied, Score: score})

	logger.Info().
		Ints64("tied", tied).
		Float64("score", score).
		Msg("deferred signature on tie")
	return domain.AssignmentOutcome{Kind: domain.AssignmentDeferred, RealAuthorIDs: tied, Score: score}, nil
}

// publish emits an assignment event; publish failures are logged, never
// propagated, since the store is already consistent at this point.
func (e *Engine) publish(ctx context.Context, eventType string, aggregateID int64, aggregateType string, payload interface{}) {
	event, err := domain.NewEvent(eventType, aggregateID, aggregateType, payload)
	if err != nil {
		e.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to build event")
		return
	}
	if err := e.events.Publish(ctx, event); err != nil {
		e.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

// hashBucket derives the compatibility cache key from the bucket key and its
// member ids.
func hashBucket(bucketKey string, bucket []int64) string {
	var sb strings.Builder
	sb.WriteString(bucketKey)
	for _, id := range bucket {
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatInt(id, 10))
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:16])
}
