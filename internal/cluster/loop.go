package cluster

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/author-disambiguation-service/internal/domain"
	"github.com/helixir/author-disambiguation-service/internal/observability"
)

// Stats summarizes one batch run.
type Stats struct {
	Processed int
	Created   int
	Attached  int
	Deferred  int
	Skipped   int
	Errors    int
}

func (s *Stats) record(outcome domain.AssignmentOutcome) {
	s.Processed++
	switch outcome.Kind {
	case domain.AssignmentCreated:
		s.Created++
	case domain.AssignmentAttached, domain.AssignmentAttachedMultiple:
		s.Attached++
	case domain.AssignmentDeferred:
		s.Deferred++
	case domain.AssignmentAlreadyAssigned:
		s.Skipped++
	}
}

// ProcessOrphans drains the queue of signatures with no cluster membership,
// assigning each one. It runs up to the configured number of passes; on the
// final pass multi-assignment is switched on if globally configured, so
// remaining ties resolve instead of deferring forever.
//
// Per-signature errors are logged and skipped; they never abort the batch.
// The loop can be interrupted between assignments via the context.
func (e *Engine) ProcessOrphans(ctx context.Context) (Stats, error) {
	return e.runBatch(ctx, "orphans", func(ctx context.Context) (Stats, error) {
		var stats Stats
		for pass := 1; pass <= e.cfg.OrphanIterations; pass++ {
			orphans, err := e.store.Orphans(ctx)
			if err != nil {
				return stats, err
			}
			if len(orphans) == 0 {
				break
			}
			allowMulti := e.cfg.MultiAssignment && pass == e.cfg.OrphanIterations
			if err := e.assignAll(ctx, orphans, allowMulti, &stats); err != nil {
				return stats, err
			}
		}
		return stats, nil
	})
}

// ProcessUpdates drains the queue of signatures flagged updated in two
// passes. Pass one handles only signatures whose normalized name carries at
// least one full given name; pass two handles the rest, including
// bare-initials entries. High-information names must seed clusters before
// low-information ones are forced to pick.
func (e *Engine) ProcessUpdates(ctx context.Context) (Stats, error) {
	return e.runBatch(ctx, "updates", func(ctx context.Context) (Stats, error) {
		var stats Stats

		queue, err := e.store.UpdatedQueue(ctx)
		if err != nil {
			return stats, err
		}
		fullNames := e.fullNameEntries(ctx, queue, &stats)
		if err := e.assignAll(ctx, fullNames, false, &stats); err != nil {
			return stats, err
		}

		// Re-read the queue: pass one may have re-flagged deferred
		// entries, and pass two must cover every remaining updated
		// signature, bare-initials ones included.
		queue, err = e.store.UpdatedQueue(ctx)
		if err != nil {
			return stats, err
		}
		if err := e.assignAll(ctx, queue, false, &stats); err != nil {
			return stats, err
		}
		return stats, nil
	})
}

// runBatch wraps a batch body with timing, metrics and a completion event.
func (e *Engine) runBatch(ctx context.Context, loop string, body func(context.Context) (Stats, error)) (Stats, error) {
	batchID := uuid.New().String()
	ctx = observability.WithBatchID(ctx, batchID)
	logger := observability.WithBatchContext(e.logger, batchID, loop)
	logger.Info().Msg("batch started")

	start := time.Now()
	stats, err := body(ctx)
	elapsed := time.Since(start)

	if e.metrics != nil {
		e.metrics.RecordBatch(loop, elapsed.Seconds())
	}
	e.publish(ctx, domain.EventTypeBatchCompleted, 0, domain.AggregateTypeProcessingPass,
		domain.BatchCompletedPayload{
			Pass:      loop,
			Processed: stats.Processed,
			Created:   stats.Created,
			Attached:  stats.Attached,
			Deferred:  stats.Deferred,
			Failed:    stats.Errors,
		})

	logger.Info().
		Dur("elapsed", elapsed).
		Int("processed", stats.Processed).
		Int("created", stats.Created).
		Int("attached", stats.Attached).
		Int("deferred", stats.Deferred).
		Int("errors", stats.Errors).
		Msg("batch completed")
	return stats, err
}

// assignAll assigns each signature in order, isolating per-signature errors:
// a failure is wrapped in SignatureError, logged, counted and skipped.
func (e *Engine) assignAll(ctx context.Context, vaIDs []int64, allowMulti bool, stats *Stats) error {
	for _, vaID := range vaIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, err := e.Assign(ctx, vaID, allowMulti)
		if err != nil {
			sigErr := &domain.SignatureError{VirtualAuthorID: vaID, Cause: err}
			e.logger.Error().Err(sigErr).Int64("va_id", vaID).Msg("signature processing failed, skipping")
			stats.Errors++
			if e.metrics != nil {
				e.metrics.RecordSignatureError()
			}
			continue
		}
		stats.record(outcome)
	}
	return nil
}

// fullNameEntries filters updated signatures down to those whose normalized
// name carries at least one full given name. Signatures that fail to load are
// counted as errors and dropped.
func (e *Engine) fullNameEntries(ctx context.Context, vaIDs []int64, stats *Stats) []int64 {
	var fullNames []int64
	for _, vaID := range vaIDs {
		va, err := e.store.VirtualAuthor(ctx, vaID)
		if err != nil {
			sigErr := &domain.SignatureError{VirtualAuthorID: vaID, Cause: err}
			e.logger.Error().Err(sigErr).Int64("va_id", vaID).Msg("failed to load signature, skipping")
			stats.Errors++
			continue
		}
		if !e.parser.Normalize(va.Name).IsInitialsOnly() {
			fullNames = append(fullNames, vaID)
		}
	}
	return fullNames
}
