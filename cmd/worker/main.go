// Package main provides the batch worker that runs the orphan and update
// processing loops of the author disambiguation service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/author-disambiguation-service/internal/cluster"
	"github.com/helixir/author-disambiguation-service/internal/config"
	"github.com/helixir/author-disambiguation-service/internal/database"
	"github.com/helixir/author-disambiguation-service/internal/events"
	"github.com/helixir/author-disambiguation-service/internal/harvest"
	"github.com/helixir/author-disambiguation-service/internal/names"
	"github.com/helixir/author-disambiguation-service/internal/observability"
	"github.com/helixir/author-disambiguation-service/internal/repository"
)

// batchLockKey is the advisory lock guarding batch runs. The engine mutates
// cluster membership and the compatibility cache non-atomically, so only one
// worker may process batches at a time.
const batchLockKey int64 = 0x61757468

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	loop := flag.String("loop", "both", "Which loop to run: orphans, updates, or both")
	interval := flag.Duration("interval", 0, "Re-run the loops on this interval; 0 runs once and exits")
	flag.Parse()

	switch *loop {
	case "orphans", "updates", "both":
	default:
		return fmt.Errorf("invalid -loop value %q: want orphans, updates, or both", *loop)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Str("loop", *loop).Dur("interval", *interval).Msg("author-disambiguation-service worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	// Only one worker may run batches at a time.
	acquired, err := db.AcquireAdvisoryLock(ctx, batchLockKey)
	if err != nil {
		return fmt.Errorf("acquire batch lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("another worker already holds the batch lock")
	}
	defer func() {
		if releaseErr := db.ReleaseAdvisoryLock(context.Background(), batchLockKey); releaseErr != nil {
			logger.Error().Err(releaseErr).Msg("failed to release batch lock")
		}
	}()

	sigStore := repository.NewPgSignatureStore(db)

	parser := names.NewParser(cfg.Matching.SurnameSeparators, cfg.Matching.TokenSeparators)
	lexicon, err := names.LoadLexicon(cfg.Matching.BoysNamesPath, cfg.Matching.GirlsNamesPath, cfg.Matching.SynonymsPath)
	if err != nil {
		return fmt.Errorf("load name lexicon: %w", err)
	}
	comparator := names.NewComparator(parser, lexicon)

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	var publisher events.Publisher = events.NewNopPublisher()
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(events.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}, metrics, logger)
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close event publisher")
		}
	}()

	registry := harvest.NewRegistry(logger)
	registry.Register(harvest.NewNameModule(comparator, parser, sigStore, cfg.Matching.InitialsPenalty))
	registry.Register(harvest.NewCoauthorModule())
	registry.Register(harvest.NewAffiliationModule())

	engine, err := cluster.NewEngine(sigStore, registry, publisher, metrics, logger, cluster.EngineConfig{
		AddingThreshold:  cfg.Matching.AddingThreshold,
		MultiAssignment:  cfg.Matching.MultiAssignment,
		OrphanIterations: cfg.Matching.OrphanIterations,
	})
	if err != nil {
		return fmt.Errorf("create cluster engine: %w", err)
	}

	for {
		if err := runLoops(ctx, engine, *loop, logger); err != nil {
			return err
		}

		if *interval <= 0 {
			logger.Info().Msg("worker run complete")
			return nil
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("received shutdown signal")
			return nil
		case <-time.After(*interval):
		}
	}
}

// runLoops executes the requested processing loops once. The update loop runs
// first so that changed signatures are re-evaluated before new orphans are
// clustered against them.
func runLoops(ctx context.Context, engine *cluster.Engine, loop string, logger zerolog.Logger) error {
	if loop == "updates" || loop == "both" {
		stats, err := engine.ProcessUpdates(ctx)
		if err != nil {
			return fmt.Errorf("process updates: %w", err)
		}
		logStats(logger, "updates", stats)
	}

	if loop == "orphans" || loop == "both" {
		stats, err := engine.ProcessOrphans(ctx)
		if err != nil {
			return fmt.Errorf("process orphans: %w", err)
		}
		logStats(logger, "orphans", stats)
	}

	return nil
}

func logStats(logger zerolog.Logger, loop string, stats cluster.Stats) {
	logger.Info().
		Str("loop", loop).
		Int("processed", stats.Processed).
		Int("created", stats.Created).
		Int("attached", stats.Attached).
		Int("deferred", stats.Deferred).
		Int("skipped", stats.Skipped).
		Int("errors", stats.Errors).
		Msg("batch loop finished")
}
