// Package main provides the entry point for the author disambiguation API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/helixir/author-disambiguation-service/internal/cluster"
	"github.com/helixir/author-disambiguation-service/internal/config"
	"github.com/helixir/author-disambiguation-service/internal/database"
	"github.com/helixir/author-disambiguation-service/internal/events"
	"github.com/helixir/author-disambiguation-service/internal/harvest"
	"github.com/helixir/author-disambiguation-service/internal/names"
	"github.com/helixir/author-disambiguation-service/internal/observability"
	"github.com/helixir/author-disambiguation-service/internal/repository"
	httpserver "github.com/helixir/author-disambiguation-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
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
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("author-disambiguation-service server starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	sigStore := repository.NewPgSignatureStore(db)

	// Name normalization and comparison stack.
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

	// Event publisher for assignment events.
	var publisher events.Publisher = events.NewNopPublisher()
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(events.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}, metrics, logger)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka publisher enabled")
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close event publisher")
		}
	}()

	// Comparison module registry.
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

	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	if cfg.Metrics.Enabled {
		httpCfg.MetricsPath = cfg.Metrics.Path
	}
	if cfg.RateLimit.Enabled {
		httpCfg.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		httpCfg.Burst = cfg.RateLimit.Burst
	}

	httpSrv := httpserver.NewServer(httpCfg, sigStore, engine, comparator, parser, db, metrics, logger)

	// Channel to collect server errors.
	errCh := make(chan error, 1)

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().
		Str("http_address", httpCfg.Address).
		Msg("author-disambiguation-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down author-disambiguation-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("author-disambiguation-service shutdown complete")
	return nil
}
