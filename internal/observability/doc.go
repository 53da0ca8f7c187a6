// Package observability provides logging and metrics support for the author
// disambiguation service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for comparisons, assignments, cache and batch loops
//   - Context helpers for propagating correlation identifiers
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Int64("va_id", vaID).Msg("signature assigned")
//
// Add signature context to a logger:
//
//	logger = observability.WithSignatureContext(logger, vaID, bucketKey)
//
// # Metrics
//
// Initialize and record metrics:
//
//	metrics := observability.NewMetrics("authorid")
//	metrics.RecordAssignment("created", elapsed.Seconds())
//	metrics.RecordCacheHit()
//
// # Context Helpers
//
// Store and retrieve correlation identifiers:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	reqID := observability.RequestIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - va_id: Virtual author (signature) identifier
//   - ra_id: Real author (cluster) identifier
//   - bucket: Last-name bucket key
//   - batch_id: Batch run identifier
//   - module: Comparison module name
//   - request_id: API request identifier
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
