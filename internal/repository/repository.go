// Package repository provides the PostgreSQL implementation of the signature
// store used by the cluster assignment engine.
//
// # Overview
//
// The package implements store.SignatureStore on top of pgx, persisting
// virtual author signatures, real author clusters, the denormalized
// per-cluster aggregate index and the candidate compatibility cache.
//
// # Thread Safety
//
// The implementation is safe for concurrent use by multiple goroutines.
// The underlying pgxpool handles connection pooling and synchronization.
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package.
// Database errors are wrapped with context using fmt.Errorf with the %w verb.
// Common errors include:
//
//   - domain.ErrNotFound: Resource does not exist
//   - domain.ErrInvalidInput: Invalid parameters provided
//
// # Transactions
//
// Use the DBTX interface to support both pool and transaction contexts.
// Pass a transaction from database.DB.WithTransaction for atomic operations.
//
// # Usage Pattern
//
// The store is typically created at application startup and passed to the
// engine:
//
//	db, _ := database.New(ctx, cfg, logger)
//	sigStore := repository.NewPgSignatureStore(db)
package repository

import (
	"github.com/helixir/author-disambiguation-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
// This allows the store to work with both direct pool connections and
// transactions:
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    txStore := repository.NewPgSignatureStore(tx)
//	    return txStore.AttachVA(ctx, raID, vaID, probability)
//	})
type DBTX = database.DBTX
