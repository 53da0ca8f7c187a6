// Package database provides database connectivity and management for the author disambiguation service.
package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsTable(t *testing.T) {
	// The version table is namespaced so the service can share a database
	// with other schemas.
	assert.Equal(t, "authorid_schema_migrations", MigrationsTable)
}

// TestNewMigrator_Validation tests the input validation for NewMigrator.
func TestNewMigrator_Validation(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("fails with nil database", func(t *testing.T) {
		migrator, err := NewMigrator(nil, "/some/path", logger)
		assert.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "database is required")
	})

	t.Run("fails with nil pool", func(t *testing.T) {
		db := &DB{pool: nil}
		migrator, err := NewMigrator(db, "/some/path", logger)
		assert.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "database pool not initialized")
	})

	t.Run("fails with empty migrations path", func(t *testing.T) {
		db := setupTestDB(t)
		if db == nil {
			t.Skip("Skipping: cannot connect to database")
		}
		defer db.Close()

		migrator, err := NewMigrator(db, "", logger)
		assert.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "migrations path is required")
	})

	t.Run("fails with invalid migrations path", func(t *testing.T) {
		if testing.Short() {
			t.Skip("Skipping integration test in short mode")
		}

		db := setupTestDB(t)
		if db == nil {
			t.Skip("Skipping: cannot connect to database")
		}
		defer db.Close()

		migrator, err := NewMigrator(db, "/nonexistent/path", logger)
		assert.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "migrations path validation failed")
	})
}

// TestMigrator_Lifecycle exercises the migrator against a live database when
// one is reachable: create, apply the signature schema, read the version,
// confirm stepping past the newest migration is a no-op, and close.
func TestMigrator_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := setupTestDB(t)
	if db == nil {
		t.Skip("Skipping: cannot connect to database")
	}
	defer db.Close()

	logger := zerolog.Nop()
	migrationsPath := signatureMigrationsPath(t)

	migrator, err := NewMigrator(db, migrationsPath, logger)
	require.NoError(t, err)
	require.NotNil(t, migrator)

	t.Run("up applies or confirms the signature schema", func(t *testing.T) {
		// Fresh database: applies everything. Existing database: no change.
		err := migrator.Up()
		assert.NoError(t, err)
	})

	t.Run("version reflects the applied schema", func(t *testing.T) {
		version, dirty, err := migrator.Version()
		require.NoError(t, err)
		assert.False(t, dirty, "schema should not be in a dirty state")
		assert.GreaterOrEqual(t, version, uint(1))
	})

	t.Run("stepping past the newest migration is a no-op", func(t *testing.T) {
		assert.NoError(t, migrator.Steps(1))
	})

	t.Run("force pins the current version", func(t *testing.T) {
		currentVersion, _, err := migrator.Version()
		require.NoError(t, err)
		assert.NoError(t, migrator.Force(int(currentVersion)))
	})

	t.Run("close releases resources", func(t *testing.T) {
		assert.NoError(t, migrator.Close())
	})
}

// signatureMigrationsPath returns the path to the repository's migrations
// directory, relative to this package.
func signatureMigrationsPath(t *testing.T) string {
	t.Helper()

	cwd, err := os.Getwd()
	require.NoError(t, err)

	migrationsPath := filepath.Join(cwd, "..", "..", "migrations")
	if _, err := os.Stat(migrationsPath); os.IsNotExist(err) {
		t.Skipf("Skipping test: migrations directory not found at %s", migrationsPath)
	}

	return migrationsPath
}
