// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bookcatalog/internal/infrastructure/database"
)

// EnvDatabaseURL names the variable that enables PostgreSQL integration tests.
const EnvDatabaseURL = "CATALOG_TEST_DATABASE_URL"

// testLockKey serialises integration tests of different packages, which
// `go test ./...` runs as parallel processes against the same database.
const testLockKey int64 = 0x626f6f6b74657374

// NewTestDB connects to CATALOG_TEST_DATABASE_URL, applies the schema and
// empties every catalog table. Skips the test when the variable is unset.
func NewTestDB(t *testing.T) *database.PostgresDB {
	t.Helper()

	url := os.Getenv(EnvDatabaseURL)
	if url == "" {
		t.Skipf("%s not set", EnvDatabaseURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.NewPostgresDB(&database.DBConfig{
		URL:            url,
		MaxConns:       6,
		MaxRetries:     1,
		ConnectTimeout: 10 * time.Second,
	})
	require.NoError(t, db.Connect(ctx))

	lockConn, err := db.Pool.Acquire(ctx)
	require.NoError(t, err)
	_, err = lockConn.Exec(context.Background(), `SELECT pg_advisory_lock($1)`, testLockKey)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = lockConn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, testLockKey)
		lockConn.Release()
		_ = db.Close()
	})

	_, err = db.ApplySchema(ctx)
	require.NoError(t, err)

	_, err = db.Pool.Exec(ctx,
		`TRUNCATE books, publishers, genres, languages, formats RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return db
}
