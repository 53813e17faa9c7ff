// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/my-finance/internal/config"
	"github.com/redmonkez12/my-finance/internal/database"
)

// NewSQLite returns a fresh, fully migrated in-memory database that is
// closed when the test ends.
func NewSQLite(t testing.TB) *bun.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Driver: config.DriverSQLite,
		URL:    ":memory:",
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(ctx, db, config.DriverSQLite); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}

	return db
}
