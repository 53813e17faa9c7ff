package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/lib/pq"              // registers "postgres"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite" // registers "sqlite"

	"github.com/redmonkez12/my-finance/internal/config"
)

var sqlitePragmas = []string{
	"PRAGMA foreign_keys = ON;",
	"PRAGMA busy_timeout = 5000;",
}

// Open connects to the configured database and returns a Bun DB with the
// matching dialect. The connection is verified before returning.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*bun.DB, error) {
	sqlDB, err := sql.Open(cfg.Driver, cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	switch cfg.Driver {
	case config.DriverSQLite:
		// One writer; also keeps a ":memory:" database alive between queries.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)

		for _, pragma := range sqlitePragmas {
			if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
				sqlDB.Close()
				return nil, fmt.Errorf("failed to set pragma: %w", err)
			}
		}

		return bun.NewDB(sqlDB, sqlitedialect.New()), nil

	case config.DriverPostgres, config.DriverPgx:
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)

		return bun.NewDB(sqlDB, pgdialect.New()), nil

	default:
		sqlDB.Close()
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}
