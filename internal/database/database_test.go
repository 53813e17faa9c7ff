package database_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/my-finance/internal/config"
	"github.com/redmonkez12/my-finance/internal/database"
	"github.com/redmonkez12/my-finance/internal/database/dbtest"
)

func TestMigrate_SQLite(t *testing.T) {
	db := dbtest.NewSQLite(t)
	ctx := context.Background()

	status, err := database.MigrationStatus(ctx, db, config.DriverSQLite)
	require.NoError(t, err)
	require.Len(t, status, 2)
	for _, s := range status {
		assert.Equal(t, goose.StateApplied, s.State, "migration %d", s.Source.Version)
	}

	// Running again is a no-op.
	require.NoError(t, database.Migrate(ctx, db, config.DriverSQLite))

	require.NoError(t, database.MigrateDown(ctx, db, config.DriverSQLite))
	status, err = database.MigrationStatus(ctx, db, config.DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, goose.StatePending, status[1].State)
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	db := dbtest.NewSQLite(t)
	ctx := context.Background()

	newUser := func(email string) *database.User {
		now := time.Now().UTC()
		return &database.User{
			ID:           uuid.New(),
			Name:         "A",
			Email:        email,
			PasswordHash: "h",
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	_, err := db.NewInsert().Model(newUser("a@x.com")).Exec(ctx)
	require.NoError(t, err)

	_, err = db.NewInsert().Model(newUser("a@x.com")).Exec(ctx)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err), "unique index must reject: %v", err)

	// Only normalized addresses are stored, so the plain index is case-insensitive.
	_, err = db.NewInsert().Model(newUser("A@X.com")).Exec(ctx)
	require.Error(t, err)
	assert.False(t, database.IsUniqueViolation(err))
}

func TestUsersEmailIndexIsOnPlainColumn(t *testing.T) {
	db := dbtest.NewSQLite(t)

	var columns []string
	rows, err := db.QueryContext(context.Background(), "SELECT name FROM pragma_index_info('users_email_key')")
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var name *string
		require.NoError(t, rows.Scan(&name))
		require.NotNil(t, name, "index must not be on an expression")
		columns = append(columns, *name)
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, []string{"email"}, columns)
}

func TestIsUniqueViolation_Postgres(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
		{name: "lib/pq unique", err: &pq.Error{Code: "23505"}, want: true},
		{name: "lib/pq other", err: &pq.Error{Code: "23503"}, want: false},
		{name: "pgx unique wrapped", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), want: true},
		{name: "pgx other", err: &pgconn.PgError{Code: "40001"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, database.IsUniqueViolation(tt.err))
		})
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := database.Open(context.Background(), config.DatabaseConfig{Driver: "oracle", URL: "x"})
	require.Error(t, err)
}
