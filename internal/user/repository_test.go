package user_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/redmonkez12/my-finance/internal/database/dbtest"
	"github.com/redmonkez12/my-finance/internal/user"
)

func TestRepository_CreateAndFind(t *testing.T) {
	repo := user.NewRepository(dbtest.NewSQLite(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, "Alice", "  Alice@Example.COM ", "hash")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "alice@example.com", created.Email)
	assert.Equal(t, int64(0), created.Version)
	assert.False(t, created.HasPendingReset())

	found, err := repo.FindByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "Alice", found.Name)
	assert.Equal(t, "hash", found.PasswordHash)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Email, byID.Email)
}

func TestRepository_NotFound(t *testing.T) {
	repo := user.NewRepository(dbtest.NewSQLite(t))
	ctx := context.Background()

	_, err := repo.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, user.ErrNotFound)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestRepository_CreateDuplicateEmail(t *testing.T) {
	repo := user.NewRepository(dbtest.NewSQLite(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, "Alice", "alice@example.com", "hash")
	require.NoError(t, err)

	_, err = repo.Create(ctx, "Other", "ALICE@example.com", "hash2")
	assert.ErrorIs(t, err, user.ErrDuplicateEmail)
}

func TestRepository_ConcurrentCreateSameEmail(t *testing.T) {
	repo := user.NewRepository(dbtest.NewSQLite(t))
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(ctx, "Racer", "race@example.com", "hash")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, user.ErrDuplicateEmail):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, dupes)
}

func TestRepository_UpdateResetCodeLifecycle(t *testing.T) {
	repo := user.NewRepository(dbtest.NewSQLite(t))
	ctx := context.Background()

	u, err := repo.Create(ctx, "Alice", "alice@example.com", "hash")
	require.NoError(t, err)

	expires := time.Now().UTC().Add(30 * time.Minute).Truncate(time.Second)
	u.SetResetCode("codehash", expires)
	require.NoError(t, repo.Update(ctx, u))
	assert.Equal(t, int64(1), u.Version)

	stored, err := repo.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.True(t, stored.HasPendingReset())
	assert.Equal(t, "codehash", *stored.ResetCodeHash)
	assert.True(t, expires.Equal(*stored.ResetCodeExpiresAt))
	assert.Equal(t, int64(1), stored.Version)

	stored.PasswordHash = "newhash"
	stored.ClearResetCode()
	require.NoError(t, repo.Update(ctx, stored))

	final, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, final.HasPendingReset())
	assert.Equal(t, "newhash", final.PasswordHash)
	assert.Equal(t, int64(2), final.Version)
}

func TestRepository_UpdateStaleVersion(t *testing.T) {
	repo := user.NewRepository(dbtest.NewSQLite(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, "Alice", "alice@example.com", "hash")
	require.NoError(t, err)

	first, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)

	first.PasswordHash = "first"
	require.NoError(t, repo.Update(ctx, first))

	second.PasswordHash = "second"
	err = repo.Update(ctx, second)
	assert.ErrorIs(t, err, user.ErrConflict)

	stored, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", stored.PasswordHash)
}

func TestRepository_UpdateMissingUser(t *testing.T) {
	repo := user.NewRepository(dbtest.NewSQLite(t))

	err := repo.Update(context.Background(), &user.User{ID: uuid.New(), Name: "Ghost"})
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestRepository_DriverErrorsAreWrapped(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqlDB, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })

	repo := user.NewRepository(db)
	driverErr := errors.New("connection refused")

	mock.ExpectQuery(`SELECT`).WillReturnError(driverErr)
	_, err = repo.FindByEmail(context.Background(), "a@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, driverErr)
	assert.NotErrorIs(t, err, user.ErrNotFound)

	mock.ExpectQuery(`SELECT`).WillReturnError(driverErr)
	_, err = repo.GetByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, driverErr)

	require.NoError(t, mock.ExpectationsWereMet())
}
