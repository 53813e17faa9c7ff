package transaction_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/my-finance/internal/database/dbtest"
	"github.com/redmonkez12/my-finance/internal/transaction"
	"github.com/redmonkez12/my-finance/internal/user"
)

type fixture struct {
	repo  *transaction.Repository
	alice uuid.UUID
	bob   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := dbtest.NewSQLite(t)
	users := user.NewRepository(db)
	ctx := context.Background()

	alice, err := users.Create(ctx, "Alice", "alice@example.com", "hash")
	require.NoError(t, err)
	bob, err := users.Create(ctx, "Bob", "bob@example.com", "hash")
	require.NoError(t, err)

	return &fixture{repo: transaction.NewRepository(db), alice: alice.ID, bob: bob.ID}
}

func input(desc string, amount transaction.Money, category string, typ transaction.Type, day int) transaction.Input {
	return transaction.Input{
		Description: desc,
		Amount:      amount,
		Category:    category,
		Type:        typ,
		Date:        transaction.NewDate(2026, time.March, day),
	}
}

func TestRepository_CRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.repo.Create(ctx, f.alice, input("Salary", 250000, "work", transaction.TypeIncome, 1))
	require.NoError(t, err)

	got, err := f.repo.Get(ctx, f.alice, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Salary", got.Description)
	assert.Equal(t, transaction.Money(250000), got.Amount)
	assert.Equal(t, "2026-03-01", got.Date.String())

	updated, err := f.repo.Update(ctx, f.alice, created.ID, input("Salary March", 260000, "work", transaction.TypeIncome, 2))
	require.NoError(t, err)
	assert.Equal(t, "Salary March", updated.Description)
	assert.Equal(t, "2026-03-02", updated.Date.String())

	require.NoError(t, f.repo.Delete(ctx, f.alice, created.ID))
	_, err = f.repo.Get(ctx, f.alice, created.ID)
	assert.ErrorIs(t, err, transaction.ErrNotFound)
	assert.ErrorIs(t, f.repo.Delete(ctx, f.alice, created.ID), transaction.ErrNotFound)
}

func TestRepository_ScopedToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.repo.Create(ctx, f.alice, input("Rent", 90000, "housing", transaction.TypeExpense, 3))
	require.NoError(t, err)

	_, err = f.repo.Get(ctx, f.bob, created.ID)
	assert.ErrorIs(t, err, transaction.ErrNotFound)

	_, err = f.repo.Update(ctx, f.bob, created.ID, input("Hijack", 1, "x", transaction.TypeExpense, 3))
	assert.ErrorIs(t, err, transaction.ErrNotFound)

	assert.ErrorIs(t, f.repo.Delete(ctx, f.bob, created.ID), transaction.ErrNotFound)

	list, err := f.repo.List(ctx, f.bob, transaction.Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	still, err := f.repo.Get(ctx, f.alice, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rent", still.Description)
}

func TestRepository_ListAndSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range []transaction.Input{
		input("Salary", 300000, "work", transaction.TypeIncome, 1),
		input("Groceries", 4550, "food", transaction.TypeExpense, 5),
		input("Restaurant", 2500, "food", transaction.TypeExpense, 10),
		input("Rent", 120000, "housing", transaction.TypeExpense, 2),
	} {
		_, err := f.repo.Create(ctx, f.alice, in)
		require.NoError(t, err)
	}
	_, err := f.repo.Create(ctx, f.bob, input("Other", 999, "food", transaction.TypeExpense, 5))
	require.NoError(t, err)

	list, err := f.repo.List(ctx, f.alice, transaction.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, "Restaurant", list[0].Description, "newest first")
	assert.Equal(t, "Salary", list[3].Description)

	food, err := f.repo.List(ctx, f.alice, transaction.Filter{Category: "food"})
	require.NoError(t, err)
	assert.Len(t, food, 2)

	ranged, err := f.repo.List(ctx, f.alice, transaction.Filter{
		From: transaction.NewDate(2026, time.March, 2),
		To:   transaction.NewDate(2026, time.March, 5),
	})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	summary, err := f.repo.Summary(ctx, f.alice, transaction.Filter{})
	require.NoError(t, err)
	assert.Equal(t, transaction.Money(300000), summary.Income)
	assert.Equal(t, transaction.Money(127050), summary.Expense)
	assert.Equal(t, transaction.Money(172950), summary.Balance)
	assert.Contains(t, summary.ByCategory, transaction.CategorySummary{Category: "food", Type: transaction.TypeExpense, Total: 7050})
	assert.Len(t, summary.ByCategory, 3)

	expenses, err := f.repo.Summary(ctx, f.alice, transaction.Filter{Type: transaction.TypeExpense})
	require.NoError(t, err)
	assert.Zero(t, expenses.Income)
	assert.Equal(t, transaction.Money(-127050), expenses.Balance)
}
