package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/my-finance/internal/database"
)

// Repository handles transaction persistence. Every query is scoped to the
// owning user.
type Repository struct {
	db bun.IDB
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, userID uuid.UUID, in Input) (*Transaction, error) {
	now := time.Now().UTC()
	row := &database.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Description: in.Description,
		AmountCents: int64(in.Amount),
		Category:    in.Category,
		Type:        string(in.Type),
		OccurredOn:  in.Date.Time,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	return mapDBTransactionToModel(row), nil
}

func (r *Repository) Get(ctx context.Context, userID, id uuid.UUID) (*Transaction, error) {
	row := new(database.Transaction)
	err := r.db.NewSelect().
		Model(row).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return mapDBTransactionToModel(row), nil
}

// List returns the user's transactions, newest first.
func (r *Repository) List(ctx context.Context, userID uuid.UUID, f Filter) ([]Transaction, error) {
	var rows []database.Transaction
	err := applyFilter(r.db.NewSelect().Model(&rows), userID, f).
		Order("occurred_on DESC", "created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	out := make([]Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, *mapDBTransactionToModel(&rows[i]))
	}
	return out, nil
}

func (r *Repository) Update(ctx context.Context, userID, id uuid.UUID, in Input) (*Transaction, error) {
	now := time.Now().UTC()

	result, err := r.db.NewUpdate().
		Model((*database.Transaction)(nil)).
		Set("description = ?", in.Description).
		Set("amount_cents = ?", int64(in.Amount)).
		Set("category = ?", in.Category).
		Set("type = ?", string(in.Type)).
		Set("occurred_on = ?", in.Date.Time).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	if err := expectOneRow(result); err != nil {
		return nil, err
	}

	return r.Get(ctx, userID, id)
}

func (r *Repository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result, err := r.db.NewDelete().
		Model((*database.Transaction)(nil)).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	return expectOneRow(result)
}

type categoryTotal struct {
	Type     string `bun:"type"`
	Category string `bun:"category"`
	Total    int64  `bun:"total"`
}

// Summary totals the matching transactions per type and category.
func (r *Repository) Summary(ctx context.Context, userID uuid.UUID, f Filter) (*Summary, error) {
	var totals []categoryTotal
	err := applyFilter(r.db.NewSelect().Model((*database.Transaction)(nil)), userID, f).
		Column("type", "category").
		ColumnExpr("CAST(SUM(amount_cents) AS BIGINT) AS total").
		Group("type", "category").
		Order("type", "category").
		Scan(ctx, &totals)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize transactions: %w", err)
	}

	summary := &Summary{ByCategory: make([]CategorySummary, 0, len(totals))}
	for _, t := range totals {
		switch Type(t.Type) {
		case TypeIncome:
			summary.Income += Money(t.Total)
		case TypeExpense:
			summary.Expense += Money(t.Total)
		}
		summary.ByCategory = append(summary.ByCategory, CategorySummary{
			Category: t.Category,
			Type:     Type(t.Type),
			Total:    Money(t.Total),
		})
	}
	summary.Balance = summary.Income - summary.Expense

	return summary, nil
}

func applyFilter(q *bun.SelectQuery, userID uuid.UUID, f Filter) *bun.SelectQuery {
	q = q.Where("user_id = ?", userID)
	if f.Type != "" {
		q = q.Where("type = ?", string(f.Type))
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if !f.From.IsZero() {
		q = q.Where("occurred_on >= ?", f.From.Time)
	}
	if !f.To.IsZero() {
		q = q.Where("occurred_on <= ?", f.To.Time)
	}
	return q
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func mapDBTransactionToModel(row *database.Transaction) *Transaction {
	return &Transaction{
		ID:          row.ID,
		UserID:      row.UserID,
		Description: row.Description,
		Amount:      Money(row.AmountCents),
		Category:    row.Category,
		Type:        Type(row.Type),
		Date:        Date{row.OccurredOn.UTC()},
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}
