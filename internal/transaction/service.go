package transaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("transaction not found")
	ErrValidation = errors.New("invalid transaction")
)

const (
	maxDescriptionLength = 200
	maxCategoryLength    = 50
)

// Store is the persistence the service needs. Repository implements it.
type Store interface {
	Create(ctx context.Context, userID uuid.UUID, in Input) (*Transaction, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*Transaction, error)
	List(ctx context.Context, userID uuid.UUID, f Filter) ([]Transaction, error)
	Update(ctx context.Context, userID, id uuid.UUID, in Input) (*Transaction, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	Summary(ctx context.Context, userID uuid.UUID, f Filter) (*Summary, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, in Input) (*Transaction, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}
	return s.store.Create(ctx, userID, in)
}

func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*Transaction, error) {
	return s.store.Get(ctx, userID, id)
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, f Filter) ([]Transaction, error) {
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	return s.store.List(ctx, userID, f)
}

func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, in Input) (*Transaction, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}
	return s.store.Update(ctx, userID, id, in)
}

func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.Delete(ctx, userID, id)
}

func (s *Service) Summary(ctx context.Context, userID uuid.UUID, f Filter) (*Summary, error) {
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	return s.store.Summary(ctx, userID, f)
}

func normalizeInput(in Input) (Input, error) {
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)

	switch {
	case in.Description == "":
		return in, fmt.Errorf("%w: description is required", ErrValidation)
	case utf8.RuneCountInString(in.Description) > maxDescriptionLength:
		return in, fmt.Errorf("%w: description must be at most 200 characters", ErrValidation)
	case in.Category == "":
		return in, fmt.Errorf("%w: category is required", ErrValidation)
	case utf8.RuneCountInString(in.Category) > maxCategoryLength:
		return in, fmt.Errorf("%w: category must be at most 50 characters", ErrValidation)
	case !in.Type.Valid():
		return in, fmt.Errorf("%w: type must be income or expense", ErrValidation)
	case in.Amount <= 0:
		return in, fmt.Errorf("%w: amount must be positive", ErrValidation)
	case in.Date.IsZero():
		return in, fmt.Errorf("%w: date is required", ErrValidation)
	}

	return in, nil
}

func validateFilter(f Filter) error {
	if f.Type != "" && !f.Type.Valid() {
		return fmt.Errorf("%w: type must be income or expense", ErrValidation)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		return fmt.Errorf("%w: from must not be after to", ErrValidation)
	}
	return nil
}
