package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the users table row.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                 uuid.UUID  `bun:"id,pk"`
	Name               string     `bun:"name,notnull"`
	Email              string     `bun:"email,notnull"`
	PasswordHash       string     `bun:"password_hash,notnull"`
	ResetCodeHash      *string    `bun:"reset_code_hash"`
	ResetCodeExpiresAt *time.Time `bun:"reset_code_expires_at"`
	Version            int64      `bun:"version,notnull"`
	CreatedAt          time.Time  `bun:"created_at,notnull"`
	UpdatedAt          time.Time  `bun:"updated_at,notnull"`
}

// Transaction is the transactions table row. Amounts are stored in cents.
type Transaction struct {
	bun.BaseModel `bun:"table:transactions,alias:t"`

	ID          uuid.UUID `bun:"id,pk"`
	UserID      uuid.UUID `bun:"user_id,notnull"`
	Description string    `bun:"description,notnull"`
	AmountCents int64     `bun:"amount_cents,notnull"`
	Category    string    `bun:"category,notnull"`
	Type        string    `bun:"type,notnull"`
	OccurredOn  time.Time `bun:"occurred_on,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}
