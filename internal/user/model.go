package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose password hash in JSON
	// ResetCodeHash is the SHA-256 of the pending reset code, nil when no
	// reset is pending. Always set together with ResetCodeExpiresAt.
	ResetCodeHash      *string    `json:"-"`
	ResetCodeExpiresAt *time.Time `json:"-"`
	Version            int64      `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// HasPendingReset reports whether a reset code is stored for the user.
func (u *User) HasPendingReset() bool {
	return u.ResetCodeHash != nil && u.ResetCodeExpiresAt != nil
}

// SetResetCode records a pending reset code hash valid until expiresAt.
func (u *User) SetResetCode(codeHash string, expiresAt time.Time) {
	u.ResetCodeHash = &codeHash
	u.ResetCodeExpiresAt = &expiresAt
}

// ClearResetCode drops any pending reset code.
func (u *User) ClearResetCode() {
	u.ResetCodeHash = nil
	u.ResetCodeExpiresAt = nil
}
