package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/my-finance/internal/user"
)

// TokenService defines the interface for token creation and validation.
// Implementations include PasetoService (PASETO v4.local) and JWTService (HS256).
type TokenService interface {
	CreateToken(userID uuid.UUID, email string, duration time.Duration) (string, error)
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// UserStore is the credential store the service coordinates.
// user.Repository implements it.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	Create(ctx context.Context, name, email, passwordHash string) (*user.User, error)
	Update(ctx context.Context, u *user.User) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(encodedHash, password string) bool
}

// Notifier delivers password reset codes to the account owner.
type Notifier interface {
	SendPasswordResetCode(ctx context.Context, toEmail, code string) error
}

// RateLimiter guards the unauthenticated endpoints. ratelimit.Limiter and
// ratelimit.Disabled implement it.
type RateLimiter interface {
	Exceeded(ctx context.Context, purpose, key string) (bool, error)
	Record(ctx context.Context, purpose, key string) error
	OnCooldown(ctx context.Context, purpose, key string) (bool, error)
	StartCooldown(ctx context.Context, purpose, key string) error
}
