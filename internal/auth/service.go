package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/my-finance/internal/logging"
	"github.com/redmonkez12/my-finance/internal/user"
)

// maxResetWriteAttempts bounds how often a reset code write is retried when
// a concurrent request bumped the user's version in between.
const maxResetWriteAttempts = 3

// AuthToken is returned by a successful login
type AuthToken struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

// Service handles authentication business logic
type Service struct {
	users               UserStore
	hasher              PasswordHasher
	tokens              TokenService
	notifier            Notifier
	logger              *logging.Logger
	accessTokenDuration time.Duration
	resetCodeTTL        time.Duration
	now                 func() time.Time

	dummyHashOnce sync.Once
	dummyHash     string
}

func NewService(
	users UserStore,
	hasher PasswordHasher,
	tokens TokenService,
	notifier Notifier,
	logger *logging.Logger,
	accessTokenDuration time.Duration,
	resetCodeTTL time.Duration,
) *Service {
	return &Service{
		users:               users,
		hasher:              hasher,
		tokens:              tokens,
		notifier:            notifier,
		logger:              logger,
		accessTokenDuration: accessTokenDuration,
		resetCodeTTL:        resetCodeTTL,
		now:                 time.Now,
	}
}

// Register creates a new user account
func (s *Service) Register(ctx context.Context, name, email, password string) (*user.User, error) {
	name = strings.TrimSpace(name)
	email = user.NormalizeEmail(email)

	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword("password", password); err != nil {
		return nil, err
	}

	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("%w: failed to look up email: %w", ErrStoreUnavailable, err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// A concurrent registration may still win between the lookup and the
	// insert; the store's unique index settles it.
	newUser, err := s.users.Create(ctx, name, email, passwordHash)
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("%w: failed to create user: %w", ErrStoreUnavailable, err)
	}

	return newUser, nil
}

// Login authenticates a user and returns an access token
func (s *Service) Login(ctx context.Context, email, password string) (*AuthToken, error) {
	email = user.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	existingUser, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// Spend the same time as a real comparison.
			s.hasher.Verify(s.getDummyHash(), password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: failed to get user: %w", ErrStoreUnavailable, err)
	}

	if !s.hasher.Verify(existingUser.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.CreateToken(existingUser.ID, existingUser.Email, s.accessTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	return &AuthToken{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(s.accessTokenDuration.Seconds()),
	}, nil
}

// RequestPasswordReset stores a fresh reset code for the account and sends
// it to the account's email. Unknown emails succeed silently so the
// response does not reveal which addresses are registered.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = user.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	var (
		existingUser *user.User
		code         string
	)

	for attempt := 1; ; attempt++ {
		var err error
		existingUser, err = s.users.FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				s.logger.Debug("password reset requested for unknown email")
				return nil
			}
			return fmt.Errorf("%w: failed to get user: %w", ErrStoreUnavailable, err)
		}

		code, err = generateResetCode()
		if err != nil {
			return err
		}

		existingUser.SetResetCode(hashToken(code), s.now().Add(s.resetCodeTTL))

		err = s.users.Update(ctx, existingUser)
		if err == nil {
			break
		}
		if errors.Is(err, user.ErrConflict) && attempt < maxResetWriteAttempts {
			continue
		}
		if errors.Is(err, user.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: failed to store reset code: %w", ErrStoreUnavailable, err)
	}

	ctx = logging.WithLogger(ctx, logging.GetLoggerFromContext(ctx).WithFields(map[string]any{
		"user_id": existingUser.ID.String(),
	}))

	// The stored code is kept when delivery fails. Requesting again
	// overwrites it with a new one.
	if err := s.notifier.SendPasswordResetCode(ctx, existingUser.Email, code); err != nil {
		s.logger.Warn("failed to send password reset code", "user_id", existingUser.ID, "error", err.Error())
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}

	return nil
}

// ConfirmPasswordReset replaces the password of the account when code
// matches its pending, unexpired reset code. The code is single use.
func (s *Service) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	if err := validatePassword("new_password", newPassword); err != nil {
		return err
	}

	email = user.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return ErrInvalidReset
	}

	existingUser, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrInvalidReset
		}
		return fmt.Errorf("%w: failed to get user: %w", ErrStoreUnavailable, err)
	}

	if !existingUser.HasPendingReset() {
		return ErrInvalidReset
	}
	if !s.now().Before(*existingUser.ResetCodeExpiresAt) {
		return ErrInvalidReset
	}
	if !resetCodeMatches(*existingUser.ResetCodeHash, code) {
		return ErrInvalidReset
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	existingUser.PasswordHash = passwordHash
	existingUser.ClearResetCode()

	if err := s.users.Update(ctx, existingUser); err != nil {
		// Someone else consumed or replaced the code since we read it.
		if errors.Is(err, user.ErrConflict) || errors.Is(err, user.ErrNotFound) {
			return ErrInvalidReset
		}
		return fmt.Errorf("%w: failed to update password: %w", ErrStoreUnavailable, err)
	}

	return nil
}

// CurrentUser returns the account a validated token belongs to.
func (s *Service) CurrentUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("%w: failed to get user: %w", ErrStoreUnavailable, err)
	}

	return u, nil
}

func (s *Service) getDummyHash() string {
	s.dummyHashOnce.Do(func() {
		hash, err := s.hasher.Hash("not-a-real-password")
		if err != nil {
			s.logger.Error("failed to prepare dummy password hash", "error", err.Error())
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
