package auth

import (
	"errors"
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/redmonkez12/my-finance/internal/httputil"
	"github.com/redmonkez12/my-finance/internal/logging"
	"github.com/redmonkez12/my-finance/internal/ratelimit"
	"github.com/redmonkez12/my-finance/internal/user"
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service     *Service
	rateLimiter RateLimiter
	logger      *logging.Logger
}

func NewHandler(service *Service, rateLimiter RateLimiter, logger *logging.Logger) *Handler {
	return &Handler{
		service:     service,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ResetCodeRequest asks for a reset code to be emailed
type ResetCodeRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest represents the password reset confirmation
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// UserResponse is the public identity of an account
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

func newUserResponse(u *user.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create a new account with name, email and password.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration data"
// @Success      201 {object} UserResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error or email already registered"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      503 {object} httputil.ErrorResponse "Store unavailable"
// @Router       /register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allow(w, r, logger, ratelimit.PurposeRegister, getClientIP(r)) {
		return
	}

	var req RegisterRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	newUser, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondServiceError(w, logger, "registration failed", err)
		return
	}

	logger.Info("user registered successfully", "user_id", newUser.ID)

	httputil.RespondJSON(w, newUserResponse(newUser), http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate with email and password and receive a bearer token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} AuthToken
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      503 {object} httputil.ErrorResponse "Store unavailable"
// @Router       /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allow(w, r, logger, ratelimit.PurposeLogin, getClientIP(r)) {
		return
	}

	var req LoginRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, logger, "login failed", err)
		return
	}

	logger.Info("user logged in successfully")

	httputil.RespondJSON(w, token, http.StatusOK)
}

// RequestResetCode handles password reset code requests
// @Summary      Request password reset code
// @Description  Email a 6 digit reset code. Succeeds for unknown emails too so registered addresses cannot be enumerated.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResetCodeRequest true "Email address"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body or email"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      503 {object} httputil.ErrorResponse "Code could not be delivered"
// @Router       /forgot-password/code [post]
func (h *Handler) RequestResetCode(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allow(w, r, logger, ratelimit.PurposeResetRequest, getClientIP(r)) {
		return
	}

	var req ResetCodeRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid reset code request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	email := user.NormalizeEmail(req.Email)

	onCooldown, err := h.rateLimiter.OnCooldown(r.Context(), ratelimit.PurposeResetRequest, email)
	if err != nil {
		logger.Error("failed to check email cooldown", "error", err.Error())
	} else if onCooldown {
		logger.Warn("reset code requested during cooldown")
		httputil.RespondErrorWithCode(w, "please wait before requesting another code", httputil.CodeCooldownActive, http.StatusTooManyRequests)
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), email); err != nil {
		respondServiceError(w, logger, "password reset request failed", err)
		return
	}

	if err := h.rateLimiter.StartCooldown(r.Context(), ratelimit.PurposeResetRequest, email); err != nil {
		logger.Error("failed to set email cooldown", "error", err.Error())
	}

	httputil.RespondMessage(w, "If an account exists with that email, a reset code has been sent.", http.StatusOK)
}

// ResetPassword handles password reset with an emailed code
// @Summary      Reset password
// @Description  Set a new password using the emailed reset code. The code can be used once.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "Email, reset code and new password"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid code or validation error"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      503 {object} httputil.ErrorResponse "Store unavailable"
// @Router       /forgot-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if !h.allow(w, r, logger, ratelimit.PurposeResetConfirm, getClientIP(r)) {
		return
	}

	var req ResetPasswordRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid reset password request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	// Attempts are also counted per account so the code space cannot be
	// walked from many addresses.
	if !h.allow(w, r, logger, ratelimit.PurposeResetConfirm, user.NormalizeEmail(req.Email)) {
		return
	}

	if err := h.service.ConfirmPasswordReset(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		respondServiceError(w, logger, "password reset failed", err)
		return
	}

	logger.Info("password reset successfully")

	httputil.RespondMessage(w, "Password reset successfully. You can now login with your new password.", http.StatusOK)
}

// Me returns the authenticated user
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} UserResponse
// @Failure      401 {object} httputil.ErrorResponse "Missing or invalid token"
// @Router       /me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	u, err := h.service.CurrentUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, logger, "failed to load current user", err)
		return
	}

	httputil.RespondJSON(w, newUserResponse(u), http.StatusOK)
}

// allow applies the fixed-window limit for purpose and key. Limiter errors
// are logged and the request goes through.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, logger *logging.Logger, purpose, key string) bool {
	exceeded, err := h.rateLimiter.Exceeded(r.Context(), purpose, key)
	if err != nil {
		logger.Error("failed to check rate limit", "purpose", purpose, "error", err.Error())
	} else if exceeded {
		logger.Warn("rate limit exceeded", "purpose", purpose)
		httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return false
	}

	if err := h.rateLimiter.Record(r.Context(), purpose, key); err != nil {
		logger.Error("failed to record request", "purpose", purpose, "error", err.Error())
	}

	return true
}

// respondServiceError maps service errors to status codes. Internal error
// text is logged and never sent to the client.
func respondServiceError(w http.ResponseWriter, logger *logging.Logger, msg string, err error) {
	var validationErr *ValidationError

	switch {
	case errors.As(err, &validationErr):
		logger.Warn(msg+": validation error", "field", validationErr.Field)
		httputil.RespondErrorWithCode(w, validationErr.Error(), httputil.CodeValidationError, http.StatusBadRequest)
	case errors.Is(err, ErrEmailTaken):
		logger.Warn(msg + ": email already registered")
		httputil.RespondErrorWithCode(w, "email is already registered", httputil.CodeEmailTaken, http.StatusBadRequest)
	case errors.Is(err, ErrInvalidCredentials):
		logger.Warn(msg + ": invalid credentials")
		httputil.RespondErrorWithCode(w, "invalid email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
	case errors.Is(err, ErrInvalidReset):
		logger.Warn(msg + ": invalid reset code")
		httputil.RespondErrorWithCode(w, "invalid or expired reset code", httputil.CodeInvalidReset, http.StatusBadRequest)
	case errors.Is(err, ErrInvalidToken):
		logger.Warn(msg + ": token does not match an account")
		httputil.RespondErrorWithCode(w, "invalid token", httputil.CodeInvalidToken, http.StatusUnauthorized)
	case errors.Is(err, ErrNotificationFailed):
		logger.Error(msg+": notification failed", "error", err.Error())
		httputil.RespondErrorWithCode(w, "reset code could not be delivered, please try again later", httputil.CodeNotificationFailed, http.StatusServiceUnavailable)
	case errors.Is(err, ErrStoreUnavailable):
		logger.Error(msg+": store unavailable", "error", err.Error())
		httputil.RespondErrorWithCode(w, "service temporarily unavailable", httputil.CodeStoreUnavailable, http.StatusServiceUnavailable)
	default:
		logger.Error(msg+": internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
	}
}

// getClientIP returns the peer address. chi's RealIP middleware has already
// replaced it with the forwarded client address when behind a proxy.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
