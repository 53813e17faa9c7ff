package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/my-finance/internal/auth"
	"github.com/redmonkez12/my-finance/internal/config"
	"github.com/redmonkez12/my-finance/internal/database/dbtest"
	apihttp "github.com/redmonkez12/my-finance/internal/http"
	"github.com/redmonkez12/my-finance/internal/logging"
	"github.com/redmonkez12/my-finance/internal/ratelimit"
	"github.com/redmonkez12/my-finance/internal/transaction"
	"github.com/redmonkez12/my-finance/internal/user"
)

type mailbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *mailbox) SendPasswordResetCode(_ context.Context, toEmail, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[toEmail] = code
	return nil
}

func (m *mailbox) code(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

func newTestRouter(t *testing.T) (http.Handler, *mailbox) {
	t.Helper()
	return newTestRouterForEnv(t, "prod")
}

func newTestRouterForEnv(t *testing.T, env string) (http.Handler, *mailbox) {
	t.Helper()

	db := dbtest.NewSQLite(t)
	logger := logging.Discard()
	box := &mailbox{codes: map[string]string{}}

	tokens, err := auth.NewPasetoService(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	authService := auth.NewService(
		user.NewRepository(db),
		auth.NewArgon2Hasher(auth.Argon2Params{Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}),
		tokens,
		box,
		logger,
		time.Hour,
		30*time.Minute,
	)

	cfg := &config.Config{Server: config.ServerConfig{Env: env, TrustedOrigins: []string{"https://app.example"}}}
	router := apihttp.NewRouter(
		cfg,
		auth.NewHandler(authService, ratelimit.Disabled{}, logger),
		auth.NewMiddleware(tokens),
		transaction.NewHandler(transaction.NewService(transaction.NewRepository(db))),
		logger,
	)

	return router, box
}

func call(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, h http.Handler, email, password string) string {
	t.Helper()

	w := call(t, h, http.MethodPost, "/login", "", `{"email":"`+email+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var token auth.AuthToken
	require.NoError(t, json.NewDecoder(w.Body).Decode(&token))
	return token.Token
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t)

	w := call(t, router, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestRouter_SecurityHeaders(t *testing.T) {
	t.Run("prod", func(t *testing.T) {
		router, _ := newTestRouterForEnv(t, "prod")

		w := call(t, router, http.MethodGet, "/health", "", "")
		assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", w.Header().Get("Content-Security-Policy"))
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
		assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))

		// No relaxed policy for a path that is not served in prod.
		w = call(t, router, http.MethodGet, "/swagger/index.html", "", "")
		assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", w.Header().Get("Content-Security-Policy"))
	})

	t.Run("dev", func(t *testing.T) {
		router, _ := newTestRouterForEnv(t, "dev")

		w := call(t, router, http.MethodGet, "/health", "", "")
		assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

		w = call(t, router, http.MethodGet, "/swagger/index.html", "", "")
		assert.Contains(t, w.Header().Get("Content-Security-Policy"), "script-src 'self'")
	})
}

func TestRouter_SwaggerHiddenOutsideDev(t *testing.T) {
	router, _ := newTestRouter(t)

	w := call(t, router, http.MethodGet, "/swagger/index.html", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_AccountLifecycle(t *testing.T) {
	router, box := newTestRouter(t)

	w := call(t, router, http.MethodPost, "/register", "", `{"name":"Alice","email":"alice@example.com","password":"old-secret"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	token := login(t, router, "alice@example.com", "old-secret")

	w = call(t, router, http.MethodGet, "/me", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"alice@example.com"`)

	w = call(t, router, http.MethodPost, "/transactions", token, `{"description":"Salary","amount":1500,"category":"work","type":"income","date":"2026-03-01"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(t, router, http.MethodGet, "/transactions/summary", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"balance":1500.00`)

	w = call(t, router, http.MethodPost, "/forgot-password/code", "", `{"email":"alice@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	code := box.code("alice@example.com")
	require.Len(t, code, 6)

	w = call(t, router, http.MethodPost, "/forgot-password", "", `{"email":"alice@example.com","code":"`+code+`","new_password":"new-secret"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(t, router, http.MethodPost, "/login", "", `{"email":"alice@example.com","password":"old-secret"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	login(t, router, "alice@example.com", "new-secret")
}

func TestRouter_ProtectedRoutesNeedToken(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/me", "/transactions", "/transactions/summary"} {
		w := call(t, router, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	router, _ := newTestRouter(t)

	w := call(t, router, http.MethodGet, "/auth/register", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(t, router, http.MethodGet, "/register", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
}
