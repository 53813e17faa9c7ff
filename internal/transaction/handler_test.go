package transaction_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/my-finance/internal/auth"
	"github.com/redmonkez12/my-finance/internal/httputil"
	"github.com/redmonkez12/my-finance/internal/transaction"
)

func serve(t *testing.T, h http.Handler, userID uuid.UUID, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req = req.WithContext(auth.WithUserID(context.Background(), userID))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandler_Lifecycle(t *testing.T) {
	f := newFixture(t)
	h := transaction.NewHandler(transaction.NewService(f.repo)).Routes()

	w := serve(t, h, f.alice, http.MethodPost, "/", `{"description":"Coffee","amount":3.5,"category":"food","type":"expense","date":"2026-03-04"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, 3.5, created["amount"])
	assert.Equal(t, "2026-03-04", created["date"])
	id := created["id"].(string)

	w = serve(t, h, f.alice, http.MethodGet, "/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(t, h, f.bob, http.MethodGet, "/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(t, h, f.alice, http.MethodPut, "/"+id, `{"description":"Coffee beans","amount":12,"category":"food","type":"expense","date":"2026-03-04"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(t, h, f.alice, http.MethodGet, "/summary?type=expense", "")
	require.Equal(t, http.StatusOK, w.Code)
	var summary map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))
	assert.Equal(t, 12.0, summary["expense"])

	w = serve(t, h, f.alice, http.MethodDelete, "/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(t, h, f.alice, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestHandler_BadRequests(t *testing.T) {
	f := newFixture(t)
	h := transaction.NewHandler(transaction.NewService(f.repo)).Routes()

	tests := []struct {
		name     string
		method   string
		target   string
		body     string
		status   int
		wantCode string
	}{
		{name: "negative amount", method: http.MethodPost, target: "/", body: `{"description":"x","amount":-1,"category":"c","type":"expense","date":"2026-03-04"}`, status: http.StatusBadRequest, wantCode: httputil.CodeValidationError},
		{name: "bad type", method: http.MethodPost, target: "/", body: `{"description":"x","amount":1,"category":"c","type":"gift","date":"2026-03-04"}`, status: http.StatusBadRequest, wantCode: httputil.CodeValidationError},
		{name: "missing date", method: http.MethodPost, target: "/", body: `{"description":"x","amount":1,"category":"c","type":"income"}`, status: http.StatusBadRequest, wantCode: httputil.CodeValidationError},
		{name: "unknown field", method: http.MethodPost, target: "/", body: `{"description":"x","amount":1,"category":"c","type":"income","date":"2026-03-04","user_id":"x"}`, status: http.StatusBadRequest, wantCode: httputil.CodeInvalidRequestBody},
		{name: "bad filter date", method: http.MethodGet, target: "/?from=yesterday", status: http.StatusBadRequest, wantCode: httputil.CodeValidationError},
		{name: "inverted range", method: http.MethodGet, target: "/summary?from=2026-03-05&to=2026-03-01", status: http.StatusBadRequest, wantCode: httputil.CodeValidationError},
		{name: "non uuid id", method: http.MethodGet, target: "/abc", status: http.StatusNotFound, wantCode: httputil.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, h, f.alice, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, w.Code)

			var body httputil.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}
}

func TestHandler_RequiresUser(t *testing.T) {
	h := transaction.NewHandler(transaction.NewService(nil)).Routes()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
