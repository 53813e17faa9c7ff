package transaction

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/my-finance/internal/auth"
	"github.com/redmonkez12/my-finance/internal/httputil"
	"github.com/redmonkez12/my-finance/internal/logging"
)

// Handler serves the authenticated user's transactions. Routes must be
// mounted behind auth.Middleware.RequireAuth.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the /transactions sub-router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/summary", h.Summary)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

// List returns the user's transactions
// @Summary      List transactions
// @Tags         transactions
// @Produce      json
// @Security     BearerAuth
// @Param        type     query string false "income or expense"
// @Param        category query string false "Category"
// @Param        from     query string false "First date (YYYY-MM-DD)"
// @Param        to       query string false "Last date (YYYY-MM-DD)"
// @Success      200 {array}  Transaction
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /transactions [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationError, http.StatusBadRequest)
		return
	}

	list, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		respondError(w, r, "failed to list transactions", err)
		return
	}

	httputil.RespondJSON(w, list, http.StatusOK)
}

// Create adds a transaction
// @Summary      Create transaction
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body Input true "Transaction"
// @Success      201 {object} Transaction
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      401 {object} httputil.ErrorResponse
// @Router       /transactions [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var in Input
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	t, err := h.service.Create(r.Context(), userID, in)
	if err != nil {
		respondError(w, r, "failed to create transaction", err)
		return
	}

	httputil.RespondJSON(w, t, http.StatusCreated)
}

// Get returns one transaction
// @Summary      Get transaction
// @Tags         transactions
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Transaction ID"
// @Success      200 {object} Transaction
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /transactions/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	t, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		respondError(w, r, "failed to get transaction", err)
		return
	}

	httputil.RespondJSON(w, t, http.StatusOK)
}

// Update replaces a transaction
// @Summary      Update transaction
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string true "Transaction ID"
// @Param        request body Input  true "Transaction"
// @Success      200 {object} Transaction
// @Failure      400 {object} httputil.ErrorResponse
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /transactions/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	var in Input
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	t, err := h.service.Update(r.Context(), userID, id, in)
	if err != nil {
		respondError(w, r, "failed to update transaction", err)
		return
	}

	httputil.RespondJSON(w, t, http.StatusOK)
}

// Delete removes a transaction
// @Summary      Delete transaction
// @Tags         transactions
// @Security     BearerAuth
// @Param        id path string true "Transaction ID"
// @Success      204
// @Failure      404 {object} httputil.ErrorResponse
// @Router       /transactions/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	id, ok := transactionID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		respondError(w, r, "failed to delete transaction", err)
		return
	}

	httputil.RespondNoContent(w)
}

// Summary totals the user's transactions
// @Summary      Transaction summary
// @Tags         transactions
// @Produce      json
// @Security     BearerAuth
// @Param        type     query string false "income or expense"
// @Param        category query string false "Category"
// @Param        from     query string false "First date (YYYY-MM-DD)"
// @Param        to       query string false "Last date (YYYY-MM-DD)"
// @Success      200 {object} Summary
// @Failure      400 {object} httputil.ErrorResponse
// @Router       /transactions/summary [get]
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationError, http.StatusBadRequest)
		return
	}

	summary, err := h.service.Summary(r.Context(), userID, filter)
	if err != nil {
		respondError(w, r, "failed to summarize transactions", err)
		return
	}

	httputil.RespondJSON(w, summary, http.StatusOK)
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
	}
	return userID, ok
}

func transactionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		// Not a UUID, so it cannot exist.
		httputil.RespondErrorWithCode(w, "transaction not found", httputil.CodeNotFound, http.StatusNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{
		Type:     Type(q.Get("type")),
		Category: q.Get("category"),
	}

	if v := q.Get("from"); v != "" {
		d, err := ParseDate(v)
		if err != nil {
			return f, err
		}
		f.From = d
	}
	if v := q.Get("to"); v != "" {
		d, err := ParseDate(v)
		if err != nil {
			return f, err
		}
		f.To = d
	}

	return f, nil
}

func respondError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logger := logging.GetLoggerFromContext(r.Context())

	switch {
	case errors.Is(err, ErrValidation):
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationError, http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		httputil.RespondErrorWithCode(w, "transaction not found", httputil.CodeNotFound, http.StatusNotFound)
	default:
		logger.Error(msg, "error", err.Error())
		httputil.RespondErrorWithCode(w, "service temporarily unavailable", httputil.CodeStoreUnavailable, http.StatusServiceUnavailable)
	}
}
