package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/domain"
	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/logger"
)

// TransactionService is the subset of domain.TransactionService the HTTP
// layer depends on.
type TransactionService interface {
	Create(ctx context.Context, req domain.CreateTransactionRequest) (*domain.Transaction, bool, error)
	Resolve(ctx context.Context, id string, decision domain.Decision) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	GetBalance(ctx context.Context, account, currency string) (*domain.Balance, error)
	ListReservations(ctx context.Context, account, currency string) ([]*domain.Reservation, error)
	Ping(ctx context.Context) error
}

// Handler serves the ledger HTTP API
type Handler struct {
	service TransactionService
}

// NewHandler creates a new Handler backed by service
func NewHandler(service TransactionService) *Handler {
	return &Handler{service: service}
}

// CreateTransaction handles POST /transactions. A replayed reference answers
// with the stored transaction and the Idempotent-Replayed header.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body: "+err.Error(), "")
		return
	}

	txn, created, err := h.service.Create(r.Context(), req.toDomain())
	if err != nil {
		handleDomainError(r.Context(), w, err)
		return
	}

	if !created {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	writeJSON(w, http.StatusCreated, newTransactionResponse(txn))
}

// ResolveInflight handles PUT /transactions/inflight/{txID}
func (h *Handler) ResolveInflight(w http.ResponseWriter, r *http.Request) {
	var req ResolveInflightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body: "+err.Error(), "")
		return
	}

	decision, err := domain.ParseDecision(req.Status)
	if err != nil {
		handleDomainError(r.Context(), w, err)
		return
	}

	txn, err := h.service.Resolve(r.Context(), pathParam(r, "txID"), decision)
	if err != nil {
		handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, newTransactionResponse(txn))
}

// GetTransaction handles GET /transactions/{txID}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := h.service.GetTransaction(r.Context(), pathParam(r, "txID"))
	if err != nil {
		handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionResponse(txn))
}

// GetBalance handles GET /balances/{account}?currency=USD
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.GetBalance(r.Context(), pathParam(r, "account"), r.URL.Query().Get("currency"))
	if err != nil {
		handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBalanceResponse(b))
}

// ListReservations handles GET /balances/{account}/inflight?currency=USD
func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.service.ListReservations(r.Context(), pathParam(r, "account"), r.URL.Query().Get("currency"))
	if err != nil {
		handleDomainError(r.Context(), w, err)
		return
	}

	resp := make([]ReservationResponse, 0, len(reservations))
	for _, res := range reservations {
		resp = append(resp, newReservationResponse(res))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		logger.FromContext(r.Context()).Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// pathParam returns the unescaped URL parameter, so that %40world and
// @world address the same account.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// handleDomainError converts domain errors to HTTP responses
func handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError

	switch {
	case errors.As(err, &validationErr):
		sendErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Error(), validationErr.Field)
	case errors.Is(err, domain.ErrValidation):
		sendErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), "")
	case errors.Is(err, domain.ErrInsufficientFunds):
		sendErrorResponse(w, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", err.Error(), "")
	case errors.Is(err, domain.ErrTransactionNotFound):
		sendErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "transaction not found", "")
	case errors.Is(err, domain.ErrBalanceNotFound):
		sendErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "balance not found", "")
	case errors.Is(err, domain.ErrInvalidState):
		sendErrorResponse(w, http.StatusConflict, "INVALID_STATE", err.Error(), "")
	case errors.Is(err, domain.ErrDuplicateReference):
		sendErrorResponse(w, http.StatusConflict, "ALREADY_EXISTS", err.Error(), "")
	case errors.Is(err, domain.ErrLockUnavailable):
		logger.FromContext(ctx).Warn("lock unavailable", zap.Error(err))
		sendErrorResponse(w, http.StatusServiceUnavailable, "BUSY", "resource is busy, retry later", "")
	default:
		logger.FromContext(ctx).Error("request failed", zap.Error(err))
		sendErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", "")
	}
}
