package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/audit"
	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/logger"
)

// JournalReader reads the audit journal and reports whether its backend
// is reachable.
type JournalReader interface {
	ListByTransaction(ctx context.Context, transactionID string) ([]*audit.Entry, error)
	Ping(ctx context.Context) error
}

// JournalHandler serves the audit worker's read API
type JournalHandler struct {
	journal JournalReader
}

// NewJournalHandler creates a new JournalHandler backed by journal
func NewJournalHandler(journal JournalReader) *JournalHandler {
	return &JournalHandler{journal: journal}
}

// ListEntries handles GET /journal/{txID}. A transaction with no recorded
// events is reported as not found.
func (h *JournalHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "txID")
	entries, err := h.journal.ListByTransaction(r.Context(), id)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to read journal", zap.String("transaction_id", id), zap.Error(err))
		sendErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", "")
		return
	}
	if len(entries) == 0 {
		sendErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "no journal entries for transaction", "")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Health handles GET /health
func (h *JournalHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.journal.Ping(r.Context()); err != nil {
		logger.FromContext(r.Context()).Warn("journal health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// NewJournalRouter wires the audit worker routes.
func NewJournalRouter(h *JournalHandler, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(Recovery)

	r.Get("/health", h.Health)
	r.Get("/journal/{txID}", h.ListEntries)
	return r
}
