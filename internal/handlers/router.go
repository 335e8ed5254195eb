package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter wires the ledger routes and middleware.
func NewRouter(h *Handler, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(Recovery)

	r.Get("/health", h.Health)

	r.Post("/transactions", h.CreateTransaction)
	r.Put("/transactions/inflight/{txID}", h.ResolveInflight)
	r.Get("/transactions/{txID}", h.GetTransaction)

	r.Get("/balances/{account}", h.GetBalance)
	r.Get("/balances/{account}/inflight", h.ListReservations)

	return r
}
