package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all stock routes.
// Patterns are registered flat (no subrouter mount) so other modules can add
// their own static routes under /stocks without conflicting.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stocks", h.HandleListStocks)
	r.Post("/stocks", h.HandleRegisterStock)

	r.Post("/stocks/{ticker}/view", func(w http.ResponseWriter, r *http.Request) {
		ticker := chi.URLParam(r, "ticker")
		h.HandleViewStock(w, r, ticker)
	})
	r.Post("/stocks/{ticker}/refresh", func(w http.ResponseWriter, r *http.Request) {
		ticker := chi.URLParam(r, "ticker")
		h.HandleRefreshEssentials(w, r, ticker)
	})

	r.Get("/prices/{ticker}", func(w http.ResponseWriter, r *http.Request) {
		ticker := chi.URLParam(r, "ticker")
		h.HandleGetPrices(w, r, ticker)
	})
	r.Get("/dividends/{ticker}", func(w http.ResponseWriter, r *http.Request) {
		ticker := chi.URLParam(r, "ticker")
		h.HandleGetDividends(w, r, ticker)
	})
}
