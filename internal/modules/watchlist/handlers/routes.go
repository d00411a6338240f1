package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all watchlist and portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/watchlist", func(r chi.Router) {
		r.Get("/", h.HandleGetWatchlist)
		r.Post("/", h.HandleAddToWatchlist)
		r.Delete("/{ticker}", func(w http.ResponseWriter, r *http.Request) {
			ticker := chi.URLParam(r, "ticker")
			h.HandleRemoveFromWatchlist(w, r, ticker)
		})
	})

	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleGetPortfolio)
		r.Get("/full", h.HandleGetPortfolioFull)
		r.Post("/", h.HandleAddToPortfolio)
		r.Put("/{ticker}", func(w http.ResponseWriter, r *http.Request) {
			ticker := chi.URLParam(r, "ticker")
			h.HandleUpdatePortfolioQuantity(w, r, ticker)
		})
		r.Delete("/{ticker}", func(w http.ResponseWriter, r *http.Request) {
			ticker := chi.URLParam(r, "ticker")
			h.HandleRemoveFromPortfolio(w, r, ticker)
		})
	})

	r.Post("/stocks/check-status", h.HandleCheckStatus)
}
