// Package handlers provides HTTP handlers for watchlist and portfolio operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/fintracker/internal/modules/stocks"
	"github.com/aristath/fintracker/internal/modules/watchlist"
	"github.com/rs/zerolog"
)

// PriceReader supplies the newest cached price for a ticker.
type PriceReader interface {
	GetLatestByTicker(ticker string) (*stocks.PricePoint, error)
}

// Handler handles watchlist HTTP requests
type Handler struct {
	repo   *watchlist.Repository
	prices PriceReader
	log    zerolog.Logger
}

// NewHandler creates a new watchlist handler
func NewHandler(repo *watchlist.Repository, prices PriceReader, log zerolog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		prices: prices,
		log:    log.With().Str("handler", "watchlist").Logger(),
	}
}

// itemRequest is the body of the watchlist and portfolio add endpoints.
type itemRequest struct {
	UserID   string `json:"user_id"`
	Ticker   string `json:"ticker"`
	Quantity int    `json:"quantity"`
}

// HandleGetWatchlist handles GET /api/watchlist?user_id=
func (h *Handler) HandleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	tickers, err := h.repo.List(userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list watchlist")
		http.Error(w, "Failed to list watchlist", http.StatusInternalServerError)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"tickers": tickers,
		"count":   len(tickers),
	})
}

// HandleAddToWatchlist handles POST /api/watchlist
func (h *Handler) HandleAddToWatchlist(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Ticker == "" {
		http.Error(w, "user_id and ticker are required", http.StatusBadRequest)
		return
	}

	if err := h.repo.Add(req.UserID, req.Ticker); err != nil {
		if errors.Is(err, watchlist.ErrAlreadyExists) {
			http.Error(w, "Ticker already on watchlist", http.StatusConflict)
			return
		}
		h.log.Error().Err(err).Str("ticker", req.Ticker).Msg("Failed to add to watchlist")
		http.Error(w, "Failed to add to watchlist", http.StatusInternalServerError)
		return
	}

	h.writeData(w, http.StatusCreated, map[string]interface{}{
		"ticker": req.Ticker,
		"added":  true,
	})
}

// HandleRemoveFromWatchlist handles DELETE /api/watchlist/{ticker}?user_id=
func (h *Handler) HandleRemoveFromWatchlist(w http.ResponseWriter, r *http.Request, ticker string) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	removed, err := h.repo.Remove(userID, ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to remove from watchlist")
		http.Error(w, "Failed to remove from watchlist", http.StatusInternalServerError)
		return
	}
	if !removed {
		http.Error(w, "Ticker not on watchlist", http.StatusNotFound)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"ticker":  ticker,
		"removed": true,
	})
}

// HandleGetPortfolio handles GET /api/portfolio?user_id=
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	items, err := h.repo.ListPortfolio(userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list portfolio")
		http.Error(w, "Failed to list portfolio", http.StatusInternalServerError)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// portfolioFullItem is a held position enriched with its cached price.
// CurrentPrice and TotalValue are null when no price is cached yet.
type portfolioFullItem struct {
	Ticker       string   `json:"ticker"`
	Quantity     int      `json:"quantity"`
	CurrentPrice *float64 `json:"current_price"`
	TotalValue   *float64 `json:"total_value"`
}

// HandleGetPortfolioFull handles GET /api/portfolio/full?user_id=
// Joins the user's positions with the newest cached price per ticker.
// A failed or empty price lookup leaves the position in the list with
// null price fields rather than failing the whole response.
func (h *Handler) HandleGetPortfolioFull(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	positions, err := h.repo.ListPortfolio(userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list portfolio")
		http.Error(w, "Failed to list portfolio", http.StatusInternalServerError)
		return
	}

	items := make([]portfolioFullItem, 0, len(positions))
	totalValue := 0.0
	for _, position := range positions {
		item := portfolioFullItem{
			Ticker:   position.Ticker,
			Quantity: position.Quantity,
		}

		quote, err := h.prices.GetLatestByTicker(position.Ticker)
		if err != nil {
			h.log.Warn().Err(err).Str("ticker", position.Ticker).Msg("Failed to look up cached price")
		} else if quote != nil {
			value := quote.Price * float64(position.Quantity)
			item.CurrentPrice = &quote.Price
			item.TotalValue = &value
			totalValue += value
		}

		items = append(items, item)
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"items":       items,
		"count":       len(items),
		"total_value": totalValue,
	})
}

// HandleAddToPortfolio handles POST /api/portfolio
func (h *Handler) HandleAddToPortfolio(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Ticker == "" {
		http.Error(w, "user_id and ticker are required", http.StatusBadRequest)
		return
	}

	if err := h.repo.AddToPortfolio(req.UserID, req.Ticker, req.Quantity); err != nil {
		if errors.Is(err, watchlist.ErrAlreadyExists) {
			http.Error(w, "Ticker already in portfolio", http.StatusConflict)
			return
		}
		h.log.Error().Err(err).Str("ticker", req.Ticker).Msg("Failed to add to portfolio")
		http.Error(w, "Failed to add to portfolio", http.StatusInternalServerError)
		return
	}

	h.writeData(w, http.StatusCreated, map[string]interface{}{
		"ticker": req.Ticker,
		"added":  true,
	})
}

// HandleUpdatePortfolioQuantity handles PUT /api/portfolio/{ticker}
func (h *Handler) HandleUpdatePortfolioQuantity(w http.ResponseWriter, r *http.Request, ticker string) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if req.Quantity < 1 {
		http.Error(w, "quantity must be at least 1", http.StatusBadRequest)
		return
	}

	updated, err := h.repo.UpdateQuantity(req.UserID, ticker, req.Quantity)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to update quantity")
		http.Error(w, "Failed to update quantity", http.StatusInternalServerError)
		return
	}
	if !updated {
		http.Error(w, "Ticker not in portfolio", http.StatusNotFound)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"ticker":   ticker,
		"quantity": req.Quantity,
	})
}

// HandleRemoveFromPortfolio handles DELETE /api/portfolio/{ticker}?user_id=
func (h *Handler) HandleRemoveFromPortfolio(w http.ResponseWriter, r *http.Request, ticker string) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	removed, err := h.repo.RemoveFromPortfolio(userID, ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to remove from portfolio")
		http.Error(w, "Failed to remove from portfolio", http.StatusInternalServerError)
		return
	}
	if !removed {
		http.Error(w, "Ticker not in portfolio", http.StatusNotFound)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"ticker":  ticker,
		"removed": true,
	})
}

// checkStatusRequest is the body of POST /api/stocks/check-status
type checkStatusRequest struct {
	UserID  string   `json:"user_id"`
	Tickers []string `json:"tickers"`
}

// HandleCheckStatus handles POST /api/stocks/check-status
// Reports watchlist and portfolio membership for a batch of tickers.
func (h *Handler) HandleCheckStatus(w http.ResponseWriter, r *http.Request) {
	var req checkStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	statuses, err := h.repo.Status(req.UserID, req.Tickers)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to check status")
		http.Error(w, "Failed to check status", http.StatusInternalServerError)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"statuses": statuses,
	})
}

// writeData writes the standard response envelope.
func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
