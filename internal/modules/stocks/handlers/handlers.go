// Package handlers provides HTTP handlers for stock view and cache operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/fintracker/internal/modules/stocks"
	"github.com/aristath/fintracker/internal/services"
	"github.com/rs/zerolog"
)

// defaultRange is the price window used when the client does not ask for one.
const defaultRange = "3m"

// Orchestrator coordinates cache refreshes behind the view endpoints.
type Orchestrator interface {
	UpdateStockOnView(ticker, rangeToken string, forceUpdate bool) (*services.StockViewData, error)
	ForceRefreshEssentials(ticker string) (*services.EssentialsData, error)
}

// Handler handles stock HTTP requests
type Handler struct {
	orchestrator Orchestrator
	stockRepo    *stocks.StockRepository
	priceRepo    *stocks.PriceRepository
	dividendRepo *stocks.DividendRepository
	log          zerolog.Logger
}

// NewHandler creates a new stocks handler
func NewHandler(
	orchestrator Orchestrator,
	stockRepo *stocks.StockRepository,
	priceRepo *stocks.PriceRepository,
	dividendRepo *stocks.DividendRepository,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		stockRepo:    stockRepo,
		priceRepo:    priceRepo,
		dividendRepo: dividendRepo,
		log:          log.With().Str("handler", "stocks").Logger(),
	}
}

// HandleViewStock handles POST /api/stocks/{ticker}/view
// Refreshes stale cached data and returns the combined view payload.
func (h *Handler) HandleViewStock(w http.ResponseWriter, r *http.Request, ticker string) {
	rangeToken := r.URL.Query().Get("range")
	if rangeToken == "" {
		rangeToken = defaultRange
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	view, err := h.orchestrator.UpdateStockOnView(ticker, rangeToken, force)
	if err != nil {
		h.writeOrchestrationError(w, err, ticker)
		return
	}

	response := map[string]interface{}{
		"data": view,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleRefreshEssentials handles POST /api/stocks/{ticker}/refresh
// Forces a refresh of the latest quote and the dividend history.
func (h *Handler) HandleRefreshEssentials(w http.ResponseWriter, r *http.Request, ticker string) {
	data, err := h.orchestrator.ForceRefreshEssentials(ticker)
	if err != nil {
		h.writeOrchestrationError(w, err, ticker)
		return
	}

	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetPrices handles GET /api/prices/{ticker}
// Serves cached prices without triggering any provider fetch.
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request, ticker string) {
	rangeToken := r.URL.Query().Get("range")
	if rangeToken == "" {
		rangeToken = defaultRange
	}

	rangeDays, err := services.ConvertRangeToDays(rangeToken)
	if err != nil {
		http.Error(w, "Invalid range: "+rangeToken, http.StatusBadRequest)
		return
	}

	stockID, err := h.stockRepo.GetIDByTicker(ticker)
	if err != nil {
		h.writeOrchestrationError(w, err, ticker)
		return
	}

	prices, err := h.priceRepo.GetRecent(stockID, rangeDays)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get cached prices")
		http.Error(w, "Failed to get prices", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"ticker": ticker,
			"range":  rangeToken,
			"prices": prices,
			"count":  len(prices),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetDividends handles GET /api/dividends/{ticker}
// Serves cached dividends without triggering any provider fetch.
func (h *Handler) HandleGetDividends(w http.ResponseWriter, r *http.Request, ticker string) {
	stockID, err := h.stockRepo.GetIDByTicker(ticker)
	if err != nil {
		h.writeOrchestrationError(w, err, ticker)
		return
	}

	dividends, err := h.dividendRepo.GetRecent(stockID)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get cached dividends")
		http.Error(w, "Failed to get dividends", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"ticker":    ticker,
			"dividends": dividends,
			"count":     len(dividends),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleListStocks handles GET /api/stocks
func (h *Handler) HandleListStocks(w http.ResponseWriter, r *http.Request) {
	list, err := h.stockRepo.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list stocks")
		http.Error(w, "Failed to list stocks", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []stocks.Stock{}
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"stocks": list,
			"count":  len(list),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// registerStockRequest is the body of POST /api/stocks
type registerStockRequest struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

// HandleRegisterStock handles POST /api/stocks
// Registering an already known ticker returns the existing record.
func (h *Handler) HandleRegisterStock(w http.ResponseWriter, r *http.Request) {
	var req registerStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Ticker == "" {
		http.Error(w, "Ticker is required", http.StatusBadRequest)
		return
	}

	stock, err := h.stockRepo.Create(req.Ticker, req.Name)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", req.Ticker).Msg("Failed to register stock")
		http.Error(w, "Failed to register stock", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": stock,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusCreated, response)
}

// writeOrchestrationError maps service errors to HTTP status codes.
// Validation failures are client errors; anything else is a server error.
func (h *Handler) writeOrchestrationError(w http.ResponseWriter, err error, ticker string) {
	switch {
	case errors.Is(err, services.ErrInvalidTicker):
		http.Error(w, "Ticker is required", http.StatusBadRequest)
	case errors.Is(err, services.ErrInvalidRange):
		http.Error(w, "Invalid range", http.StatusBadRequest)
	case errors.Is(err, stocks.ErrStockNotFound):
		http.Error(w, "Stock not found: "+ticker, http.StatusNotFound)
	default:
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Stock operation failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
