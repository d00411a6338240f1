// Package handlers provides HTTP handlers for trading calendar operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/fintracker/internal/modules/market_hours"
)

// Handler handles trading calendar HTTP requests
type Handler struct {
	now func() time.Time
	log zerolog.Logger
}

// NewHandler creates a new trading calendar handler
func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{
		now: time.Now,
		log: log.With().Str("handler", "market_hours").Logger(),
	}
}

// HandleGetLastTradingDay handles GET /api/market/last-trading-day
// Returns the most recent weekday session, the reference date used by
// price staleness checks.
func (h *Handler) HandleGetLastTradingDay(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	lastTradingDay := market_hours.LastTradingDay(now)

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"date":    lastTradingDay.Format("2006-01-02"),
			"weekday": lastTradingDay.Weekday().String(),
		},
		"metadata": map[string]interface{}{
			"timestamp": now.Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
