// Package handlers provides HTTP handlers for stock note operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/fintracker/internal/modules/notes"
	"github.com/rs/zerolog"
)

// Handler handles stock note HTTP requests
type Handler struct {
	repo *notes.Repository
	log  zerolog.Logger
}

// NewHandler creates a new notes handler
func NewHandler(repo *notes.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "notes").Logger(),
	}
}

// HandleGetNote handles GET /api/notes/{ticker}?user_id=
// A ticker the user never annotated returns an empty note.
func (h *Handler) HandleGetNote(w http.ResponseWriter, r *http.Request, ticker string) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	note, err := h.repo.Get(userID, ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get note")
		http.Error(w, "Failed to get note", http.StatusInternalServerError)
		return
	}

	h.writeData(w, http.StatusOK, note)
}

// saveNoteRequest is the body of POST /api/notes/save
type saveNoteRequest struct {
	UserID   string `json:"user_id"`
	Ticker   string `json:"ticker"`
	NoteText string `json:"note_text"`
}

// HandleSaveNote handles POST /api/notes/save
func (h *Handler) HandleSaveNote(w http.ResponseWriter, r *http.Request) {
	var req saveNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Ticker == "" {
		http.Error(w, "user_id and ticker are required", http.StatusBadRequest)
		return
	}

	note, err := h.repo.Save(req.UserID, req.Ticker, req.NoteText)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", req.Ticker).Msg("Failed to save note")
		http.Error(w, "Failed to save note", http.StatusInternalServerError)
		return
	}

	h.writeData(w, http.StatusOK, note)
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
