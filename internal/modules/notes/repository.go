// Package notes provides per-user free-text annotations on stocks.
// Notes are keyed by (user, ticker) like the watchlist module; a user has at
// most one note per stock.
package notes

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Note is a user's annotation on a stock.
// UpdatedAt is nil when the user has never saved a note for the ticker.
type Note struct {
	Ticker    string  `json:"ticker"`
	NoteText  string  `json:"note_text"`
	UpdatedAt *string `json:"updated_at"`
}

// Repository handles stock note database operations
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a new notes repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "notes").Logger(),
	}
}

// Get returns a user's note for a ticker. A ticker without a saved note
// yields an empty note, not an error.
func (r *Repository) Get(userID, ticker string) (*Note, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if userID == "" || ticker == "" {
		return nil, fmt.Errorf("user_id and ticker are required")
	}

	note := Note{Ticker: ticker}
	var updatedAt string

	err := r.db.QueryRow(
		"SELECT note_text, updated_at FROM stock_notes WHERE user_id = ? AND ticker = ?",
		userID, ticker,
	).Scan(&note.NoteText, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &note, nil
		}
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	note.UpdatedAt = &updatedAt
	return &note, nil
}

// Save stores or replaces a user's note for a ticker.
// Saving an empty text is allowed; it clears the note without deleting the row.
func (r *Repository) Save(userID, ticker, text string) (*Note, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if userID == "" || ticker == "" {
		return nil, fmt.Errorf("user_id and ticker are required")
	}

	now := r.now().UTC().Format(time.RFC3339)

	_, err := r.db.Exec(`
		INSERT INTO stock_notes (user_id, ticker, note_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, ticker) DO UPDATE SET
			note_text = excluded.note_text,
			updated_at = excluded.updated_at
	`, userID, ticker, text, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to save note: %w", err)
	}

	r.log.Debug().Str("user_id", userID).Str("ticker", ticker).Msg("Note saved")

	return &Note{Ticker: ticker, NoteText: text, UpdatedAt: &now}, nil
}
