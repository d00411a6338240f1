// Package watchlist provides per-user watchlist and portfolio membership.
// Membership is keyed by (user, ticker); the market data itself lives in the
// stocks module.
package watchlist

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrAlreadyExists is returned when an item is already on the list.
var ErrAlreadyExists = errors.New("item already exists")

// PortfolioItem is a held position with its quantity.
type PortfolioItem struct {
	Ticker   string `json:"ticker"`
	Quantity int    `json:"quantity"`
}

// StockStatus reports list membership for a single ticker.
type StockStatus struct {
	InWatchlist bool `json:"in_watchlist"`
	InPortfolio bool `json:"in_portfolio"`
	Quantity    int  `json:"quantity"`
}

// Repository handles watchlist and portfolio database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new watchlist repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "watchlist").Logger(),
	}
}

// Add puts a ticker on a user's watchlist.
// Returns ErrAlreadyExists when the ticker is already listed.
func (r *Repository) Add(userID, ticker string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if userID == "" || ticker == "" {
		return fmt.Errorf("user_id and ticker are required")
	}

	result, err := r.db.Exec(
		"INSERT INTO watchlist_items (user_id, ticker, created_at) VALUES (?, ?, ?) ON CONFLICT(user_id, ticker) DO NOTHING",
		userID, ticker, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to add to watchlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check watchlist insert: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("ticker %s: %w", ticker, ErrAlreadyExists)
	}

	r.log.Debug().Str("user_id", userID).Str("ticker", ticker).Msg("Added to watchlist")
	return nil
}

// Remove takes a ticker off a user's watchlist.
// Returns false when the ticker was not listed.
func (r *Repository) Remove(userID, ticker string) (bool, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	result, err := r.db.Exec(
		"DELETE FROM watchlist_items WHERE user_id = ? AND ticker = ?",
		userID, ticker,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove from watchlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check watchlist delete: %w", err)
	}

	return rows > 0, nil
}

// List returns a user's watched tickers ordered alphabetically.
func (r *Repository) List(userID string) ([]string, error) {
	rows, err := r.db.Query(
		"SELECT ticker FROM watchlist_items WHERE user_id = ? ORDER BY ticker ASC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	defer rows.Close()

	tickers := []string{}
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist row: %w", err)
		}
		tickers = append(tickers, ticker)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watchlist: %w", err)
	}

	return tickers, nil
}

// AddToPortfolio puts a position on a user's portfolio.
// Returns ErrAlreadyExists when the ticker is already held.
func (r *Repository) AddToPortfolio(userID, ticker string, quantity int) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if userID == "" || ticker == "" {
		return fmt.Errorf("user_id and ticker are required")
	}
	if quantity < 1 {
		quantity = 1
	}

	result, err := r.db.Exec(
		"INSERT INTO portfolio_items (user_id, ticker, quantity, created_at) VALUES (?, ?, ?, ?) ON CONFLICT(user_id, ticker) DO NOTHING",
		userID, ticker, quantity, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to add to portfolio: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check portfolio insert: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("ticker %s: %w", ticker, ErrAlreadyExists)
	}

	r.log.Debug().Str("user_id", userID).Str("ticker", ticker).Int("quantity", quantity).Msg("Added to portfolio")
	return nil
}

// RemoveFromPortfolio drops a position. Returns false when not held.
func (r *Repository) RemoveFromPortfolio(userID, ticker string) (bool, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	result, err := r.db.Exec(
		"DELETE FROM portfolio_items WHERE user_id = ? AND ticker = ?",
		userID, ticker,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove from portfolio: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check portfolio delete: %w", err)
	}

	return rows > 0, nil
}

// UpdateQuantity changes the held quantity of a position.
// Returns false when the position does not exist.
func (r *Repository) UpdateQuantity(userID, ticker string, quantity int) (bool, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if quantity < 1 {
		return false, fmt.Errorf("quantity must be at least 1")
	}

	result, err := r.db.Exec(
		"UPDATE portfolio_items SET quantity = ? WHERE user_id = ? AND ticker = ?",
		quantity, userID, ticker,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update quantity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check quantity update: %w", err)
	}

	return rows > 0, nil
}

// ListPortfolio returns a user's positions ordered alphabetically.
func (r *Repository) ListPortfolio(userID string) ([]PortfolioItem, error) {
	rows, err := r.db.Query(
		"SELECT ticker, quantity FROM portfolio_items WHERE user_id = ? ORDER BY ticker ASC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolio: %w", err)
	}
	defer rows.Close()

	items := []PortfolioItem{}
	for rows.Next() {
		var item PortfolioItem
		if err := rows.Scan(&item.Ticker, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio row: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolio: %w", err)
	}

	return items, nil
}

// Status reports watchlist and portfolio membership for a batch of tickers
// in one round trip per list.
func (r *Repository) Status(userID string, tickers []string) (map[string]StockStatus, error) {
	statuses := make(map[string]StockStatus, len(tickers))
	for i, ticker := range tickers {
		tickers[i] = strings.ToUpper(strings.TrimSpace(ticker))
		statuses[tickers[i]] = StockStatus{}
	}
	if len(tickers) == 0 {
		return statuses, nil
	}

	watched, err := r.List(userID)
	if err != nil {
		return nil, err
	}
	for _, ticker := range watched {
		if status, ok := statuses[ticker]; ok {
			status.InWatchlist = true
			statuses[ticker] = status
		}
	}

	held, err := r.ListPortfolio(userID)
	if err != nil {
		return nil, err
	}
	for _, item := range held {
		if status, ok := statuses[item.Ticker]; ok {
			status.InPortfolio = true
			status.Quantity = item.Quantity
			statuses[item.Ticker] = status
		}
	}

	return statuses, nil
}
