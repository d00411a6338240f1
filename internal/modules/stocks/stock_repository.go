package stocks

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrStockNotFound is returned when a ticker has no corresponding stocks row.
var ErrStockNotFound = errors.New("stock not found")

// StockRepository handles stock reference data in market.db.
type StockRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *sql.DB, log zerolog.Logger) *StockRepository {
	return &StockRepository{
		db:  db,
		log: log.With().Str("repo", "stocks").Logger(),
	}
}

// GetIDByTicker resolves a ticker to its internal stock ID.
// Returns ErrStockNotFound when the ticker is unknown.
func (r *StockRepository) GetIDByTicker(ticker string) (string, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	var id string
	err := r.db.QueryRow("SELECT id FROM stocks WHERE ticker = ?", ticker).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("ticker %s: %w", ticker, ErrStockNotFound)
		}
		return "", fmt.Errorf("failed to resolve ticker %s: %w", ticker, err)
	}

	return id, nil
}

// Create registers a new stock. If the ticker is already registered the
// existing record is returned unchanged.
func (r *StockRepository) Create(ticker, name string) (*Stock, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}

	// Return the existing record on duplicate registration
	existing, err := r.getByTicker(ticker)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	stock := &Stock{
		ID:     uuid.New().String(),
		Ticker: ticker,
		Name:   name,
	}

	_, err = r.db.Exec(
		"INSERT INTO stocks (id, ticker, name, created_at) VALUES (?, ?, ?, ?)",
		stock.ID, stock.Ticker, stock.Name, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stock %s: %w", ticker, err)
	}

	r.log.Info().Str("ticker", ticker).Str("id", stock.ID).Msg("Stock registered")
	return stock, nil
}

// List returns all registered stocks ordered by ticker.
func (r *StockRepository) List() ([]Stock, error) {
	rows, err := r.db.Query("SELECT id, ticker, COALESCE(name, '') FROM stocks ORDER BY ticker ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list stocks: %w", err)
	}
	defer rows.Close()

	var stocks []Stock
	for rows.Next() {
		var s Stock
		if err := rows.Scan(&s.ID, &s.Ticker, &s.Name); err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stocks: %w", err)
	}

	return stocks, nil
}

func (r *StockRepository) getByTicker(ticker string) (*Stock, error) {
	var s Stock
	err := r.db.QueryRow(
		"SELECT id, ticker, COALESCE(name, '') FROM stocks WHERE ticker = ?", ticker,
	).Scan(&s.ID, &s.Ticker, &s.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get stock %s: %w", ticker, err)
	}
	return &s, nil
}
