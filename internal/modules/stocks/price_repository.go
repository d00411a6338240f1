package stocks

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/fintracker/internal/database"
	"github.com/aristath/fintracker/internal/modules/market_hours"
	"github.com/rs/zerolog"
)

// PriceRepository handles cached daily closing prices in market.db.
type PriceRepository struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("repo", "prices").Logger(),
		now: time.Now,
	}
}

// GetMostRecentDate returns the date of the newest cached price for a stock.
// Returns nil (not an error) when no prices are cached yet.
func (r *PriceRepository) GetMostRecentDate(stockID string) (*time.Time, error) {
	var dateStr string
	err := r.db.QueryRow(
		"SELECT date FROM stock_prices WHERE stock_id = ? ORDER BY date DESC LIMIT 1",
		stockID,
	).Scan(&dateStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get most recent price date: %w", err)
	}

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid price date %q in cache: %w", dateStr, err)
	}

	return &date, nil
}

// GetRecent returns cached prices within the trailing window, oldest first.
func (r *PriceRepository) GetRecent(stockID string, rangeDays int) ([]PricePoint, error) {
	cutoff := market_hours.DateOnly(r.now()).AddDate(0, 0, -rangeDays).Format("2006-01-02")

	rows, err := r.db.Query(
		"SELECT date, price FROM stock_prices WHERE stock_id = ? AND date >= ? ORDER BY date ASC",
		stockID, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent prices: %w", err)
	}
	defer rows.Close()

	prices := []PricePoint{}
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.Date, &p.Price); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}

	return prices, nil
}

// GetLatestByTicker returns the newest cached price for a ticker.
// Returns nil (not an error) when the ticker is unknown or has no cache.
func (r *PriceRepository) GetLatestByTicker(ticker string) (*PricePoint, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	var p PricePoint
	err := r.db.QueryRow(`
		SELECT p.date, p.price
		FROM stock_prices p
		JOIN stocks s ON s.id = p.stock_id
		WHERE s.ticker = ?
		ORDER BY p.date DESC
		LIMIT 1
	`, ticker).Scan(&p.Date, &p.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest price for %s: %w", ticker, err)
	}

	return &p, nil
}

// Upsert persists fetched prices in a single transaction. Existing rows for
// the same (stock, date) are overwritten so re-fetching the same window is
// idempotent. Records with a malformed date or a negative price are skipped
// with a warning instead of failing the batch.
// Returns the number of records actually persisted.
func (r *PriceRepository) Upsert(stockID string, points []PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	saved := 0
	now := time.Now().UTC().Format(time.RFC3339)

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO stock_prices (stock_id, date, price, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(stock_id, date) DO UPDATE SET
				price = excluded.price,
				created_at = excluded.created_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare price upsert: %w", err)
		}
		defer stmt.Close()

		for _, p := range points {
			if !validDate(p.Date) || p.Price < 0 {
				r.log.Warn().
					Str("stock_id", stockID).
					Str("date", p.Date).
					Float64("price", p.Price).
					Msg("Skipping invalid price record")
				continue
			}

			if _, err := stmt.Exec(stockID, p.Date, p.Price, now); err != nil {
				return fmt.Errorf("failed to upsert price for %s: %w", p.Date, err)
			}
			saved++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.Debug().
		Str("stock_id", stockID).
		Int("saved", saved).
		Int("submitted", len(points)).
		Msg("Prices upserted")

	return saved, nil
}

// validDate reports whether s is a well-formed ISO calendar date.
func validDate(s string) bool {
	if s == "" {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
