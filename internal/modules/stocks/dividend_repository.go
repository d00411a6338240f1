package stocks

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/fintracker/internal/database"
	"github.com/rs/zerolog"
)

// recentDividendLimit caps how many payments the read paths return.
// Twelve covers a year of monthly payers and several years of quarterly ones.
const recentDividendLimit = 12

// DividendRepository handles cached dividend payments in market.db.
type DividendRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewDividendRepository creates a new dividend repository
func NewDividendRepository(db *sql.DB, log zerolog.Logger) *DividendRepository {
	return &DividendRepository{
		db:  db,
		log: log.With().Str("repo", "dividends").Logger(),
	}
}

// HasAny reports whether any dividend is cached for a stock.
// A stock with no cached dividends always triggers a fetch attempt, since
// "never paid" and "never fetched" are indistinguishable locally.
func (r *DividendRepository) HasAny(stockID string) (bool, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM stock_dividends WHERE stock_id = ?", stockID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count dividends: %w", err)
	}
	return count > 0, nil
}

// GetMostRecentDate returns the payment date of the newest cached dividend.
// Returns nil (not an error) when no dividends are cached.
func (r *DividendRepository) GetMostRecentDate(stockID string) (*time.Time, error) {
	var dateStr string
	err := r.db.QueryRow(
		"SELECT payment_date FROM stock_dividends WHERE stock_id = ? ORDER BY payment_date DESC LIMIT 1",
		stockID,
	).Scan(&dateStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get most recent dividend date: %w", err)
	}

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid dividend date %q in cache: %w", dateStr, err)
	}

	return &date, nil
}

// GetRecent returns the newest cached dividends, most recent first.
func (r *DividendRepository) GetRecent(stockID string) ([]Dividend, error) {
	rows, err := r.db.Query(
		"SELECT payment_date, value FROM stock_dividends WHERE stock_id = ? ORDER BY payment_date DESC LIMIT ?",
		stockID, recentDividendLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent dividends: %w", err)
	}
	defer rows.Close()

	dividends := []Dividend{}
	for rows.Next() {
		var d Dividend
		if err := rows.Scan(&d.PaymentDate, &d.Value); err != nil {
			return nil, fmt.Errorf("failed to scan dividend: %w", err)
		}
		dividends = append(dividends, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dividends: %w", err)
	}

	return dividends, nil
}

// Upsert persists fetched dividends in a single transaction. Existing rows
// for the same (stock, payment date) are overwritten. Records with a
// malformed date or a non-positive value are skipped with a warning.
// Returns the number of records actually persisted.
func (r *DividendRepository) Upsert(stockID string, dividends []Dividend) (int, error) {
	if len(dividends) == 0 {
		return 0, nil
	}

	saved := 0
	now := time.Now().UTC().Format(time.RFC3339)

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO stock_dividends (stock_id, payment_date, value, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(stock_id, payment_date) DO UPDATE SET
				value = excluded.value,
				created_at = excluded.created_at
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare dividend upsert: %w", err)
		}
		defer stmt.Close()

		for _, d := range dividends {
			if !validDate(d.PaymentDate) || d.Value <= 0 {
				r.log.Warn().
					Str("stock_id", stockID).
					Str("payment_date", d.PaymentDate).
					Float64("value", d.Value).
					Msg("Skipping invalid dividend record")
				continue
			}

			if _, err := stmt.Exec(stockID, d.PaymentDate, d.Value, now); err != nil {
				return fmt.Errorf("failed to upsert dividend for %s: %w", d.PaymentDate, err)
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
		Int("submitted", len(dividends)).
		Msg("Dividends upserted")

	return saved, nil
}
