package stocks

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory database with the market schema tables
// used by the repositories in this package.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS stocks (
			id TEXT PRIMARY KEY,
			ticker TEXT NOT NULL UNIQUE,
			name TEXT,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS stock_prices (
			stock_id TEXT NOT NULL,
			date TEXT NOT NULL,
			price REAL NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (stock_id, date)
		);

		CREATE TABLE IF NOT EXISTS stock_dividends (
			stock_id TEXT NOT NULL,
			payment_date TEXT NOT NULL,
			value REAL NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (stock_id, payment_date)
		);
	`)
	require.NoError(t, err)

	return db
}
