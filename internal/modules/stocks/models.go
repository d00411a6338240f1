// Package stocks provides repository implementations for cached market data.
// Prices and dividends live in market.db and are refreshed on demand from the
// external providers; everything here can be re-fetched, nothing is a source
// of truth.
package stocks

// Stock is a tracked security. Tickers are stored uppercase and are unique.
type Stock struct {
	ID     string `json:"id"`
	Ticker string `json:"ticker"`
	Name   string `json:"name,omitempty"`
}

// PricePoint is a single daily closing price.
// Date is an ISO calendar date (YYYY-MM-DD) so lexicographic comparison
// matches chronological order.
type PricePoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// Dividend is a single dividend payment.
type Dividend struct {
	PaymentDate string  `json:"payment_date"`
	Value       float64 `json:"value"`
}
