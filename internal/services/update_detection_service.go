// Package services provides business logic services for market data caching.
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/fintracker/internal/modules/market_hours"
	"github.com/rs/zerolog"
)

// ErrInvalidRange is returned when a range token is not recognized.
var ErrInvalidRange = errors.New("invalid range")

// dividendStaleDays is the cache lifetime for dividends. Payments are
// infrequent (monthly at most on B3), so a week-old cache is still useful.
const dividendStaleDays = 7

// rangeDays maps user-facing range tokens to trailing window sizes.
// The month tokens use calendar approximations (30/90 days), not trading days.
var rangeDays = map[string]int{
	"7d": 7,
	"1m": 30,
	"3m": 90,
	// Legacy aliases kept for older clients
	"1mo": 30,
	"3mo": 90,
}

// ConvertRangeToDays maps a range token to its trailing window in days.
// Tokens are matched case-insensitively with surrounding whitespace ignored.
// Unknown tokens return ErrInvalidRange.
func ConvertRangeToDays(rangeToken string) (int, error) {
	normalized := strings.ToLower(strings.TrimSpace(rangeToken))

	days, ok := rangeDays[normalized]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRange, rangeToken)
	}
	return days, nil
}

// UpdateDetectionService decides whether cached market data is fresh enough
// to serve or needs a refetch. All decisions fail open: when freshness cannot
// be established, the cache is treated as stale so an update is attempted.
type UpdateDetectionService struct {
	now func() time.Time
	log zerolog.Logger
}

// NewUpdateDetectionService creates a new update detection service
func NewUpdateDetectionService(log zerolog.Logger) *UpdateDetectionService {
	return &UpdateDetectionService{
		now: time.Now,
		log: log.With().Str("service", "update_detection").Logger(),
	}
}

// ShouldUpdatePrices reports whether the price cache needs a refetch.
// The cache is fresh only when its newest date is on or after the most
// recent trading day. The requested range does not change the verdict:
// a cache that is current for one window is current for all of them,
// since every fetch covers the full requested window.
func (s *UpdateDetectionService) ShouldUpdatePrices(lastPriceDate *time.Time, rangeDays int) bool {
	_ = rangeDays

	if lastPriceDate == nil {
		return true
	}

	lastTradingDay := market_hours.LastTradingDay(s.now())
	stale := market_hours.DateOnly(*lastPriceDate).Before(lastTradingDay)

	s.log.Debug().
		Str("last_price_date", lastPriceDate.Format("2006-01-02")).
		Str("last_trading_day", lastTradingDay.Format("2006-01-02")).
		Bool("stale", stale).
		Msg("Price freshness check")

	return stale
}

// ShouldUpdateDividends reports whether the dividend cache needs a refetch.
// A stock with no cached dividends always triggers a fetch, and a cache
// whose newest payment is older than dividendStaleDays is stale.
func (s *UpdateDetectionService) ShouldUpdateDividends(lastDividendDate *time.Time, hasDividends bool) bool {
	if !hasDividends {
		return true
	}
	if lastDividendDate == nil {
		return true
	}

	today := market_hours.DateOnly(s.now())
	age := int(today.Sub(market_hours.DateOnly(*lastDividendDate)).Hours() / 24)
	stale := age > dividendStaleDays

	s.log.Debug().
		Str("last_dividend_date", lastDividendDate.Format("2006-01-02")).
		Int("age_days", age).
		Bool("stale", stale).
		Msg("Dividend freshness check")

	return stale
}
