package services

import (
	"errors"
	"strings"
	"time"

	"github.com/aristath/fintracker/internal/modules/stocks"
	"github.com/rs/zerolog"
)

// ErrInvalidTicker is returned when a ticker is empty or blank.
var ErrInvalidTicker = errors.New("ticker must not be empty")

// StockResolver resolves tickers to internal stock IDs.
type StockResolver interface {
	GetIDByTicker(ticker string) (string, error)
}

// PriceStore provides cached price reads and writes.
type PriceStore interface {
	GetMostRecentDate(stockID string) (*time.Time, error)
	GetRecent(stockID string, rangeDays int) ([]stocks.PricePoint, error)
	Upsert(stockID string, points []stocks.PricePoint) (int, error)
}

// DividendStore provides cached dividend reads and writes.
type DividendStore interface {
	HasAny(stockID string) (bool, error)
	GetMostRecentDate(stockID string) (*time.Time, error)
	GetRecent(stockID string) ([]stocks.Dividend, error)
	Upsert(stockID string, dividends []stocks.Dividend) (int, error)
}

// PriceFetcher fetches prices from the external provider.
type PriceFetcher interface {
	FetchPrices(ticker, rangeToken string) ([]stocks.PricePoint, error)
	FetchLatestQuote(ticker string) (*stocks.PricePoint, error)
}

// DividendFetcher fetches dividend history from the external provider.
type DividendFetcher interface {
	FetchDividends(ticker string) ([]stocks.Dividend, error)
}

// StockViewData is the combined payload served when a stock is viewed.
type StockViewData struct {
	Ticker           string              `json:"ticker"`
	Prices           []stocks.PricePoint `json:"prices"`
	Dividends        []stocks.Dividend   `json:"dividends"`
	PricesUpdated    bool                `json:"prices_updated"`
	DividendsUpdated bool                `json:"dividends_updated"`
	Timestamp        string              `json:"timestamp"`
}

// EssentialsData is the minimal payload served by the forced refresh path.
// CurrentPrice is nil when neither the provider nor the cache has a price.
type EssentialsData struct {
	Ticker       string            `json:"ticker"`
	CurrentPrice *float64          `json:"current_price"`
	Dividends    []stocks.Dividend `json:"dividends"`
}

// OrchestrationService coordinates the freshness checks, provider fetches,
// cache writes and cache reads behind the stock view endpoints.
//
// The price and dividend branches are isolated: a provider outage or a write
// failure in one branch never blocks the other, and both branches always
// fall back to whatever the cache holds. Only ticker and range validation
// are fatal.
type OrchestrationService struct {
	stockRepo       StockResolver
	priceStore      PriceStore
	dividendStore   DividendStore
	priceFetcher    PriceFetcher
	dividendFetcher DividendFetcher
	detector        *UpdateDetectionService
	log             zerolog.Logger
}

// NewOrchestrationService creates a new orchestration service
func NewOrchestrationService(
	stockRepo StockResolver,
	priceStore PriceStore,
	dividendStore DividendStore,
	priceFetcher PriceFetcher,
	dividendFetcher DividendFetcher,
	detector *UpdateDetectionService,
	log zerolog.Logger,
) *OrchestrationService {
	return &OrchestrationService{
		stockRepo:       stockRepo,
		priceStore:      priceStore,
		dividendStore:   dividendStore,
		priceFetcher:    priceFetcher,
		dividendFetcher: dividendFetcher,
		detector:        detector,
		log:             log.With().Str("service", "orchestration").Logger(),
	}
}

// UpdateStockOnView refreshes stale cached data for a stock and returns the
// combined view payload. forceUpdate bypasses the freshness checks and always
// refetches both branches.
//
// Returns ErrInvalidTicker, ErrInvalidRange or stocks.ErrStockNotFound for
// the fatal validation failures; everything past validation degrades to
// cached data.
func (s *OrchestrationService) UpdateStockOnView(ticker, rangeToken string, forceUpdate bool) (*StockViewData, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, ErrInvalidTicker
	}

	rangeDays, err := ConvertRangeToDays(rangeToken)
	if err != nil {
		return nil, err
	}

	stockID, err := s.stockRepo.GetIDByTicker(ticker)
	if err != nil {
		return nil, err
	}

	prices, pricesUpdated := s.refreshPrices(stockID, ticker, rangeToken, rangeDays, forceUpdate)
	dividends, dividendsUpdated := s.refreshDividends(stockID, ticker, forceUpdate)

	s.log.Info().
		Str("ticker", ticker).
		Str("range", rangeToken).
		Bool("prices_updated", pricesUpdated).
		Bool("dividends_updated", dividendsUpdated).
		Msg("Stock view assembled")

	return &StockViewData{
		Ticker:           ticker,
		Prices:           prices,
		Dividends:        dividends,
		PricesUpdated:    pricesUpdated,
		DividendsUpdated: dividendsUpdated,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// ForceRefreshEssentials refreshes only the latest quote plus the dividend
// history. This is the cheap path used when a full historical window is not
// needed but the caller wants numbers that are as current as possible.
func (s *OrchestrationService) ForceRefreshEssentials(ticker string) (*EssentialsData, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, ErrInvalidTicker
	}

	stockID, err := s.stockRepo.GetIDByTicker(ticker)
	if err != nil {
		return nil, err
	}

	currentPrice := s.refreshLatestQuote(stockID, ticker)
	dividends, _ := s.refreshDividends(stockID, ticker, true)

	s.log.Info().
		Str("ticker", ticker).
		Bool("has_price", currentPrice != nil).
		Int("dividends", len(dividends)).
		Msg("Essentials refreshed")

	return &EssentialsData{
		Ticker:       ticker,
		CurrentPrice: currentPrice,
		Dividends:    dividends,
	}, nil
}

// refreshPrices runs the price branch: freshness check, optional fetch and
// persist, then an unconditional cache read so the caller always gets
// whatever the cache ended up holding.
func (s *OrchestrationService) refreshPrices(stockID, ticker, rangeToken string, rangeDays int, force bool) ([]stocks.PricePoint, bool) {
	updated := false

	lastDate, err := s.priceStore.GetMostRecentDate(stockID)
	if err != nil {
		// Fail open: unknown freshness means stale
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Price freshness unknown, treating as stale")
		lastDate = nil
	}

	if force || s.detector.ShouldUpdatePrices(lastDate, rangeDays) {
		fetched, err := s.priceFetcher.FetchPrices(ticker, rangeToken)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Price fetch failed, serving cached prices")
		case len(fetched) == 0:
			s.log.Warn().Str("ticker", ticker).Msg("Provider returned no prices")
		default:
			saved, err := s.priceStore.Upsert(stockID, fetched)
			if err != nil {
				s.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to persist fetched prices")
			} else if saved > 0 {
				updated = true
			}
		}
	}

	prices, err := s.priceStore.GetRecent(stockID, rangeDays)
	if err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to read cached prices")
		prices = nil
	}
	if prices == nil {
		prices = []stocks.PricePoint{}
	}

	return prices, updated
}

// refreshDividends runs the dividend branch, mirroring refreshPrices.
// An empty dividend list from the provider is a valid answer (many stocks
// simply never pay), not a failure.
func (s *OrchestrationService) refreshDividends(stockID, ticker string, force bool) ([]stocks.Dividend, bool) {
	updated := false

	hasAny, err := s.dividendStore.HasAny(stockID)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Dividend presence unknown, treating as stale")
		hasAny = false
	}

	var lastDate *time.Time
	if hasAny {
		lastDate, err = s.dividendStore.GetMostRecentDate(stockID)
		if err != nil {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Dividend freshness unknown, treating as stale")
			lastDate = nil
		}
	}

	if force || s.detector.ShouldUpdateDividends(lastDate, hasAny) {
		fetched, err := s.dividendFetcher.FetchDividends(ticker)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Dividend fetch failed, serving cached dividends")
		case len(fetched) == 0:
			s.log.Debug().Str("ticker", ticker).Msg("No dividends reported for stock")
		default:
			saved, err := s.dividendStore.Upsert(stockID, fetched)
			if err != nil {
				s.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to persist fetched dividends")
			} else if saved > 0 {
				updated = true
			}
		}
	}

	dividends, err := s.dividendStore.GetRecent(stockID)
	if err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to read cached dividends")
		dividends = nil
	}
	if dividends == nil {
		dividends = []stocks.Dividend{}
	}

	return dividends, updated
}

// refreshLatestQuote fetches and persists a single current-price point.
// When the provider is unavailable it falls back to the newest cached price
// from the last week; nil means no price is known at all.
func (s *OrchestrationService) refreshLatestQuote(stockID, ticker string) *float64 {
	quote, err := s.priceFetcher.FetchLatestQuote(ticker)
	if err != nil || quote == nil {
		if err != nil {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Latest quote fetch failed, falling back to cache")
		}
		cached, err := s.priceStore.GetRecent(stockID, 7)
		if err != nil || len(cached) == 0 {
			return nil
		}
		price := cached[len(cached)-1].Price
		return &price
	}

	if _, err := s.priceStore.Upsert(stockID, []stocks.PricePoint{*quote}); err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to persist latest quote")
	}

	price := quote.Price
	return &price
}
