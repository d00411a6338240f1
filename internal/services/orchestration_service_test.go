package services

import (
	"errors"
	"testing"
	"time"

	"github.com/aristath/fintracker/internal/modules/stocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock collaborators. Call counters let tests assert which branches ran.

type mockStockResolver struct {
	id    string
	err   error
	calls int
}

func (m *mockStockResolver) GetIDByTicker(ticker string) (string, error) {
	m.calls++
	return m.id, m.err
}

type mockPriceStore struct {
	lastDate      *time.Time
	lastDateErr   error
	recent        []stocks.PricePoint
	recentErr     error
	upsertErr     error
	upsertCalls   int
	upsertedBatch []stocks.PricePoint
}

func (m *mockPriceStore) GetMostRecentDate(stockID string) (*time.Time, error) {
	return m.lastDate, m.lastDateErr
}

func (m *mockPriceStore) GetRecent(stockID string, rangeDays int) ([]stocks.PricePoint, error) {
	return m.recent, m.recentErr
}

func (m *mockPriceStore) Upsert(stockID string, points []stocks.PricePoint) (int, error) {
	m.upsertCalls++
	m.upsertedBatch = points
	if m.upsertErr != nil {
		return 0, m.upsertErr
	}
	return len(points), nil
}

type mockDividendStore struct {
	hasAny      bool
	hasAnyErr   error
	lastDate    *time.Time
	lastDateErr error
	recent      []stocks.Dividend
	recentErr   error
	upsertErr   error
	upsertCalls int
}

func (m *mockDividendStore) HasAny(stockID string) (bool, error) {
	return m.hasAny, m.hasAnyErr
}

func (m *mockDividendStore) GetMostRecentDate(stockID string) (*time.Time, error) {
	return m.lastDate, m.lastDateErr
}

func (m *mockDividendStore) GetRecent(stockID string) ([]stocks.Dividend, error) {
	return m.recent, m.recentErr
}

func (m *mockDividendStore) Upsert(stockID string, dividends []stocks.Dividend) (int, error) {
	m.upsertCalls++
	if m.upsertErr != nil {
		return 0, m.upsertErr
	}
	return len(dividends), nil
}

type mockPriceFetcher struct {
	prices      []stocks.PricePoint
	pricesErr   error
	fetchCalls  int
	quote       *stocks.PricePoint
	quoteErr    error
	quoteCalls  int
	lastRange   string
	lastTickers []string
}

func (m *mockPriceFetcher) FetchPrices(ticker, rangeToken string) ([]stocks.PricePoint, error) {
	m.fetchCalls++
	m.lastRange = rangeToken
	m.lastTickers = append(m.lastTickers, ticker)
	return m.prices, m.pricesErr
}

func (m *mockPriceFetcher) FetchLatestQuote(ticker string) (*stocks.PricePoint, error) {
	m.quoteCalls++
	return m.quote, m.quoteErr
}

type mockDividendFetcher struct {
	dividends  []stocks.Dividend
	err        error
	fetchCalls int
}

func (m *mockDividendFetcher) FetchDividends(ticker string) ([]stocks.Dividend, error) {
	m.fetchCalls++
	return m.dividends, m.err
}

type orchestrationFixture struct {
	resolver        *mockStockResolver
	priceStore      *mockPriceStore
	dividendStore   *mockDividendStore
	priceFetcher    *mockPriceFetcher
	dividendFetcher *mockDividendFetcher
	svc             *OrchestrationService
}

func newOrchestrationFixture(now time.Time) *orchestrationFixture {
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	f := &orchestrationFixture{
		resolver:        &mockStockResolver{id: "stock-1"},
		priceStore:      &mockPriceStore{},
		dividendStore:   &mockDividendStore{},
		priceFetcher:    &mockPriceFetcher{},
		dividendFetcher: &mockDividendFetcher{},
	}

	detector := NewUpdateDetectionService(logger)
	detector.now = func() time.Time { return now }

	f.svc = NewOrchestrationService(
		f.resolver,
		f.priceStore,
		f.dividendStore,
		f.priceFetcher,
		f.dividendFetcher,
		detector,
		logger,
	)

	return f
}

// Wednesday afternoon, so the last trading day is the same date.
var testNow = time.Date(2024, 10, 23, 14, 0, 0, 0, time.UTC)

func TestUpdateStockOnView_EmptyTickerIsFatal(t *testing.T) {
	f := newOrchestrationFixture(testNow)

	_, err := f.svc.UpdateStockOnView("   ", "7d", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTicker)

	// Nothing downstream runs
	assert.Equal(t, 0, f.resolver.calls)
	assert.Equal(t, 0, f.priceFetcher.fetchCalls)
	assert.Equal(t, 0, f.dividendFetcher.fetchCalls)
}

func TestUpdateStockOnView_InvalidRangeIsFatal(t *testing.T) {
	f := newOrchestrationFixture(testNow)

	_, err := f.svc.UpdateStockOnView("PETR4", "2y", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.Equal(t, 0, f.resolver.calls, "range is validated before ticker resolution")
}

func TestUpdateStockOnView_UnknownTickerIsFatal(t *testing.T) {
	f := newOrchestrationFixture(testNow)
	f.resolver.err = stocks.ErrStockNotFound

	_, err := f.svc.UpdateStockOnView("NOPE3", "7d", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, stocks.ErrStockNotFound)
	assert.Equal(t, 0, f.priceFetcher.fetchCalls)
}

func TestUpdateStockOnView_FreshCacheSkipsFetches(t *testing.T) {
	f := newOrchestrationFixture(testNow)

	today := time.Date(2024, 10, 23, 0, 0, 0, 0, time.UTC)
	recentDividend := time.Date(2024, 10, 20, 0, 0, 0, 0, time.UTC)

	f.priceStore.lastDate = &today
	f.priceStore.recent = []stocks.PricePoint{{Date: "2024-10-23", Price: 10.5}}
	f.dividendStore.hasAny = true
	f.dividendStore.lastDate = &recentDividend
	f.dividendStore.recent = []stocks.Dividend{{PaymentDate: "2024-10-20", Value: 0.42}}

	view, err := f.svc.UpdateStockOnView("PETR4", "1m", false)
	require.NoError(t, err)

	assert.Equal(t, 0, f.priceFetcher.fetchCalls)
	assert.Equal(t, 0, f.dividendFetcher.fetchCalls)
	assert.False(t, view.PricesUpdated)
	assert.False(t, view.DividendsUpdated)
	assert.Len(t, view.Prices, 1)
	assert.Len(t, view.Dividends, 1)
	assert.Equal(t, "PETR4", view.Ticker)
}

func TestUpdateStockOnView_StaleCacheFetchesAndPersists(t *testing.T) {
	f := newOrchestrationFixture(testNow)

	f.priceFetcher.prices = []stocks.PricePoint{{Date: "2024-10-23", Price: 10.5}}
	f.dividendFetcher.dividends = []stocks.Dividend{{PaymentDate: "2024-10-15", Value: 0.42}}
	f.priceStore.recent = []stocks.PricePoint{{Date: "2024-10-23", Price: 10.5}}
	f.dividendStore.recent = []stocks.Dividend{{PaymentDate: "2024-10-15", Value: 0.42}}

	view, err := f.svc.UpdateStockOnView("petr4", "7d", false)
	require.NoError(t, err)

	assert.Equal(t, 1, f.priceFetcher.fetchCalls)
	assert.Equal(t, "7d", f.priceFetcher.lastRange)
	assert.Equal(t, []string{"PETR4"}, f.priceFetcher.lastTickers, "ticker is normalized before fetch")
	assert.Equal(t, 1, f.priceStore.upsertCalls)
	assert.Equal(t, 1, f.dividendFetcher.fetchCalls)
	assert.Equal(t, 1, f.dividendStore.upsertCalls)
	assert.True(t, view.PricesUpdated)
	assert.True(t, view.DividendsUpdated)
}

func TestUpdateStockOnView_PriceFetchFailureDoesNotBlockDividends(t *testing.T) {
	f := newOrchestrationFixture(testNow)

	f.priceFetcher.pricesErr = errors.New("provider down")
	f.priceStore.recent = []stocks.PricePoint{{Date: "2024-10-18", Price: 9.8}}
	f.dividendFetcher.dividends = []stocks.Dividend{{PaymentDate: "2024-10-15", Value: 0.42}}
	f.dividendStore.recent = []stocks.Dividend{{PaymentDate: "2024-10-15", Value: 0.42}}

	view, err := f.svc.UpdateStockOnView("PETR4", "7d", false)
	require.NoError(t, err, "provider failures are not fatal")

	assert.Equal(t, 0, f.priceStore.upsertCalls)
	assert.False(t, view.PricesUpdated)
	assert.Len(t, view.Prices, 1, "stale cached prices are still served")

	assert.Equal(t, 1, f.dividendFetcher.fetchCalls)
	assert.True(t, view.DividendsUpdated)
}

func TestUpdateStockOnView_DividendFetchFailureDoesNotBlockPrices(t *testing.T) {
	f := newOrchestrationFixture(testNow)

	f.priceFetcher.prices = []stocks.PricePoint{{Date: "2024-10-23", Price: 10.5}}
	f.priceStore.recent = []stocks.PricePoint{{Date: "2024-10-23", Price: 10.5}}
	f.dividendFetcher.err = errors.New("timeout")

	view, err := f.svc.UpdateStockOnView("PETR4", "7d", false)
	require.NoError(t, err)

	assert.True(t, view.PricesUpdated)
	assert.False(t, view.DividendsUpdated)
	assert.NotNil(t, view.Dividends)
	assert.Empty(t, view.Dividends)
}

func TestUpdateStockOnView_PersistFailureServesCache(t *testing.T) {
	f := newOrchestrationFixture(testNow)

	f.priceFetcher.prices = []stocks.PricePoint{{Date: "2024-10-23", Price: 10.5}}
	f.priceStore.upsertErr = errors.New("disk full")
	f.priceStore.recent = []stocks.PricePoint{{Date: "2024-10-18", Price: 9.8}}

	view, err := f.svc.UpdateStockOnView("PETR4", "7d", false)
	require.NoError(t, err)

	assert.False(t, view.PricesUpdated, "a failed write must not report an update")
	assert.Len(t, view.Prices, 1)
}

func TestUpdateStockOnView_EmptyFetchResultSkipsPersist(t *testing.T) {
	f := newOrchestrationFixture(testNow)

	f.priceFetcher.prices = []stocks.PricePoint{}
	f.dividendFetcher.dividends = []stocks.Dividend{}

	view, err := f.svc.UpdateStockOnView("PETR4", "7d", false)
	require.NoError(t, err)

	assert.Equal(t, 0, f.priceStore.upsertCalls)
	assert.Equal(t, 0, f.dividendStore.upsertCalls)
	assert.False(t, view.PricesUpdated)
	assert.False(t, view.DividendsUpdated)
}

func TestUpdateStockOnView_ForceBypassesFreshness(t *testing.T) {
	f := newOrchestrationFixture(testNow)

	// Fully fresh cache
	today := time.Date(2024, 10, 23, 0, 0, 0, 0, time.UTC)
	f.priceStore.lastDate = &today
	f.dividendStore.hasAny = true
	f.dividendStore.lastDate = &today

	f.priceFetcher.prices = []stocks.PricePoint{{Date: "2024-10-23", Price: 10.6}}
	f.dividendFetcher.dividends = []stocks.Dividend{{PaymentDate: "2024-10-15", Value: 0.42}}

	_, err := f.svc.UpdateStockOnView("PETR4", "7d", true)
	require.NoError(t, err)

	assert.Equal(t, 1, f.priceFetcher.fetchCalls)
	assert.Equal(t, 1, f.dividendFetcher.fetchCalls)
}

func TestUpdateStockOnView_FreshnessReadErrorFailsOpen(t *testing.T) {
	f := newOrchestrationFixture(testNow)

	f.priceStore.lastDateErr = errors.New("cache read failed")
	f.priceFetcher.prices = []stocks.PricePoint{{Date: "2024-10-23", Price: 10.5}}
	f.priceStore.recent = []stocks.PricePoint{{Date: "2024-10-23", Price: 10.5}}

	view, err := f.svc.UpdateStockOnView("PETR4", "7d", false)
	require.NoError(t, err)

	assert.Equal(t, 1, f.priceFetcher.fetchCalls, "unknown freshness must trigger a fetch")
	assert.True(t, view.PricesUpdated)
}

func TestForceRefreshEssentials_QuoteSuccess(t *testing.T) {
	f := newOrchestrationFixture(testNow)

	f.priceFetcher.quote = &stocks.PricePoint{Date: "2024-10-23", Price: 10.55}
	f.dividendFetcher.dividends = []stocks.Dividend{{PaymentDate: "2024-10-15", Value: 0.42}}
	f.dividendStore.recent = []stocks.Dividend{{PaymentDate: "2024-10-15", Value: 0.42}}

	data, err := f.svc.ForceRefreshEssentials("petr4")
	require.NoError(t, err)

	assert.Equal(t, "PETR4", data.Ticker)
	require.NotNil(t, data.CurrentPrice)
	assert.Equal(t, 10.55, *data.CurrentPrice)
	assert.Equal(t, 1, f.priceStore.upsertCalls, "latest quote is persisted")
	assert.Len(t, f.priceStore.upsertedBatch, 1)
	assert.Equal(t, 1, f.dividendFetcher.fetchCalls, "dividend refresh is forced")
	assert.Len(t, data.Dividends, 1)
	assert.Equal(t, 0, f.priceFetcher.fetchCalls, "no historical window fetch on the essentials path")
}

func TestForceRefreshEssentials_QuoteFailureFallsBackToCache(t *testing.T) {
	f := newOrchestrationFixture(testNow)

	f.priceFetcher.quoteErr = errors.New("provider down")
	f.priceStore.recent = []stocks.PricePoint{
		{Date: "2024-10-21", Price: 10.1},
		{Date: "2024-10-22", Price: 10.3},
	}

	data, err := f.svc.ForceRefreshEssentials("PETR4")
	require.NoError(t, err)

	require.NotNil(t, data.CurrentPrice)
	assert.Equal(t, 10.3, *data.CurrentPrice, "newest cached price wins")
	assert.Equal(t, 0, f.priceStore.upsertCalls)
}

func TestForceRefreshEssentials_NoPriceAnywhere(t *testing.T) {
	f := newOrchestrationFixture(testNow)

	f.priceFetcher.quoteErr = errors.New("provider down")

	data, err := f.svc.ForceRefreshEssentials("PETR4")
	require.NoError(t, err)
	assert.Nil(t, data.CurrentPrice)
}

func TestForceRefreshEssentials_EmptyTickerIsFatal(t *testing.T) {
	f := newOrchestrationFixture(testNow)

	_, err := f.svc.ForceRefreshEssentials("")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTicker)
	assert.Equal(t, 0, f.priceFetcher.quoteCalls)
}
