// Package brapi provides historical and current price fetching from brapi.dev.
package brapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/fintracker/internal/modules/market_hours"
	"github.com/aristath/fintracker/internal/modules/stocks"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// rangeAliases normalizes internal range tokens to brapi's token set.
// brapi only understands "7d", "1mo" and "3mo" for the windows we use.
var rangeAliases = map[string]string{
	"1m": "1mo",
	"3m": "3mo",
}

// Client for the brapi.dev quote API
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
	log     zerolog.Logger
}

// NewClient creates a new brapi client.
// The free tier allows roughly one request per second, so requests are
// locally throttled rather than letting the API answer 429.
func NewClient(baseURL, token string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(1), 2),
		now:     time.Now,
		log:     log.With().Str("client", "brapi").Logger(),
	}
}

// quoteResponse mirrors the subset of the brapi quote payload we consume.
type quoteResponse struct {
	Results []quoteResult `json:"results"`
}

type quoteResult struct {
	Symbol                     string       `json:"symbol"`
	RegularMarketPrice         *float64     `json:"regularMarketPrice"`
	RegularMarketPreviousClose *float64     `json:"regularMarketPreviousClose"`
	HistoricalDataPrice        []priceEntry `json:"historicalDataPrice"`
}

type priceEntry struct {
	Date  int64    `json:"date"`
	Close *float64 `json:"close"`
}

// FetchPrices fetches daily closing prices for the requested trailing window.
// Points with no close value (halted sessions) are dropped. The result is
// ordered as delivered by the API, oldest first.
func (c *Client) FetchPrices(ticker, rangeToken string) ([]stocks.PricePoint, error) {
	result, err := c.fetchQuote(ticker, rangeToken)
	if err != nil {
		return nil, err
	}

	prices := make([]stocks.PricePoint, 0, len(result.HistoricalDataPrice))
	for _, entry := range result.HistoricalDataPrice {
		if entry.Close == nil {
			continue
		}
		prices = append(prices, stocks.PricePoint{
			Date:  time.Unix(entry.Date, 0).UTC().Format("2006-01-02"),
			Price: *entry.Close,
		})
	}

	c.log.Debug().
		Str("ticker", ticker).
		Str("range", rangeToken).
		Int("points", len(prices)).
		Msg("Fetched price history")

	return prices, nil
}

// FetchLatestQuote fetches only the current market price, dated to the most
// recent trading day. Falls back to the previous close when the market price
// is absent (pre-open). Returns nil when the API has no price at all.
func (c *Client) FetchLatestQuote(ticker string) (*stocks.PricePoint, error) {
	result, err := c.fetchQuote(ticker, "")
	if err != nil {
		return nil, err
	}

	price := result.RegularMarketPrice
	if price == nil {
		price = result.RegularMarketPreviousClose
	}
	if price == nil {
		c.log.Warn().Str("ticker", ticker).Msg("Quote carries no price")
		return nil, nil
	}

	return &stocks.PricePoint{
		Date:  market_hours.LastTradingDay(c.now()).Format("2006-01-02"),
		Price: *price,
	}, nil
}

// fetchQuote performs a single quote request. An empty rangeToken omits the
// historical window and returns only the current quote.
func (c *Client) fetchQuote(ticker, rangeToken string) (*quoteResult, error) {
	if c.token == "" {
		return nil, fmt.Errorf("brapi token is not configured")
	}

	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	params := url.Values{}
	params.Set("token", c.token)
	rangeToken = strings.ToLower(strings.TrimSpace(rangeToken))
	if rangeToken != "" {
		if alias, ok := rangeAliases[rangeToken]; ok {
			rangeToken = alias
		}
		params.Set("range", rangeToken)
		params.Set("interval", "1d")
	}

	requestURL := fmt.Sprintf("%s/quote/%s?%s", c.baseURL, url.PathEscape(ticker), params.Encode())

	resp, err := c.client.Get(requestURL)
	if err != nil {
		return nil, fmt.Errorf("brapi request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode, ticker); err != nil {
		return nil, err
	}

	var payload quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse brapi response: %w", err)
	}

	if len(payload.Results) == 0 {
		return nil, fmt.Errorf("brapi returned no results for %s", ticker)
	}

	return &payload.Results[0], nil
}

// checkStatus maps brapi HTTP status codes to descriptive errors.
func checkStatus(status int, ticker string) error {
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return fmt.Errorf("brapi token is invalid")
	case http.StatusPaymentRequired:
		return fmt.Errorf("brapi quota exhausted")
	case http.StatusForbidden:
		return fmt.Errorf("brapi plan does not allow this request")
	case http.StatusNotFound:
		return fmt.Errorf("ticker %s not found on brapi", ticker)
	case http.StatusTooManyRequests:
		return fmt.Errorf("brapi rate limit exceeded")
	default:
		return fmt.Errorf("brapi returned status %d", status)
	}
}
