// Package yahoo provides dividend history fetching from the Yahoo Finance
// chart API.
package yahoo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aristath/fintracker/internal/modules/stocks"
	"github.com/rs/zerolog"
)

// maxDividends caps how many payments a fetch returns. Matches the read
// limit of the dividend cache.
const maxDividends = 12

// Client for the Yahoo Finance chart API
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// chartResponse mirrors the subset of the chart payload we consume.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Events struct {
				Dividends map[string]struct {
					Amount float64 `json:"amount"`
					Date   int64   `json:"date"`
				} `json:"dividends"`
			} `json:"events"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchDividends fetches the dividend history for a B3 ticker. Yahoo lists
// B3 securities under the .SA suffix, which is appended automatically.
// An empty result is a valid answer: many stocks never pay dividends.
// Only the newest maxDividends payments are returned, oldest first.
func (c *Client) FetchDividends(ticker string) ([]stocks.Dividend, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	if !strings.HasSuffix(ticker, ".SA") {
		ticker += ".SA"
	}

	params := url.Values{}
	params.Set("range", "10y")
	params.Set("interval", "1mo")
	params.Set("events", "div")

	requestURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(ticker), params.Encode())

	req, err := http.NewRequest(http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	// Yahoo rejects requests without a browser-like user agent
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; fintracker/1.0)")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("ticker %s not found on yahoo", ticker)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo returned status %d", resp.StatusCode)
	}

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse yahoo response: %w", err)
	}

	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error %s: %s", payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo returned no chart data for %s", ticker)
	}

	events := payload.Chart.Result[0].Events.Dividends
	dividends := make([]stocks.Dividend, 0, len(events))
	for _, event := range events {
		if event.Amount <= 0 {
			continue
		}
		dividends = append(dividends, stocks.Dividend{
			PaymentDate: time.Unix(event.Date, 0).UTC().Format("2006-01-02"),
			Value:       event.Amount,
		})
	}

	sort.Slice(dividends, func(i, j int) bool {
		return dividends[i].PaymentDate < dividends[j].PaymentDate
	})
	if len(dividends) > maxDividends {
		dividends = dividends[len(dividends)-maxDividends:]
	}

	c.log.Debug().
		Str("ticker", ticker).
		Int("dividends", len(dividends)).
		Msg("Fetched dividend history")

	return dividends, nil
}
