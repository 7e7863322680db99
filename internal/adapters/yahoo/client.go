// Package yahoo provides the delayed historical-close price fallback.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/Jenajyo/ibkr-trader/internal/ports"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Unauthenticated chart requests are throttled hard; stay polite.
const requestsPerSec = 2

// Compile-time interface check.
var _ ports.HistorySource = (*Client)(nil)

// Client fetches daily closes from the public chart API.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewClient creates a Client. An empty baseURL selects the production
// endpoint; tests point it at a local server.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		limiter: rate.NewLimiter(requestsPerSec, 2),
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DailyClose returns the most recent daily close for the ticker.
func (c *Client) DailyClose(ctx context.Context, ticker string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("yahoo.DailyClose: rate limiter: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=5d&interval=1d", c.baseURL, url.PathEscape(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("yahoo.DailyClose %s: %w", ticker, err)
	}
	// The chart API rejects the Go default agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ibkr-trader)")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("yahoo.DailyClose %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("yahoo.DailyClose %s: status %d", ticker, resp.StatusCode)
	}

	var out chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("yahoo.DailyClose %s: decode: %w", ticker, err)
	}
	if out.Chart.Error != nil {
		return 0, fmt.Errorf("yahoo.DailyClose %s: %s", ticker, out.Chart.Error.Description)
	}
	if len(out.Chart.Result) == 0 || len(out.Chart.Result[0].Indicators.Quote) == 0 {
		return 0, fmt.Errorf("yahoo.DailyClose %s: empty chart", ticker)
	}

	closes := out.Chart.Result[0].Indicators.Quote[0].Close
	for i := len(closes) - 1; i >= 0; i-- {
		if closes[i] != nil && *closes[i] > 0 {
			return *closes[i], nil
		}
	}
	return 0, fmt.Errorf("yahoo.DailyClose %s: no usable close", ticker)
}
