// Package ibkr implements the order gateway against the IBKR Client Portal
// gateway's REST and websocket APIs.
package ibkr

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
	"github.com/Jenajyo/ibkr-trader/internal/ports"
)

const (
	// The local gateway throttles at ~10 req/s per session; stay under it.
	requestsPerSec = 8

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Compile-time interface check.
var _ ports.Gateway = (*Client)(nil)

// Config carries the connection parameters supplied externally.
type Config struct {
	BaseURL            string
	AccountID          string
	AckTimeout         time.Duration
	PollInterval       time.Duration
	InsecureSkipVerify bool
}

// Client is the HTTP/websocket client for one Client Portal session. It owns
// the broker connection for the lifetime of a run; Connect and Close bracket
// every use.
type Client struct {
	http    *http.Client
	baseURL string
	account string
	limiter *rate.Limiter

	ackTimeout   time.Duration
	pollInterval time.Duration

	stream        *orderStream
	keepaliveStop chan struct{}

	mu     sync.Mutex
	conids map[string]domain.Contract // qualified-contract cache per run
}

// New creates a Client for the given gateway endpoint. The session is not
// established until Connect.
func New(cfg Config) *Client {
	transport := http.DefaultTransport
	if cfg.InsecureSkipVerify {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &Client{
		http:         &http.Client{Timeout: 10 * time.Second, Transport: transport},
		baseURL:      cfg.BaseURL,
		account:      cfg.AccountID,
		limiter:      rate.NewLimiter(requestsPerSec, 10),
		ackTimeout:   cfg.AckTimeout,
		pollInterval: cfg.PollInterval,
		conids:       make(map[string]domain.Contract),
	}
}

// get performs a rate-limited GET with retries.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// post performs a rate-limited POST JSON with retries.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		var r io.Reader
		if body != nil {
			b, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("marshal body: %w", err)
			}
			r = bytes.NewReader(b)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, r)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// del performs a rate-limited DELETE with retries.
func (c *Client) del(ctx context.Context, path string, out any) error {
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// doWithRetry runs the request with exponential backoff on transient
// failures. 4xx responses are permanent and surface immediately.
func (c *Client) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("gateway error %d after %d retries", resp.StatusCode, maxRetries)
			}
			slog.Warn("ibkr: transient gateway error, retrying", "status", resp.StatusCode, "attempt", attempt+1)
			c.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("gateway error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// backoff waits with exponential backoff, respecting the context.
func (c *Client) backoff(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
