package ibkr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
)

// Connect validates the gateway session and opens the order-status stream.
// A failure here is fatal to the run.
func (c *Client) Connect(ctx context.Context) error {
	var status authStatus
	if err := c.post(ctx, "/iserver/auth/status", nil, &status); err != nil {
		return &domain.ConnectionError{Op: "auth status", Err: err}
	}
	if !status.Authenticated || !status.Connected {
		return &domain.ConnectionError{
			Op:  "auth status",
			Err: fmt.Errorf("session not ready (authenticated=%v connected=%v competing=%v)", status.Authenticated, status.Connected, status.Competing),
		}
	}

	// The stream only accelerates ack waits; REST polling covers for it.
	stream, err := dialOrderStream(ctx, c.baseURL, c.http)
	if err != nil {
		slog.Warn("ibkr: order-status stream unavailable, falling back to polling", "err", err)
	} else {
		c.stream = stream
	}

	c.keepaliveStop = make(chan struct{})
	go c.keepalive()

	slog.Info("ibkr: session established", "account", c.account)
	return nil
}

// keepalive tickles the gateway until Close. Idle Client Portal sessions
// expire after a few minutes.
func (c *Client) keepalive() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.keepaliveStop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := c.Tickle(ctx); err != nil {
				slog.Warn("ibkr: session tickle failed", "err", err)
			}
			cancel()
		}
	}
}

// Tickle keeps the session alive. The Client Portal gateway expires idle
// sessions after a few minutes.
func (c *Client) Tickle(ctx context.Context) error {
	if err := c.post(ctx, "/tickle", nil, nil); err != nil {
		return &domain.ConnectionError{Op: "tickle", Err: err}
	}
	return nil
}

// Close releases the session. It runs in the guaranteed-cleanup path of
// every run, success or failure.
func (c *Client) Close(ctx context.Context) error {
	if c.keepaliveStop != nil {
		close(c.keepaliveStop)
		c.keepaliveStop = nil
	}
	if c.stream != nil {
		c.stream.close()
		c.stream = nil
	}
	if err := c.post(ctx, "/logout", nil, nil); err != nil {
		return fmt.Errorf("ibkr.Close: logout: %w", err)
	}
	slog.Info("ibkr: session released")
	return nil
}
