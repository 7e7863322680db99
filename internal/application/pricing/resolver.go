// Package pricing resolves authoritative tradable prices with a
// primary/fallback strategy.
package pricing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
	"github.com/Jenajyo/ibkr-trader/internal/ports"
)

// Compile-time interface check.
var _ ports.PriceResolver = (*Resolver)(nil)

// Resolver tries the live snapshot first and falls back to the most recent
// daily close. The fallback is transparent to callers: only when both
// sources fail does an error surface.
type Resolver struct {
	quotes  ports.QuoteSource
	history ports.HistorySource
}

// NewResolver wires the primary and fallback sources.
func NewResolver(quotes ports.QuoteSource, history ports.HistorySource) *Resolver {
	return &Resolver{quotes: quotes, history: history}
}

// Resolve returns a positive tradable price for the ticker or
// domain.ErrPriceUnavailable.
func (r *Resolver) Resolve(ctx context.Context, ticker string) (float64, error) {
	quote, err := r.quotes.Snapshot(ctx, ticker)
	if err == nil {
		if p := quote.Price(); p > 0 {
			return p, nil
		}
		err = fmt.Errorf("snapshot carried no positive price field")
	}

	slog.Warn("pricing: live quote failed, falling back to daily close", "ticker", ticker, "err", err)

	closePrice, herr := r.history.DailyClose(ctx, ticker)
	if herr != nil {
		slog.Warn("pricing: daily-close fallback failed", "ticker", ticker, "err", herr)
		return 0, fmt.Errorf("pricing.Resolve %s: %w", ticker, domain.ErrPriceUnavailable)
	}
	if closePrice <= 0 {
		return 0, fmt.Errorf("pricing.Resolve %s: %w", ticker, domain.ErrPriceUnavailable)
	}
	return closePrice, nil
}
