package ports

import (
	"context"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
)

// QuoteSource is the primary, live source of tradable prices.
type QuoteSource interface {
	Snapshot(ctx context.Context, ticker string) (domain.Quote, error)
}

// HistorySource is the delayed fallback: the most recent daily close.
type HistorySource interface {
	DailyClose(ctx context.Context, ticker string) (float64, error)
}

// PriceResolver yields an authoritative tradable price for a ticker.
type PriceResolver interface {
	Resolve(ctx context.Context, ticker string) (float64, error)
}
