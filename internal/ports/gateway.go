package ports

import (
	"context"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
)

// Gateway wraps the broker session. All submit calls are synchronous: they
// block until the broker acknowledges or the gateway timeout elapses, then
// return the terminal-so-far status. There is no guarantee the order later
// fills.
type Gateway interface {
	// ResolveContract qualifies a ticker (including dotted class shares)
	// into a tradable instrument reference.
	ResolveContract(ctx context.Context, ticker string) (domain.Contract, error)

	// Snapshot returns the current market snapshot for a ticker.
	Snapshot(ctx context.Context, ticker string) (domain.Quote, error)

	// SubmitMarket places a GTC market order.
	SubmitMarket(ctx context.Context, c domain.Contract, side domain.Side, qty float64) (domain.OrderSubmission, error)

	// SubmitLimit places a GTC limit order at the given price.
	SubmitLimit(ctx context.Context, c domain.Contract, side domain.Side, qty, limitPrice float64) (domain.OrderSubmission, error)

	// SubmitTrailingStop places a protective trailing stop-limit order.
	SubmitTrailingStop(ctx context.Context, c domain.Contract, spec domain.TrailingStopSpec, qty float64) (domain.OrderSubmission, error)

	// CancelOrders cancels resting limit and trailing-stop orders for the
	// ticker and returns how many cancels were issued. No matching order is
	// a no-op success with count 0.
	CancelOrders(ctx context.Context, ticker string) (int, error)

	// CancelAll cancels every open order on the account.
	CancelAll(ctx context.Context) error

	// OpenOrders returns the account's resting orders.
	OpenOrders(ctx context.Context) ([]domain.OpenOrder, error)

	// Positions returns the current stock holdings.
	Positions(ctx context.Context) ([]domain.Position, error)

	// RemainingQuantity returns the live holding for a ticker, 0 when no
	// open stock position exists.
	RemainingQuantity(ctx context.Context, ticker string) (float64, error)

	// TrailPercent returns the percent of an active trailing-stop order
	// protecting the ticker, and whether one exists.
	TrailPercent(ctx context.Context, ticker string) (float64, bool, error)
}
