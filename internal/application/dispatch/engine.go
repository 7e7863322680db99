// Package dispatch routes pending order intents to the broker gateway.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
	"github.com/Jenajyo/ibkr-trader/internal/metrics"
	"github.com/Jenajyo/ibkr-trader/internal/ports"
)

// Row statuses written back to the intent table.
const (
	statusMarketPlaced   = "MKT Order Placed"
	statusTrailAttached  = "Order Placed with Limit Attached"
	statusLimitPlaced    = "Limit Order Placed"
	statusLimitWithTrail = "LMT with Trailing Limit Attached"
	statusLimitCancelled = "Limit Order Cancelled"
	statusClosed         = "Closed"
)

// Engine is the dispatch state machine. Handlers return an updated copy of
// their row; the engine merges results and isolates per-row failures.
type Engine struct {
	gateway     ports.Gateway
	prices      ports.PriceResolver
	ledger      ports.Ledger
	limitOffset float64
}

// New wires a dispatch engine. limitOffset <= 0 selects the default.
func New(gateway ports.Gateway, prices ports.PriceResolver, ledger ports.Ledger, limitOffset float64) *Engine {
	if limitOffset <= 0 {
		limitOffset = domain.DefaultLimitOffset
	}
	return &Engine{gateway: gateway, prices: prices, ledger: ledger, limitOffset: limitOffset}
}

// ProcessTable dispatches every TRANSMIT row of one table and returns the
// full row set, mutated rows merged in. Rows not flagged TRANSMIT are
// returned untouched. Row failures are logged and skipped; only a
// connection-level failure aborts the batch and surfaces as the error.
func (e *Engine) ProcessTable(ctx context.Context, tableName string, rows []domain.OrderIntent) ([]domain.OrderIntent, error) {
	side, ok := domain.SideForTable(tableName)
	if !ok {
		return rows, fmt.Errorf("dispatch.ProcessTable: table %q has no BUY/SELL prefix", tableName)
	}

	// Tickers already cancel-handled in this batch. Scoped to this call.
	cancelled := make(map[string]struct{})

	out := make([]domain.OrderIntent, len(rows))
	copy(out, rows)

	for i, row := range rows {
		if !row.Execution.Transmit() {
			continue
		}

		updated, err := e.dispatchRow(ctx, row, side, cancelled)
		if err != nil {
			if domain.IsConnectionError(err) {
				return out, err
			}
			metrics.RowsFailed.WithLabelValues(tableName).Inc()
			slog.Error("dispatch: row failed", "table", tableName, "ticker", row.Ticker, "err", err)
			continue
		}
		out[i] = updated
	}
	return out, nil
}

// dispatchRow routes one row to its handler by order-type tag.
func (e *Engine) dispatchRow(ctx context.Context, row domain.OrderIntent, side domain.Side, cancelled map[string]struct{}) (domain.OrderIntent, error) {
	orderType, err := domain.ParseOrderType(row.OrderType)
	if err != nil {
		return row, err
	}

	switch orderType {
	case domain.OrderTypeMarket:
		return e.handleMarket(ctx, row, side, false)
	case domain.OrderTypeMarketTrail:
		return e.handleMarket(ctx, row, side, true)
	case domain.OrderTypeLimitTrail:
		return e.handleLimitTrail(ctx, row, side)
	case domain.OrderTypeAttachTrail:
		return e.handleAttachTrail(ctx, row, side)
	case domain.OrderTypeRemoveLimit:
		return e.handleRemoveLimit(ctx, row, cancelled)
	case domain.OrderTypeClose:
		return e.handleClose(ctx, row, side)
	}
	return row, fmt.Errorf("dispatch: no handler for %s", orderType)
}

// handleMarket places a market order, optionally attaching a protective
// trailing stop in the opposite side.
func (e *Engine) handleMarket(ctx context.Context, row domain.OrderIntent, side domain.Side, attachTrail bool) (domain.OrderIntent, error) {
	price, err := e.prices.Resolve(ctx, row.Ticker)
	if err != nil {
		return row, err
	}

	qty, err := e.rowQuantityAt(row, price)
	if err != nil {
		return row, err
	}

	contract, err := e.gateway.ResolveContract(ctx, row.Ticker)
	if err != nil {
		return row, err
	}

	sub, err := e.gateway.SubmitMarket(ctx, contract, side, qty)
	if err != nil {
		return row, err
	}
	if !sub.Accepted() {
		metrics.SubmissionsRejected.WithLabelValues(string(domain.OrderTypeMarket)).Inc()
		return row, fmt.Errorf("market order %s: status %s: %w", row.Ticker, sub.Status, domain.ErrSubmissionRejected)
	}
	metrics.OrdersSubmitted.WithLabelValues(string(domain.OrderTypeMarket), string(side)).Inc()

	row.Quantity = ptr(qty)
	row.Amount = ptr(math.Ceil(qty * price))
	row.Status = statusMarketPlaced
	row.Execution = domain.ExecCleared

	if attachTrail {
		spec := domain.NewTrailingStopSpec(side, price, trailPercent(row))
		tsub, terr := e.gateway.SubmitTrailingStop(ctx, contract, spec, qty)
		if terr == nil && tsub.Accepted() {
			metrics.OrdersSubmitted.WithLabelValues("TRAIL", string(spec.Action)).Inc()
			row.Status = statusTrailAttached
		} else {
			slog.Warn("dispatch: trailing leg not accepted", "ticker", row.Ticker, "err", terr)
		}
	}

	e.appendLedger(ctx, row.Ticker, side, qty, price)
	slog.Info("dispatch: market order placed",
		"ticker", row.Ticker, "side", side, "qty", qty, "price", fmt.Sprintf("%.2f", price), "trail", attachTrail)
	return row, nil
}

// handleLimitTrail places a limit entry a fixed offset above the market and
// attaches a trailing stop at the limit price.
func (e *Engine) handleLimitTrail(ctx context.Context, row domain.OrderIntent, side domain.Side) (domain.OrderIntent, error) {
	contract, err := e.gateway.ResolveContract(ctx, row.Ticker)
	if err != nil {
		return row, err
	}

	price, err := e.prices.Resolve(ctx, row.Ticker)
	if err != nil {
		return row, err
	}
	limitPrice := math.Round((price+e.limitOffset)*100) / 100

	qty, err := e.rowQuantityAt(row, limitPrice)
	if err != nil {
		return row, err
	}

	sub, err := e.gateway.SubmitLimit(ctx, contract, side, qty, limitPrice)
	if err != nil {
		return row, err
	}
	if !sub.Accepted() {
		metrics.SubmissionsRejected.WithLabelValues(string(domain.OrderTypeLimitTrail)).Inc()
		return row, fmt.Errorf("limit order %s: status %s: %w", row.Ticker, sub.Status, domain.ErrSubmissionRejected)
	}
	metrics.OrdersSubmitted.WithLabelValues(string(domain.OrderTypeLimitTrail), string(side)).Inc()

	row.Quantity = ptr(qty)
	row.Amount = ptr(math.Ceil(qty * limitPrice))
	row.Status = statusLimitPlaced
	row.Execution = domain.ExecCleared

	spec := domain.NewTrailingStopSpec(side, limitPrice, trailPercent(row))
	tsub, terr := e.gateway.SubmitTrailingStop(ctx, contract, spec, qty)
	if terr == nil && tsub.Accepted() {
		metrics.OrdersSubmitted.WithLabelValues("TRAIL", string(spec.Action)).Inc()
		row.Status = statusLimitWithTrail
	} else {
		slog.Warn("dispatch: trailing leg not accepted after limit entry", "ticker", row.Ticker, "err", terr)
	}

	e.appendLedger(ctx, row.Ticker, side, qty, limitPrice)
	slog.Info("dispatch: limit order placed",
		"ticker", row.Ticker, "side", side, "qty", qty, "limit", fmt.Sprintf("%.2f", limitPrice))
	return row, nil
}

// handleAttachTrail replaces resting orders with a fresh protective
// trailing stop sized to the declared or live holding quantity.
func (e *Engine) handleAttachTrail(ctx context.Context, row domain.OrderIntent, side domain.Side) (domain.OrderIntent, error) {
	contract, err := e.gateway.ResolveContract(ctx, row.Ticker)
	if err != nil {
		return row, err
	}

	if _, err := e.gateway.CancelOrders(ctx, row.Ticker); err != nil {
		return row, err
	}

	price, err := e.prices.Resolve(ctx, row.Ticker)
	if err != nil {
		return row, err
	}

	qty := row.QuantityValue()
	if !row.HasQuantity() {
		qty, err = e.gateway.RemainingQuantity(ctx, row.Ticker)
		if err != nil {
			return row, err
		}
	}
	if qty == 0 {
		return row, fmt.Errorf("attach trail %s: no holding to protect", row.Ticker)
	}

	spec := domain.NewTrailingStopSpec(side, price, trailPercent(row))
	sub, err := e.gateway.SubmitTrailingStop(ctx, contract, spec, math.Abs(qty))
	if err != nil {
		return row, err
	}
	if !sub.Accepted() {
		metrics.SubmissionsRejected.WithLabelValues(string(domain.OrderTypeAttachTrail)).Inc()
		return row, fmt.Errorf("trailing stop %s: status %s: %w", row.Ticker, sub.Status, domain.ErrSubmissionRejected)
	}
	metrics.OrdersSubmitted.WithLabelValues("TRAIL", string(spec.Action)).Inc()

	row.Status = statusTrailAttached
	row.Execution = domain.ExecCleared
	slog.Info("dispatch: trailing stop attached",
		"ticker", row.Ticker, "qty", qty, "stop", fmt.Sprintf("%.2f", spec.TrailStopPrice))
	return row, nil
}

// handleRemoveLimit cancels resting limit/trailing orders for the ticker,
// at most once per batch. The status only changes when something was
// actually cancelled; otherwise the row keeps its TRANSMIT flag.
func (e *Engine) handleRemoveLimit(ctx context.Context, row domain.OrderIntent, cancelled map[string]struct{}) (domain.OrderIntent, error) {
	// Only rows without a declared quantity qualify for removal.
	if row.HasQuantity() {
		return row, nil
	}
	if _, done := cancelled[row.Ticker]; done {
		return row, nil
	}

	n, err := e.gateway.CancelOrders(ctx, row.Ticker)
	if err != nil {
		return row, err
	}
	cancelled[row.Ticker] = struct{}{}
	metrics.CancelsIssued.Add(float64(n))

	if n == 0 {
		slog.Info("dispatch: no active limit orders to remove", "ticker", row.Ticker)
		return row, nil
	}

	row.Status = statusLimitCancelled
	row.Execution = domain.ExecCleared
	slog.Info("dispatch: limit orders cancelled", "ticker", row.Ticker, "count", n)
	return row, nil
}

// handleClose flattens the position with a reversed-side market order and
// records the post-trade remaining quantity.
func (e *Engine) handleClose(ctx context.Context, row domain.OrderIntent, side domain.Side) (domain.OrderIntent, error) {
	contract, err := e.gateway.ResolveContract(ctx, row.Ticker)
	if err != nil {
		return row, err
	}

	if _, err := e.gateway.CancelOrders(ctx, row.Ticker); err != nil {
		return row, err
	}

	qty := row.QuantityValue()
	if !row.HasQuantity() {
		qty, err = e.gateway.RemainingQuantity(ctx, row.Ticker)
		if err != nil {
			return row, err
		}
	}
	if qty == 0 {
		return row, fmt.Errorf("close %s: nothing to close", row.Ticker)
	}

	reversed := side.Opposite()
	sub, err := e.gateway.SubmitMarket(ctx, contract, reversed, math.Abs(qty))
	if err != nil {
		return row, err
	}
	if !sub.Accepted() {
		metrics.SubmissionsRejected.WithLabelValues(string(domain.OrderTypeClose)).Inc()
		return row, fmt.Errorf("close %s: status %s: %w", row.Ticker, sub.Status, domain.ErrSubmissionRejected)
	}
	metrics.OrdersSubmitted.WithLabelValues(string(domain.OrderTypeClose), string(reversed)).Inc()

	remaining, err := e.gateway.RemainingQuantity(ctx, row.Ticker)
	if err != nil {
		slog.Warn("dispatch: could not read remaining quantity after close", "ticker", row.Ticker, "err", err)
		remaining = 0
	}
	if remaining == 0 {
		row.Quantity = nil
	} else {
		row.Quantity = ptr(remaining)
	}
	row.Status = statusClosed
	row.Execution = domain.ExecCleared

	// Ledger the close at the post-trade price; the trade itself already
	// happened, so a missing price only costs the ledger line.
	if finalPrice, perr := e.prices.Resolve(ctx, row.Ticker); perr == nil {
		e.appendLedger(ctx, row.Ticker, reversed, math.Abs(qty), finalPrice)
	} else {
		slog.Warn("dispatch: no post-trade price for ledger", "ticker", row.Ticker, "err", perr)
	}

	slog.Info("dispatch: position closed", "ticker", row.Ticker, "qty", qty, "remaining", remaining)
	return row, nil
}

// rowQuantityAt computes the share count from the target notional when the
// row declares none: ceil(amount / price).
func (e *Engine) rowQuantityAt(row domain.OrderIntent, price float64) (float64, error) {
	if row.HasQuantity() {
		return row.QuantityValue(), nil
	}
	if row.Amount == nil || *row.Amount <= 0 {
		return 0, fmt.Errorf("row %s: neither quantity nor amount set", row.Ticker)
	}
	if price <= 0 {
		return 0, fmt.Errorf("row %s: no positive price to size against", row.Ticker)
	}
	return math.Ceil(*row.Amount / price), nil
}

func (e *Engine) appendLedger(ctx context.Context, ticker string, action domain.Side, qty, price float64) {
	entry := domain.NewLedgerEntry(ticker, action, qty, price)
	if err := e.ledger.Append(ctx, entry); err != nil {
		slog.Warn("dispatch: ledger append failed", "ticker", ticker, "err", err)
	}
}

func trailPercent(row domain.OrderIntent) float64 {
	if row.TrailPercent > 0 {
		return row.TrailPercent
	}
	return domain.DefaultTrailPercent
}

func ptr(v float64) *float64 { return &v }
