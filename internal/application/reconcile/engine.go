// Package reconcile aligns the intent tables with the broker's actual
// holdings and makes sure every open position carries a protective
// trailing stop.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
	"github.com/Jenajyo/ibkr-trader/internal/metrics"
	"github.com/Jenajyo/ibkr-trader/internal/ports"
)

// Placeholder values written into a live-mode row whose holding is gone.
// The row survives as a template for the next manual entry.
const (
	placeholderAmount = 2000.0
	statusOpen        = "Open"
)

// Engine rebuilds the intent tables from the brokerage account state.
type Engine struct {
	gateway   ports.Gateway
	prices    ports.PriceResolver
	store     ports.TableStore
	mode      domain.TradingMode
	buyTable  string
	sellTable string
	trailPct  float64
}

// New wires a reconcile engine. trailPct is the default trail applied to
// unprotected holdings; <= 0 selects 5 percent.
func New(gateway ports.Gateway, prices ports.PriceResolver, store ports.TableStore, mode domain.TradingMode, buyTable, sellTable string, trailPct float64) *Engine {
	if trailPct <= 0 {
		trailPct = 5.0
	}
	return &Engine{
		gateway:   gateway,
		prices:    prices,
		store:     store,
		mode:      mode,
		buyTable:  buyTable,
		sellTable: sellTable,
		trailPct:  trailPct,
	}
}

// Run reconciles both intent tables against the account's stock holdings.
// Long positions belong to the buy table, short positions to the sell
// table. Per-symbol failures are logged and skipped; the tables are still
// written with whatever was reconciled.
func (e *Engine) Run(ctx context.Context) error {
	positions, err := e.gateway.Positions(ctx)
	if err != nil {
		return fmt.Errorf("reconcile.Run: read positions: %w", err)
	}

	longs := make(map[string]domain.Position)
	shorts := make(map[string]domain.Position)
	for _, p := range positions {
		if p.SecType != "STK" || p.Quantity == 0 {
			continue
		}
		if p.Quantity > 0 {
			longs[p.Ticker] = p
		} else {
			shorts[p.Ticker] = p
		}
	}

	if err := e.reconcileTable(ctx, e.buyTable, domain.SideBuy, longs); err != nil {
		return err
	}
	if err := e.reconcileTable(ctx, e.sellTable, domain.SideSell, shorts); err != nil {
		return err
	}

	metrics.ReconcileRuns.Inc()
	slog.Info("reconcile: run complete", "longs", len(longs), "shorts", len(shorts), "mode", e.mode)
	return nil
}

// reconcileTable refreshes one table's rows against its side of the book
// and appends rows for holdings the table does not know about.
func (e *Engine) reconcileTable(ctx context.Context, tableName string, side domain.Side, held map[string]domain.Position) error {
	rows, err := e.store.ReadTable(ctx, tableName)
	if err != nil {
		return fmt.Errorf("reconcile.reconcileTable: read %s: %w", tableName, err)
	}

	seen := make(map[string]struct{})
	out := make([]domain.OrderIntent, 0, len(rows))

	for _, row := range rows {
		pos, ok := held[row.Ticker]
		if !ok {
			if e.mode == domain.ModePaper {
				slog.Info("reconcile: dropping row without holding", "table", tableName, "ticker", row.Ticker)
				continue
			}
			out = append(out, resetRow(row, e.trailPct))
			continue
		}
		seen[row.Ticker] = struct{}{}

		refreshed, rerr := e.refreshRow(ctx, row, side, pos)
		if rerr != nil {
			if domain.IsConnectionError(rerr) {
				return rerr
			}
			slog.Error("reconcile: symbol failed", "table", tableName, "ticker", row.Ticker, "err", rerr)
			out = append(out, row)
			continue
		}
		out = append(out, refreshed)
	}

	// Holdings the table never mentioned get a fresh row.
	for ticker, pos := range held {
		if _, ok := seen[ticker]; ok {
			continue
		}
		row := domain.OrderIntent{Ticker: ticker}
		refreshed, rerr := e.refreshRow(ctx, row, side, pos)
		if rerr != nil {
			if domain.IsConnectionError(rerr) {
				return rerr
			}
			slog.Error("reconcile: new holding failed", "table", tableName, "ticker", ticker, "err", rerr)
			continue
		}
		slog.Info("reconcile: adopted untracked holding", "table", tableName, "ticker", ticker, "qty", pos.Quantity)
		out = append(out, refreshed)
	}

	if err := e.store.WriteTable(ctx, tableName, out); err != nil {
		return fmt.Errorf("reconcile.reconcileTable: write %s: %w", tableName, err)
	}
	return nil
}

// refreshRow brings one held row up to date: live price, notional, share
// count, and a protective trailing stop when none is resting.
func (e *Engine) refreshRow(ctx context.Context, row domain.OrderIntent, side domain.Side, pos domain.Position) (domain.OrderIntent, error) {
	price, err := e.prices.Resolve(ctx, row.Ticker)
	if err != nil {
		return row, err
	}

	pct, protected, err := e.gateway.TrailPercent(ctx, row.Ticker)
	if err != nil {
		return row, err
	}
	if !protected {
		contract, cerr := e.gateway.ResolveContract(ctx, row.Ticker)
		if cerr != nil {
			return row, cerr
		}
		spec := domain.NewTrailingStopSpec(side, price, e.trailPct)
		sub, serr := e.gateway.SubmitTrailingStop(ctx, contract, spec, math.Abs(pos.Quantity))
		if serr != nil {
			return row, serr
		}
		if !sub.Accepted() {
			return row, fmt.Errorf("protective trail %s: status %s: %w", row.Ticker, sub.Status, domain.ErrSubmissionRejected)
		}
		metrics.OrdersSubmitted.WithLabelValues("TRAIL", string(spec.Action)).Inc()
		pct = e.trailPct
		slog.Info("reconcile: protective trail placed",
			"ticker", row.Ticker, "stop", fmt.Sprintf("%.2f", spec.TrailStopPrice), "pct", pct)
	}

	qty := pos.Quantity
	row.Quantity = &qty
	amount := math.Ceil(math.Abs(qty) * price)
	row.Amount = &amount
	row.TrailPercent = pct
	row.OrderType = string(domain.OrderTypeMarketTrail)
	row.Status = statusOpen
	row.Execution = domain.ExecCleared
	return row, nil
}

// resetRow turns a live-mode row whose holding disappeared back into a
// blank template with the placeholder notional.
func resetRow(row domain.OrderIntent, trailPct float64) domain.OrderIntent {
	amount := placeholderAmount
	row.Amount = &amount
	row.Quantity = nil
	row.TrailPercent = trailPct
	row.OrderType = ""
	row.Status = ""
	row.Execution = domain.ExecCleared
	return row
}
