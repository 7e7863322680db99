// Package trader orchestrates a full run: intent tables in, broker orders
// out, reconciled tables back.
package trader

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
	"github.com/Jenajyo/ibkr-trader/internal/metrics"
	"github.com/Jenajyo/ibkr-trader/internal/ports"
)

// Dispatcher processes one intent table and returns the updated rows.
type Dispatcher interface {
	ProcessTable(ctx context.Context, tableName string, rows []domain.OrderIntent) ([]domain.OrderIntent, error)
}

// Reconciler aligns the tables with the brokerage account.
type Reconciler interface {
	Run(ctx context.Context) error
}

// Trader ties the dispatch and reconcile engines to the table store.
type Trader struct {
	gateway    ports.Gateway
	store      ports.TableStore
	prices     ports.PriceResolver
	dispatcher Dispatcher
	reconciler Reconciler
}

// New wires the orchestrator.
func New(gateway ports.Gateway, store ports.TableStore, prices ports.PriceResolver, dispatcher Dispatcher, reconciler Reconciler) *Trader {
	return &Trader{
		gateway:    gateway,
		store:      store,
		prices:     prices,
		dispatcher: dispatcher,
		reconciler: reconciler,
	}
}

// Run dispatches every BUY- and SELL-prefixed intent table and writes the
// updated rows back. A connection-level failure aborts the run; updated
// rows of already-processed tables are still persisted.
func (t *Trader) Run(ctx context.Context) error {
	names, err := t.store.TableNames(ctx)
	if err != nil {
		return fmt.Errorf("trader.Run: list tables: %w", err)
	}

	for _, name := range names {
		if _, ok := domain.SideForTable(name); !ok {
			slog.Debug("trader: skipping non-intent table", "table", name)
			continue
		}

		rows, err := t.store.ReadTable(ctx, name)
		if err != nil {
			return fmt.Errorf("trader.Run: read %s: %w", name, err)
		}

		updated, dispatchErr := t.dispatcher.ProcessTable(ctx, name, rows)
		if err := t.store.WriteTable(ctx, name, updated); err != nil {
			return fmt.Errorf("trader.Run: write %s: %w", name, err)
		}
		if dispatchErr != nil {
			return fmt.Errorf("trader.Run: dispatch %s: %w", name, dispatchErr)
		}
	}
	return nil
}

// Reconcile aligns the intent tables with the brokerage holdings.
func (t *Trader) Reconcile(ctx context.Context) error {
	return t.reconciler.Run(ctx)
}

// CancelAllOpenOrders flushes every resting order on the account.
func (t *Trader) CancelAllOpenOrders(ctx context.Context) error {
	if err := t.gateway.CancelAll(ctx); err != nil {
		return fmt.Errorf("trader.CancelAllOpenOrders: %w", err)
	}
	slog.Info("trader: all open orders cancelled")
	return nil
}

// ApplyTrailToHoldings attaches a trailing stop at the given percent to
// each listed holding, or to every stock holding on the protect side when
// tickers is empty. Symbol failures are logged and skipped.
func (t *Trader) ApplyTrailToHoldings(ctx context.Context, pct float64, protect domain.Side, tickers []string) error {
	if pct <= 0 {
		pct = domain.DefaultTrailPercent
	}

	targets, err := t.trailTargets(ctx, protect, tickers)
	if err != nil {
		return err
	}

	for _, pos := range targets {
		if err := t.trailOne(ctx, protect, pos, pct); err != nil {
			if domain.IsConnectionError(err) {
				return err
			}
			slog.Error("trader: trail failed", "ticker", pos.Ticker, "err", err)
		}
	}
	return nil
}

func (t *Trader) trailTargets(ctx context.Context, protect domain.Side, tickers []string) ([]domain.Position, error) {
	positions, err := t.gateway.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("trader.trailTargets: %w", err)
	}

	wanted := make(map[string]struct{}, len(tickers))
	for _, tk := range tickers {
		wanted[tk] = struct{}{}
	}

	var targets []domain.Position
	for _, pos := range positions {
		if pos.SecType != "STK" || pos.Quantity == 0 {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[pos.Ticker]; !ok {
				continue
			}
		} else if (protect == domain.SideBuy) != (pos.Quantity > 0) {
			continue
		}
		targets = append(targets, pos)
	}
	return targets, nil
}

func (t *Trader) trailOne(ctx context.Context, protect domain.Side, pos domain.Position, pct float64) error {
	// Replace, don't stack: drop any resting protection first.
	if _, err := t.gateway.CancelOrders(ctx, pos.Ticker); err != nil {
		return err
	}

	price, err := t.prices.Resolve(ctx, pos.Ticker)
	if err != nil {
		return err
	}

	contract, err := t.gateway.ResolveContract(ctx, pos.Ticker)
	if err != nil {
		return err
	}

	spec := domain.NewTrailingStopSpec(protect, price, pct)
	sub, err := t.gateway.SubmitTrailingStop(ctx, contract, spec, math.Abs(pos.Quantity))
	if err != nil {
		return err
	}
	if !sub.Accepted() {
		return fmt.Errorf("trail %s: status %s: %w", pos.Ticker, sub.Status, domain.ErrSubmissionRejected)
	}
	metrics.OrdersSubmitted.WithLabelValues("TRAIL", string(spec.Action)).Inc()
	slog.Info("trader: trailing stop placed",
		"ticker", pos.Ticker, "qty", pos.Quantity, "stop", fmt.Sprintf("%.2f", spec.TrailStopPrice), "pct", pct)
	return nil
}
