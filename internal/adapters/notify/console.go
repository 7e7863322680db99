// Package notify renders account and table state to the terminal.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
	"github.com/Jenajyo/ibkr-trader/internal/ports"
)

// Console writes a readable status report: intent tables, open positions
// and the recent trade log.
type Console struct {
	out     io.Writer
	gateway ports.Gateway
	store   ports.TableStore
	ledger  ports.Ledger
}

// NewConsole creates a reporter that writes to stdout.
func NewConsole(gateway ports.Gateway, store ports.TableStore, ledger ports.Ledger) *Console {
	return &Console{out: os.Stdout, gateway: gateway, store: store, ledger: ledger}
}

// NewConsoleWriter creates a reporter for tests.
func NewConsoleWriter(w io.Writer, gateway ports.Gateway, store ports.TableStore, ledger ports.Ledger) *Console {
	return &Console{out: w, gateway: gateway, store: store, ledger: ledger}
}

// Report prints the intent tables, the account's stock positions and the
// last ledgerTail trade-log entries.
func (c *Console) Report(ctx context.Context, ledgerTail int) error {
	fmt.Fprintf(c.out, "[%s] account report\n", time.Now().Format("2006-01-02 15:04:05"))

	names, err := c.store.TableNames(ctx)
	if err != nil {
		return fmt.Errorf("notify.Report: list tables: %w", err)
	}
	for _, name := range names {
		if _, ok := domain.SideForTable(name); !ok {
			continue
		}
		rows, err := c.store.ReadTable(ctx, name)
		if err != nil {
			return fmt.Errorf("notify.Report: read %s: %w", name, err)
		}
		c.printIntents(name, rows)
	}

	positions, err := c.gateway.Positions(ctx)
	if err != nil {
		return fmt.Errorf("notify.Report: read positions: %w", err)
	}
	c.printPositions(positions)

	entries, err := c.ledger.Tail(ctx, ledgerTail)
	if err != nil {
		return fmt.Errorf("notify.Report: read trade log: %w", err)
	}
	c.printLedger(entries)

	return nil
}

func (c *Console) printIntents(name string, rows []domain.OrderIntent) {
	fmt.Fprintf(c.out, "\n%s (%d rows)\n", name, len(rows))
	if len(rows) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Ticker", "Amount", "Qty", "Order Type", "Trail%", "Status", "Exec")

	for _, row := range rows {
		table.Append(
			row.Ticker,
			floatCell(row.Amount),
			floatCell(row.Quantity),
			row.OrderType,
			fmt.Sprintf("%.1f", row.TrailPercent),
			row.Status,
			string(row.Execution),
		)
	}
	table.Render()
}

func (c *Console) printPositions(positions []domain.Position) {
	fmt.Fprintf(c.out, "\npositions (%d)\n", len(positions))
	if len(positions) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Ticker", "Type", "Qty", "Avg Cost")

	for _, p := range positions {
		table.Append(
			p.Ticker,
			p.SecType,
			fmt.Sprintf("%.0f", p.Quantity),
			fmt.Sprintf("%.2f", p.AverageCost),
		)
	}
	table.Render()
}

func (c *Console) printLedger(entries []domain.LedgerEntry) {
	fmt.Fprintf(c.out, "\ntrade log (%d entries)\n", len(entries))
	if len(entries) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Ticker", "Action", "Qty", "Price", "Notional")

	for _, e := range entries {
		table.Append(
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Ticker,
			string(e.Action),
			fmt.Sprintf("%.0f", e.Quantity),
			fmt.Sprintf("%.2f", e.Price),
			fmt.Sprintf("%.2f", e.Notional),
		)
	}
	table.Render()
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.0f", *v)
}
