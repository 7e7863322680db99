package ports

import (
	"context"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
)

// TableStore persists the order-intent tables. Writes have whole-table
// overwrite semantics: the stored table becomes exactly the given rows.
type TableStore interface {
	ReadTable(ctx context.Context, name string) ([]domain.OrderIntent, error)
	WriteTable(ctx context.Context, name string, rows []domain.OrderIntent) error

	// TableNames lists the stored intent tables.
	TableNames(ctx context.Context) ([]string, error)

	Close() error
}

// Ledger is the append-only log of executed actions. Entries are never
// mutated or deleted.
type Ledger interface {
	Append(ctx context.Context, entry domain.LedgerEntry) error

	// Tail returns the most recent n entries, oldest first. n <= 0 returns
	// everything.
	Tail(ctx context.Context, n int) ([]domain.LedgerEntry, error)
}
