// Package storage persists the order-intent tables and the trade ledger in
// SQLite (pure Go, no CGo).
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
	"github.com/Jenajyo/ibkr-trader/internal/ports"
)

const schema = `
-- One row per intent-table cell row. position preserves sheet order.
CREATE TABLE IF NOT EXISTS intent_rows (
    table_name    TEXT    NOT NULL,
    position      INTEGER NOT NULL,
    ticker        TEXT    NOT NULL,
    amount        REAL,
    quantity      REAL,
    order_type    TEXT    NOT NULL DEFAULT '',
    trail_percent REAL    NOT NULL DEFAULT 4.0,
    status        TEXT    NOT NULL DEFAULT '',
    execution     TEXT    NOT NULL DEFAULT '',
    PRIMARY KEY (table_name, position)
);

-- Append-only record of executed actions. Never updated or deleted here.
CREATE TABLE IF NOT EXISTS trade_log (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    logged_at DATETIME NOT NULL,
    ticker    TEXT     NOT NULL,
    action    TEXT     NOT NULL,
    quantity  REAL     NOT NULL,
    price     REAL     NOT NULL,
    notional  REAL     NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_intent_table ON intent_rows(table_name, position);
CREATE INDEX IF NOT EXISTS idx_log_at       ON trade_log(logged_at DESC);
`

// Compile-time interface checks.
var (
	_ ports.TableStore = (*Store)(nil)
	_ ports.Ledger     = (*Store)(nil)
)

// Store implements ports.TableStore and ports.Ledger on one database file.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at the given DSN and applies the
// schema.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.NewStore: open %q: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewStore: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// ReadTable returns the rows of one intent table in sheet order.
func (s *Store) ReadTable(ctx context.Context, name string) ([]domain.OrderIntent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, amount, quantity, order_type, trail_percent, status, execution
		FROM intent_rows
		WHERE table_name = ?
		ORDER BY position
	`, name)
	if err != nil {
		return nil, fmt.Errorf("storage.ReadTable %s: query: %w", name, err)
	}
	defer rows.Close()

	var intents []domain.OrderIntent
	for rows.Next() {
		var (
			row              domain.OrderIntent
			amount, quantity sql.NullFloat64
			execution        string
		)
		if err := rows.Scan(&row.Ticker, &amount, &quantity, &row.OrderType, &row.TrailPercent, &row.Status, &execution); err != nil {
			return nil, fmt.Errorf("storage.ReadTable %s: scan: %w", name, err)
		}
		if amount.Valid {
			v := amount.Float64
			row.Amount = &v
		}
		if quantity.Valid {
			v := quantity.Float64
			row.Quantity = &v
		}
		row.Execution = domain.ExecutionFlag(execution)
		intents = append(intents, row)
	}
	return intents, rows.Err()
}

// WriteTable replaces the stored table with exactly the given rows, in one
// transaction.
func (s *Store) WriteTable(ctx context.Context, name string, intents []domain.OrderIntent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.WriteTable %s: begin tx: %w", name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM intent_rows WHERE table_name = ?`, name); err != nil {
		return fmt.Errorf("storage.WriteTable %s: clear: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO intent_rows
			(table_name, position, ticker, amount, quantity, order_type, trail_percent, status, execution)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.WriteTable %s: prepare: %w", name, err)
	}
	defer stmt.Close()

	for i, row := range intents {
		var amount, quantity any
		if row.Amount != nil {
			amount = *row.Amount
		}
		if row.Quantity != nil {
			quantity = *row.Quantity
		}
		if _, err := stmt.ExecContext(ctx,
			name, i, row.Ticker, amount, quantity,
			row.OrderType, row.TrailPercent, row.Status, string(row.Execution),
		); err != nil {
			return fmt.Errorf("storage.WriteTable %s: insert %s: %w", name, row.Ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.WriteTable %s: commit: %w", name, err)
	}
	return nil
}

// TableNames lists the stored intent tables.
func (s *Store) TableNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT table_name FROM intent_rows ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("storage.TableNames: query: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("storage.TableNames: scan: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Append records one executed action in the trade ledger.
func (s *Store) Append(ctx context.Context, entry domain.LedgerEntry) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO trade_log (logged_at, ticker, action, quantity, price, notional)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.Timestamp.UTC(), entry.Ticker, string(entry.Action), entry.Quantity, entry.Price, entry.Notional); err != nil {
		return fmt.Errorf("storage.Append %s: %w", entry.Ticker, err)
	}
	return nil
}

// Tail returns the most recent n ledger entries, oldest first.
func (s *Store) Tail(ctx context.Context, n int) ([]domain.LedgerEntry, error) {
	query := `
		SELECT logged_at, ticker, action, quantity, price, notional
		FROM (
			SELECT id, logged_at, ticker, action, quantity, price, notional
			FROM trade_log ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`
	limit := n
	if limit <= 0 {
		limit = -1 // sqlite: LIMIT -1 means no limit
	}
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.Tail: query: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var (
			e      domain.LedgerEntry
			at     time.Time
			action string
		)
		if err := rows.Scan(&at, &e.Ticker, &action, &e.Quantity, &e.Price, &e.Notional); err != nil {
			return nil, fmt.Errorf("storage.Tail: scan: %w", err)
		}
		e.Timestamp = at
		e.Action = domain.Side(action)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
