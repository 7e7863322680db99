package ibkr

import (
	"context"
	"fmt"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
)

// Snapshot returns the live market snapshot for a ticker. The first request
// for a conid primes the gateway's market-data subscription, so one retry
// through doWithRetry is usually enough to get populated fields.
func (c *Client) Snapshot(ctx context.Context, ticker string) (domain.Quote, error) {
	contract, err := c.ResolveContract(ctx, ticker)
	if err != nil {
		return domain.Quote{}, err
	}

	var rows []snapshotRow
	path := fmt.Sprintf("/iserver/marketdata/snapshot?conids=%d&fields=%s", contract.ConID, snapshotFields)
	if err := c.get(ctx, path, &rows); err != nil {
		return domain.Quote{}, fmt.Errorf("ibkr.Snapshot %s: %w", ticker, err)
	}
	if len(rows) == 0 {
		return domain.Quote{}, fmt.Errorf("ibkr.Snapshot %s: empty snapshot", ticker)
	}

	row := rows[0]
	return domain.Quote{
		Last:  parsePrice(row.Last),
		Close: parsePrice(row.Close),
		Ask:   parsePrice(row.Ask),
		Bid:   parsePrice(row.Bid),
	}, nil
}
