package ibkr

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
)

// lookupSymbol translates a dotted class-share ticker (BRK.B) into the
// broker's space-delimited notation (BRK B) used for qualification. The
// dotted form stays on the contract as the display symbol.
func lookupSymbol(ticker string) string {
	return strings.ReplaceAll(ticker, ".", " ")
}

// ResolveContract qualifies a ticker into a tradable instrument reference.
// Qualified contracts are cached for the run.
func (c *Client) ResolveContract(ctx context.Context, ticker string) (domain.Contract, error) {
	c.mu.Lock()
	if cached, ok := c.conids[ticker]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	query := lookupSymbol(ticker)
	var results []secdefResult
	path := "/iserver/secdef/search?symbol=" + url.QueryEscape(query) + "&secType=STK"
	if err := c.get(ctx, path, &results); err != nil {
		return domain.Contract{}, fmt.Errorf("ibkr.ResolveContract %s: %w", ticker, err)
	}

	for _, r := range results {
		if r.ConID == 0 {
			continue
		}
		if r.SecType != "" && r.SecType != "STK" {
			continue
		}
		contract := domain.Contract{
			ConID:       int64(r.ConID),
			Symbol:      ticker,
			LocalSymbol: query,
			Exchange:    "SMART",
			Currency:    "USD",
		}
		c.mu.Lock()
		c.conids[ticker] = contract
		c.mu.Unlock()
		return contract, nil
	}

	return domain.Contract{}, fmt.Errorf("ibkr.ResolveContract %s: %w", ticker, domain.ErrUnqualifiedInstrument)
}
