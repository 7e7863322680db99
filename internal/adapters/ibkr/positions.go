package ibkr

import (
	"context"
	"fmt"
	"strings"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
)

// Positions returns the account's stock holdings as a read-only snapshot.
func (c *Client) Positions(ctx context.Context) ([]domain.Position, error) {
	var raw []portfolioPosition
	path := fmt.Sprintf("/portfolio/%s/positions/0", c.account)
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, fmt.Errorf("ibkr.Positions: %w", err)
	}

	positions := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		positions = append(positions, domain.Position{
			Ticker:      symbolFromDesc(p.Ticker),
			SecType:     p.AssetClass,
			Quantity:    p.Position,
			AverageCost: p.AvgCost,
		})
	}
	return positions, nil
}

// RemainingQuantity returns the live stock holding for a ticker, 0 when
// none exists.
func (c *Client) RemainingQuantity(ctx context.Context, ticker string) (float64, error) {
	positions, err := c.Positions(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range positions {
		if p.SecType == "STK" && strings.EqualFold(p.Ticker, ticker) {
			return p.Quantity, nil
		}
	}
	return 0, nil
}

// symbolFromDesc trims the gateway's contract description down to the bare
// symbol ("BRK B ...": first token back in dotted display form).
func symbolFromDesc(desc string) string {
	fields := strings.Fields(desc)
	if len(fields) == 0 {
		return desc
	}
	// Class-share descriptions arrive as "BRK B"; restore the dotted form
	// when the second token is a single class letter.
	if len(fields) >= 2 && len(fields[1]) == 1 {
		return fields[0] + "." + fields[1]
	}
	return fields[0]
}
