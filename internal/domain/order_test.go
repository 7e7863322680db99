package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuotePricePreference(t *testing.T) {
	tests := []struct {
		name  string
		quote Quote
		want  float64
	}{
		{"last wins", Quote{Last: 101, Close: 100, Ask: 102, Bid: 99}, 101},
		{"close when no last", Quote{Close: 100, Ask: 102, Bid: 99}, 100},
		{"ask when no last or close", Quote{Ask: 102, Bid: 99}, 102},
		{"bid as last resort", Quote{Bid: 99}, 99},
		{"negative fields skipped", Quote{Last: -1, Close: 100}, 100},
		{"empty snapshot", Quote{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.quote.Price())
		})
	}
}

func TestNewTrailingStopSpec(t *testing.T) {
	long := NewTrailingStopSpec(SideBuy, 100, 5)
	assert.Equal(t, SideSell, long.Action, "long positions are protected by a sell")
	assert.Equal(t, 95.0, long.TrailStopPrice)
	assert.Equal(t, 5.0, long.TrailPercent)
	assert.Equal(t, DefaultLimitOffset, long.LimitOffset)

	short := NewTrailingStopSpec(SideSell, 100, 5)
	assert.Equal(t, SideBuy, short.Action, "short positions are protected by a buy")
	assert.Equal(t, 105.0, short.TrailStopPrice)
}

func TestTrailingStopSpecLimitPriceFollowsFillDirection(t *testing.T) {
	long := NewTrailingStopSpec(SideBuy, 100, 5)
	assert.Equal(t, 94.90, long.LimitPrice(), "sell trail limits below the trigger")

	short := NewTrailingStopSpec(SideSell, 100, 5)
	assert.Equal(t, 105.10, short.LimitPrice(), "buy trail covering a short limits above the trigger")
}

func TestNewTrailingStopSpecRoundsToCents(t *testing.T) {
	spec := NewTrailingStopSpec(SideBuy, 123.456, 4)
	assert.Equal(t, 118.52, spec.TrailStopPrice)
}

func TestOrderSubmissionAccepted(t *testing.T) {
	assert.True(t, OrderSubmission{Status: StatusSubmitted}.Accepted())
	assert.True(t, OrderSubmission{Status: StatusFilled}.Accepted())
	assert.False(t, OrderSubmission{Status: StatusRejected}.Accepted())
	assert.False(t, OrderSubmission{Status: StatusCancelled}.Accepted())
	assert.False(t, OrderSubmission{Status: StatusUnknown}.Accepted())
}

func TestOpenOrderActive(t *testing.T) {
	assert.True(t, OpenOrder{Status: StatusSubmitted}.Active())
	assert.False(t, OpenOrder{Status: StatusFilled}.Active())
	assert.False(t, OpenOrder{Status: StatusCancelled}.Active())
}

func TestNewLedgerEntry(t *testing.T) {
	e := NewLedgerEntry("AAPL", SideBuy, 3, 123.456)
	assert.Equal(t, "AAPL", e.Ticker)
	assert.Equal(t, SideBuy, e.Action)
	assert.Equal(t, 370.37, e.Notional, "notional rounded to cents")
	assert.False(t, e.Timestamp.IsZero())
}
