package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSideForTable(t *testing.T) {
	tests := []struct {
		name  string
		table string
		side  Side
		ok    bool
	}{
		{"buy usual", "BUY_Usual", SideBuy, true},
		{"bare sell", "SELL", SideSell, true},
		{"lowercase", "buy_watchlist", SideBuy, true},
		{"trade log", "trade_log", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			side, ok := SideForTable(tt.table)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.side, side)
		})
	}
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
}

func TestParseOrderType(t *testing.T) {
	tests := []struct {
		raw  string
		want OrderType
	}{
		{"MKT", OrderTypeMarket},
		{"mkt-atch-limit", OrderTypeMarketTrail},
		{"  LMT-ATTCH-TRAIL-LIMIT ", OrderTypeLimitTrail},
		{"ATCH-LMT", OrderTypeAttachTrail},
		{"REMOVE-LIMIT-ORDER", OrderTypeRemoveLimit},
		{"close", OrderTypeClose},
	}

	for _, tt := range tests {
		got, err := ParseOrderType(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseOrderTypeRejectsUnknownTags(t *testing.T) {
	for _, raw := range []string{"", "LIMIT", "MKT-ATTACH", "STOP"} {
		_, err := ParseOrderType(raw)
		assert.Error(t, err, "tag %q must be rejected, not skipped", raw)
	}
}

func TestExecutionFlagTransmit(t *testing.T) {
	assert.True(t, ExecTransmit.Transmit())
	assert.True(t, ExecutionFlag(" transmit ").Transmit())
	assert.False(t, ExecPending.Transmit())
	assert.False(t, ExecCleared.Transmit())
	assert.False(t, ExecutionFlag("").Transmit())
}

func TestParseTradingMode(t *testing.T) {
	mode, err := ParseTradingMode(" Live ")
	require.NoError(t, err)
	assert.Equal(t, ModeLive, mode)

	mode, err = ParseTradingMode("paper")
	require.NoError(t, err)
	assert.Equal(t, ModePaper, mode)

	_, err = ParseTradingMode("demo")
	assert.Error(t, err)
}

func TestOrderIntentQuantity(t *testing.T) {
	qty := 12.0
	row := OrderIntent{Ticker: "AAPL", Quantity: &qty}
	assert.True(t, row.HasQuantity())
	assert.Equal(t, 12.0, row.QuantityValue())

	zero := 0.0
	assert.False(t, OrderIntent{Quantity: &zero}.HasQuantity())
	assert.False(t, OrderIntent{}.HasQuantity())
	assert.Zero(t, OrderIntent{}.QuantityValue())
}
