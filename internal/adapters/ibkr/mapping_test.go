package ibkr

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
)

func TestLookupSymbolClassShares(t *testing.T) {
	assert.Equal(t, "BRK B", lookupSymbol("BRK.B"))
	assert.Equal(t, "BF B", lookupSymbol("BF.B"))
	assert.Equal(t, "AAPL", lookupSymbol("AAPL"))
}

func TestSymbolFromDescRestoresDottedForm(t *testing.T) {
	assert.Equal(t, "BRK.B", symbolFromDesc("BRK B"))
	assert.Equal(t, "AAPL", symbolFromDesc("AAPL"))
	assert.Equal(t, "AAPL", symbolFromDesc("AAPL STK"))
}

func TestMapOrderStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.SubmissionStatus
	}{
		{"Submitted", domain.StatusSubmitted},
		{"PreSubmitted", domain.StatusSubmitted},
		{"PendingSubmit", domain.StatusSubmitted},
		{"Filled", domain.StatusFilled},
		{"Cancelled", domain.StatusCancelled},
		{"PendingCancel", domain.StatusCancelled},
		{"Rejected", domain.StatusRejected},
		{"Inactive", domain.StatusRejected},
		{"", domain.StatusUnknown},
		{"Frozen", domain.StatusUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, mapOrderStatus(tt.raw), tt.raw)
	}
}

func TestParsePriceStripsIndicatorPrefixes(t *testing.T) {
	assert.Equal(t, 123.45, parsePrice("123.45"))
	assert.Equal(t, 98.2, parsePrice("C98.2"))
	assert.Equal(t, 77.0, parsePrice("H77"))
	assert.Zero(t, parsePrice(""))
	assert.Zero(t, parsePrice("n/a"))
}

func TestCancellable(t *testing.T) {
	assert.True(t, cancellable("LIMIT"))
	assert.True(t, cancellable("lmt"))
	assert.True(t, cancellable("TRAILING_STOP_LIMIT"))
	assert.True(t, cancellable("TRAILLMT"))
	assert.False(t, cancellable("MKT"))
	assert.False(t, cancellable("MARKET"))
	assert.False(t, cancellable(""))
}

func TestJSONIntToleratesStringAndNumber(t *testing.T) {
	var v jsonInt
	assert.NoError(t, v.UnmarshalJSON([]byte(`42`)))
	assert.Equal(t, jsonInt(42), v)

	assert.NoError(t, v.UnmarshalJSON([]byte(`"265598"`)))
	assert.Equal(t, jsonInt(265598), v)

	assert.NoError(t, v.UnmarshalJSON([]byte(`null`)))
	assert.Equal(t, jsonInt(0), v)

	assert.Error(t, v.UnmarshalJSON([]byte(`"abc"`)))
}
