package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jenajyo/ibkr-trader/internal/domain"
)

type fakeGateway struct {
	positions          []domain.Position
	trails             map[string]float64
	submitTrailingStop func(c domain.Contract, spec domain.TrailingStopSpec, qty float64) (domain.OrderSubmission, error)
	trailsPlaced       int
}

func (f *fakeGateway) ResolveContract(_ context.Context, ticker string) (domain.Contract, error) {
	return domain.Contract{ConID: 1, Symbol: ticker}, nil
}

func (f *fakeGateway) Snapshot(context.Context, string) (domain.Quote, error) {
	return domain.Quote{}, nil
}

func (f *fakeGateway) SubmitMarket(context.Context, domain.Contract, domain.Side, float64) (domain.OrderSubmission, error) {
	return domain.OrderSubmission{Status: domain.StatusSubmitted}, nil
}

func (f *fakeGateway) SubmitLimit(context.Context, domain.Contract, domain.Side, float64, float64) (domain.OrderSubmission, error) {
	return domain.OrderSubmission{Status: domain.StatusSubmitted}, nil
}

func (f *fakeGateway) SubmitTrailingStop(_ context.Context, c domain.Contract, spec domain.TrailingStopSpec, qty float64) (domain.OrderSubmission, error) {
	f.trailsPlaced++
	if f.submitTrailingStop != nil {
		return f.submitTrailingStop(c, spec, qty)
	}
	return domain.OrderSubmission{OrderID: "1", Status: domain.StatusSubmitted}, nil
}

func (f *fakeGateway) CancelOrders(context.Context, string) (int, error) { return 0, nil }

func (f *fakeGateway) CancelAll(context.Context) error { return nil }

func (f *fakeGateway) OpenOrders(context.Context) ([]domain.OpenOrder, error) { return nil, nil }

func (f *fakeGateway) Positions(context.Context) ([]domain.Position, error) {
	return f.positions, nil
}

func (f *fakeGateway) RemainingQuantity(context.Context, string) (float64, error) { return 0, nil }

func (f *fakeGateway) TrailPercent(_ context.Context, ticker string) (float64, bool, error) {
	pct, ok := f.trails[ticker]
	return pct, ok, nil
}

type fakeResolver struct{ price float64 }

func (r fakeResolver) Resolve(context.Context, string) (float64, error) { return r.price, nil }

type memStore struct {
	tables map[string][]domain.OrderIntent
}

func newMemStore() *memStore {
	return &memStore{tables: make(map[string][]domain.OrderIntent)}
}

func (s *memStore) ReadTable(_ context.Context, name string) ([]domain.OrderIntent, error) {
	return s.tables[name], nil
}

func (s *memStore) WriteTable(_ context.Context, name string, rows []domain.OrderIntent) error {
	s.tables[name] = rows
	return nil
}

func (s *memStore) TableNames(context.Context) ([]string, error) {
	names := make([]string, 0, len(s.tables))
	for n := range s.tables {
		names = append(names, n)
	}
	return names, nil
}

func (s *memStore) Close() error { return nil }

func ptrF(v float64) *float64 { return &v }

func TestRunProtectsUnguardedHolding(t *testing.T) {
	gw := &fakeGateway{
		positions: []domain.Position{{Ticker: "AAPL", SecType: "STK", Quantity: 10}},
		trails:    map[string]float64{},
	}
	store := newMemStore()
	store.tables["BUY_Usual"] = []domain.OrderIntent{
		{Ticker: "AAPL", Amount: ptrF(900), Status: "MKT Order Placed"},
	}
	store.tables["SELL"] = nil

	engine := New(gw, fakeResolver{price: 100}, store, domain.ModePaper, "BUY_Usual", "SELL", 5)
	require.NoError(t, engine.Run(context.Background()))

	assert.Equal(t, 1, gw.trailsPlaced)

	rows := store.tables["BUY_Usual"]
	require.Len(t, rows, 1)
	row := rows[0]
	require.NotNil(t, row.Quantity)
	assert.Equal(t, 10.0, *row.Quantity)
	require.NotNil(t, row.Amount)
	assert.Equal(t, 1000.0, *row.Amount, "ceil(10 * 100)")
	assert.Equal(t, 5.0, row.TrailPercent)
	assert.Equal(t, "MKT-ATCH-LIMIT", row.OrderType)
	assert.Equal(t, "Open", row.Status)
	assert.Equal(t, domain.ExecCleared, row.Execution)
}

func TestRunKeepsExistingProtection(t *testing.T) {
	gw := &fakeGateway{
		positions: []domain.Position{{Ticker: "AAPL", SecType: "STK", Quantity: 10}},
		trails:    map[string]float64{"AAPL": 3.5},
	}
	store := newMemStore()
	store.tables["BUY_Usual"] = []domain.OrderIntent{{Ticker: "AAPL"}}
	store.tables["SELL"] = nil

	engine := New(gw, fakeResolver{price: 100}, store, domain.ModePaper, "BUY_Usual", "SELL", 5)
	require.NoError(t, engine.Run(context.Background()))

	assert.Zero(t, gw.trailsPlaced, "protected holdings get no second trail")
	assert.Equal(t, 3.5, store.tables["BUY_Usual"][0].TrailPercent, "resting trail percent read back")
}

func TestRunPaperModeDropsStaleRows(t *testing.T) {
	gw := &fakeGateway{positions: nil, trails: map[string]float64{}}
	store := newMemStore()
	store.tables["BUY_Usual"] = []domain.OrderIntent{{Ticker: "GONE", Amount: ptrF(500)}}
	store.tables["SELL"] = nil

	engine := New(gw, fakeResolver{price: 100}, store, domain.ModePaper, "BUY_Usual", "SELL", 5)
	require.NoError(t, engine.Run(context.Background()))

	assert.Empty(t, store.tables["BUY_Usual"])
}

func TestRunLiveModeResetsStaleRows(t *testing.T) {
	gw := &fakeGateway{positions: nil, trails: map[string]float64{}}
	store := newMemStore()
	store.tables["BUY_Usual"] = []domain.OrderIntent{
		{Ticker: "GONE", Amount: ptrF(900), Quantity: ptrF(9), OrderType: "MKT", Status: "Closed", Execution: domain.ExecPending},
	}
	store.tables["SELL"] = nil

	engine := New(gw, fakeResolver{price: 100}, store, domain.ModeLive, "BUY_Usual", "SELL", 5)
	require.NoError(t, engine.Run(context.Background()))

	rows := store.tables["BUY_Usual"]
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "GONE", row.Ticker)
	require.NotNil(t, row.Amount)
	assert.Equal(t, 2000.0, *row.Amount)
	assert.Nil(t, row.Quantity)
	assert.Empty(t, row.OrderType)
	assert.Empty(t, row.Status)
	assert.Equal(t, domain.ExecCleared, row.Execution)
}

func TestRunAdoptsUntrackedHoldings(t *testing.T) {
	gw := &fakeGateway{
		positions: []domain.Position{
			{Ticker: "NEW", SecType: "STK", Quantity: 4},
			{Ticker: "SHRT", SecType: "STK", Quantity: -6},
		},
		trails: map[string]float64{"NEW": 4, "SHRT": 4},
	}
	store := newMemStore()
	store.tables["BUY_Usual"] = nil
	store.tables["SELL"] = nil

	engine := New(gw, fakeResolver{price: 50}, store, domain.ModePaper, "BUY_Usual", "SELL", 5)
	require.NoError(t, engine.Run(context.Background()))

	require.Len(t, store.tables["BUY_Usual"], 1)
	assert.Equal(t, "NEW", store.tables["BUY_Usual"][0].Ticker)

	require.Len(t, store.tables["SELL"], 1)
	short := store.tables["SELL"][0]
	assert.Equal(t, "SHRT", short.Ticker)
	require.NotNil(t, short.Quantity)
	assert.Equal(t, -6.0, *short.Quantity, "short rows keep the signed quantity")
	require.NotNil(t, short.Amount)
	assert.Equal(t, 300.0, *short.Amount, "notional from the absolute quantity")
}

func TestRunIgnoresNonStockPositions(t *testing.T) {
	gw := &fakeGateway{
		positions: []domain.Position{{Ticker: "OPT1", SecType: "OPT", Quantity: 2}},
		trails:    map[string]float64{},
	}
	store := newMemStore()
	store.tables["BUY_Usual"] = nil
	store.tables["SELL"] = nil

	engine := New(gw, fakeResolver{price: 100}, store, domain.ModePaper, "BUY_Usual", "SELL", 5)
	require.NoError(t, engine.Run(context.Background()))

	assert.Empty(t, store.tables["BUY_Usual"])
	assert.Empty(t, store.tables["SELL"])
}
