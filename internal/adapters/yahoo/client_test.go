package yahoo_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jenajyo/ibkr-trader/internal/adapters/yahoo"
)

func chartBody(closes string) string {
	return fmt.Sprintf(`{"chart":{"result":[{"indicators":{"quote":[{"close":%s}]}}],"error":null}}`, closes)
}

func TestDailyCloseReturnsLastUsableClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		assert.Equal(t, "5d", r.URL.Query().Get("range"))
		assert.NotContains(t, r.UserAgent(), "Go-http-client")
		w.Write([]byte(chartBody(`[100.1, 101.2, null]`)))
	}))
	defer srv.Close()

	price, err := yahoo.NewClient(srv.URL).DailyClose(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 101.2, price, "trailing null bars are skipped")
}

func TestDailyCloseChartError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":null,"error":{"description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	_, err := yahoo.NewClient(srv.URL).DailyClose(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delisted")
}

func TestDailyCloseServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := yahoo.NewClient(srv.URL).DailyClose(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestDailyCloseNoUsableBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chartBody(`[null, null]`)))
	}))
	defer srv.Close()

	_, err := yahoo.NewClient(srv.URL).DailyClose(context.Background(), "AAPL")
	assert.Error(t, err)
}
