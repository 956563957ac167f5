package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aggTradeServer(t *testing.T, rows []map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/aggTrades", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(rows))
	}))
}

func TestFetchAggTradesParsesAndTracksLastTime(t *testing.T) {
	srv := aggTradeServer(t, []map[string]any{
		{"a": 1, "p": "97000.50", "q": "0.010000", "T": 1_700_000_000_000},
		{"a": 2, "p": "97010.25", "q": "0.250000", "T": 1_700_000_000_500},
	})
	defer srv.Close()

	src := New(Config{BaseURL: srv.URL})
	trades, last, err := src.FetchAggTrades(context.Background(), "btcusdt", 0, 0)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.InDelta(t, 97000.50, trades[0].Price, 1e-9)
	assert.InDelta(t, 0.25, trades[1].Quantity, 1e-9)
	assert.Equal(t, int64(1_700_000_000_500), last)
}

func TestFetchAggTradesDropsMalformedRows(t *testing.T) {
	srv := aggTradeServer(t, []map[string]any{
		{"a": 1, "p": "not-a-price", "q": "0.5", "T": 1_700_000_000_000},
		{"a": 2, "p": "0", "q": "0.5", "T": 1_700_000_000_100},
		{"a": 3, "p": "97000", "q": "0.5", "T": 0},
		{"a": 4, "p": "97000", "q": "0.5", "T": 1_700_000_000_200},
	})
	defer srv.Close()

	src := New(Config{BaseURL: srv.URL})
	trades, last, err := src.FetchAggTrades(context.Background(), "BTCUSDT", 0, 0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(1_700_000_000_200), last)
}

func TestFetchAggTradesRequiresSymbol(t *testing.T) {
	src := New(Config{})
	_, _, err := src.FetchAggTrades(context.Background(), "  ", 0, 0)
	assert.Error(t, err)
}
