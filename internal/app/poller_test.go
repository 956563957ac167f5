package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"htsim/internal/config"
	"htsim/internal/engine"
	"htsim/internal/gateway/binance"
	"htsim/internal/store"
)

type pollFixture struct {
	poller  *poller
	applier *applier
	eng     *engine.Engine
	cache   *store.CandleCache
}

func newPollFixture(t *testing.T, handler http.HandlerFunc) *pollFixture {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	eng, err := engine.New(engine.Options{}, 7)
	require.NoError(t, err)
	cache, err := store.NewCandleCache(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	src := binance.New(binance.Config{BaseURL: srv.URL})
	return &pollFixture{
		poller:  newPoller(src, config.MarketConfig{Symbol: "BTCUSDT", FetchLimit: 1000}, 15),
		applier: newApplier(eng, cache, "BTCUSDT"),
		eng:     eng,
		cache:   cache,
	}
}

func TestPollOnceAppliesTradesAndCaches(t *testing.T) {
	f := newPollFixture(t, func(w http.ResponseWriter, r *http.Request) {
		rows := []map[string]any{
			{"a": 1, "p": "100.0", "q": "1", "T": 15_000},
			{"a": 2, "p": "101.0", "q": "2", "T": 16_000},
			{"a": 3, "p": "102.0", "q": "1", "T": 31_000},
		}
		require.NoError(t, json.NewEncoder(w).Encode(rows))
	})

	b, ok := f.poller.pollOnce(context.Background())
	require.True(t, ok)
	assert.Len(t, b.candles, 2) // two 15s buckets
	assert.Equal(t, int64(31_000), f.poller.lastTradeTime)

	n := f.applier.apply(context.Background(), b)
	assert.Equal(t, 2, n)
	assert.Equal(t, "binance", f.eng.Source())
	assert.InDelta(t, 102, f.eng.LastClose(), 1e-9)

	cached, err := f.cache.Recent(context.Background(), "BTCUSDT", 10)
	require.NoError(t, err)
	assert.Len(t, cached, 2)
}

func TestPollOnceFallsBackToSynthetic(t *testing.T) {
	f := newPollFixture(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	b, ok := f.poller.pollOnce(context.Background())
	require.True(t, ok)
	assert.Empty(t, b.candles)
	assert.Positive(t, b.synthetic)

	n := f.applier.apply(context.Background(), b)
	assert.Zero(t, n)
	assert.Equal(t, "mock", f.eng.Source())
	assert.Positive(t, f.eng.LastClose())
}

func TestPollOnceResumesFromLastTradeTime(t *testing.T) {
	var gotStart string
	f := newPollFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotStart = r.URL.Query().Get("startTime")
		_, _ = w.Write([]byte("[]"))
	})
	f.poller.lastTradeTime = 50_000

	_, ok := f.poller.pollOnce(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "50001", gotStart)
}
