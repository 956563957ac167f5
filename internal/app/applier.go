package app

import (
	"context"

	"htsim/internal/engine"
	"htsim/internal/logger"
	"htsim/internal/metrics"
	"htsim/internal/store"
)

// applier is the single owner of engine writes. Every candle reaches the
// engine through its channel, whether polled live or generated synthetically,
// so a batch is applied whole before any snapshot can observe it.
type applier struct {
	eng    *engine.Engine
	cache  *store.CandleCache
	symbol string
}

func newApplier(eng *engine.Engine, cache *store.CandleCache, symbol string) *applier {
	return &applier{eng: eng, cache: cache, symbol: symbol}
}

func (a *applier) run(ctx context.Context, in <-chan batch) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b := <-in:
			a.apply(ctx, b)
		}
	}
}

// apply feeds one batch to the engine and persists live candles to the cache.
// Returns the number of candles applied, zero on a synthetic tick.
func (a *applier) apply(ctx context.Context, b batch) int {
	if b.synthetic > 0 {
		a.eng.IngestSynthetic(b.synthetic)
		metrics.MockSourceActive.Set(1)
		metrics.CandlesIngested.WithLabelValues(a.symbol, "mock").Inc()
		return 0
	}
	if len(b.candles) == 0 {
		return 0
	}
	n := a.eng.IngestCandles(b.candles)
	metrics.MockSourceActive.Set(0)
	metrics.CandlesIngested.WithLabelValues(a.symbol, "binance").Add(float64(n))
	if a.cache != nil {
		if _, err := a.cache.Insert(ctx, a.symbol, b.candles); err != nil {
			logger.Warnf("caching candles failed: %v", err)
		}
	}
	return n
}
