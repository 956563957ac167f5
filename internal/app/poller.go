package app

import (
	"context"
	"time"

	"htsim/internal/config"
	"htsim/internal/gateway/binance"
	"htsim/internal/logger"
	"htsim/internal/market"
	"htsim/internal/metrics"
)

// batch is one poll result published to the applier. Either candles is
// populated (live feed) or synthetic carries the base-bucket start of a
// degraded tick.
type batch struct {
	candles   []market.Candle
	synthetic int64
}

// poller fetches aggregated trades once per base bucket and publishes the
// aggregated candles. A failed fetch degrades to one synthetic bucket instead
// of stalling, so snapshots stay fresh while the feed is down. The poller
// never touches the engine itself; the applier owns all engine writes.
type poller struct {
	source *binance.Source
	market config.MarketConfig
	base   int

	lastTradeTime int64 // ms of the newest trade fetched
}

func newPoller(source *binance.Source, mkt config.MarketConfig, baseSeconds int) *poller {
	return &poller{
		source: source,
		market: mkt,
		base:   baseSeconds,
	}
}

func (p *poller) run(ctx context.Context, out chan<- batch) error {
	interval := time.Duration(p.base) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b, ok := p.pollOnce(ctx)
			if !ok {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// pollOnce fetches one trade batch and aggregates it. The bool is false when
// there is nothing to publish (an empty fetch or a cancelled context).
func (p *poller) pollOnce(ctx context.Context) (batch, bool) {
	start := int64(0)
	if p.lastTradeTime > 0 {
		start = p.lastTradeTime + 1
	}
	trades, lastTime, err := p.source.FetchAggTrades(ctx, p.market.Symbol, start, p.market.FetchLimit)
	if err != nil {
		if ctx.Err() != nil {
			return batch{}, false
		}
		logger.Warnf("trade fetch failed, falling back to synthetic candles: %v", err)
		metrics.PollErrors.WithLabelValues(p.market.Symbol).Inc()
		bucket := time.Now().Unix() / int64(p.base) * int64(p.base)
		return batch{synthetic: bucket}, true
	}
	candles := market.IngestTrades(trades, p.base)
	if len(candles) == 0 {
		return batch{}, false
	}
	if lastTime > p.lastTradeTime {
		p.lastTradeTime = lastTime
	}
	return batch{candles: candles}, true
}
