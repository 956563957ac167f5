package engine

import (
	"fmt"
	"sync"

	"htsim/internal/market"
	"htsim/internal/strategy"
)

// Options sizes the engine. Zero values take the production defaults.
type Options struct {
	BaseSeconds    int     // base candle bucket width
	CycleSeconds   int     // dual-cycle lane duration
	Notional       float64 // per-position notional, shared by replay and lanes
	FeeRate        float64 // per-side fee rate
	BufferCapacity int     // candle ring capacity
}

func (o Options) withDefaults() Options {
	if o.BaseSeconds <= 0 {
		o.BaseSeconds = 15
	}
	if o.CycleSeconds <= 0 {
		o.CycleSeconds = 600
	}
	if o.Notional <= 0 {
		o.Notional = 10.0
	}
	if o.FeeRate <= 0 {
		o.FeeRate = 0.0004
	}
	if o.BufferCapacity <= 0 {
		o.BufferCapacity = 10000
	}
	return o
}

// Engine owns all mutable simulation state: the candle ring, the dual-cycle
// position manager, and the live/synthetic source flag. One mutex guards all
// of it, so a snapshot observes either all or none of a candle's effects.
type Engine struct {
	mu sync.Mutex

	opts      Options
	registry  *strategy.Registry
	buffer    *market.Ring
	cycles    *CycleManager
	synthetic *SyntheticSource
	useMock   bool
}

func New(opts Options, seed int64) (*Engine, error) {
	opts = opts.withDefaults()
	reg, err := strategy.LoadRegistry()
	if err != nil {
		return nil, fmt.Errorf("loading strategy registry: %w", err)
	}
	return &Engine{
		opts:      opts,
		registry:  reg,
		buffer:    market.NewRing(opts.BufferCapacity),
		cycles:    NewCycleManager(opts.Notional, opts.FeeRate, opts.CycleSeconds),
		synthetic: NewSyntheticSource(seed),
	}, nil
}

// IngestTrades aggregates raw trades at the base bucket width and applies the
// resulting candles. Returns the number of candles applied.
func (e *Engine) IngestTrades(trades []market.Trade) int {
	return e.IngestCandles(market.IngestTrades(trades, e.opts.BaseSeconds))
}

// IngestCandles applies already-aggregated live candles and marks the source
// live again after a synthetic spell.
func (e *Engine) IngestCandles(candles []market.Candle) int {
	if len(candles) == 0 {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range candles {
		e.apply(c)
	}
	e.useMock = false
	return len(candles)
}

// IngestSynthetic generates one random-walk candle for the given bucket time
// and applies it, flagging the snapshot source as mock. Used when the live
// feed fails.
func (e *Engine) IngestSynthetic(bucketTime int64) market.Candle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.useMock {
		if last, ok := e.buffer.Last(); ok {
			e.synthetic.Seed(last.Close)
		}
		e.useMock = true
	}
	c := e.synthetic.Next(bucketTime)
	e.apply(c)
	return c
}

// SeedCandles preloads historical candles, typically at startup, without
// touching the source flag.
func (e *Engine) SeedCandles(candles []market.Candle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range candles {
		e.apply(c)
	}
}

// apply appends one candle and advances the cycle lanes. Callers hold the
// mutex.
func (e *Engine) apply(c market.Candle) {
	e.buffer.Append(c)
	e.cycles.Update(c)
}

// Source reports the current data source tag.
func (e *Engine) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sourceLocked()
}

func (e *Engine) sourceLocked() string {
	if e.useMock {
		return "mock"
	}
	return "binance"
}

// LastClose returns the most recent close, zero when the buffer is empty.
func (e *Engine) LastClose() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.buffer.Last(); ok {
		return last.Close
	}
	return 0
}

// Snapshot evaluates every strategy over the current buffer and publishes the
// latest candle, the six strategy statuses, and the dual-cycle state. It is a
// pure read: repeated calls without ingestion return equal values.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	candles := e.buffer.Snapshot()
	snap := Snapshot{
		Strategies: evaluateStrategies(e.registry, candles, strategy.SimConfig{
			Notional: e.opts.Notional,
			FeeRate:  e.opts.FeeRate,
		}),
		PositionState: e.cycles.Snapshot(),
	}
	if len(candles) > 0 {
		snap.Candle = candleView(candles[len(candles)-1], e.sourceLocked())
	} else {
		snap.Candle.Source = e.sourceLocked()
	}
	return snap
}

// History returns up to limit of the most recent candles, oldest first.
func (e *Engine) History(limit int) []market.Candle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit <= 0 {
		return nil
	}
	return e.buffer.Tail(limit)
}
