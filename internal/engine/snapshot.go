package engine

import (
	"math"
	"time"

	"htsim/internal/market"
	"htsim/internal/strategy"
)

// CandleView is the latest candle as published to clients.
type CandleView struct {
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Timestamp string  `json:"timestamp"`
	Source    string  `json:"source"`
}

// StrategyStatus is the published evaluation of one strategy: its display
// score plus the replayed performance over the strategy's timeframe series.
type StrategyStatus struct {
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	WinRate       float64       `json:"win_rate"`
	Active        bool          `json:"active"`
	Confidence    float64       `json:"confidence"`
	ReturnPct     float64       `json:"return_pct"`
	TotalPnL      float64       `json:"total_pnl"`
	UnrealizedPnL float64       `json:"unrealized_pnl"`
	TradeCount    int           `json:"trade_count"`
	OpenSide      strategy.Side `json:"open_side"`
	FeesPaid      float64       `json:"fees_paid"`
	TimeframeSec  int           `json:"timeframe_sec"`
}

// Snapshot is the full engine state handed to the presentation layer.
type Snapshot struct {
	Candle        CandleView       `json:"candle"`
	Strategies    []StrategyStatus `json:"strategies"`
	PositionState PositionState    `json:"position_state"`
}

// evaluateStrategies re-derives every strategy's timeframe series from the
// base candles, then scores and replays each one. The active flag goes to the
// highest score, earliest definition on ties.
func evaluateStrategies(reg *strategy.Registry, base []market.Candle, cfg strategy.SimConfig) []StrategyStatus {
	type evaluated struct {
		score float64
		perf  strategy.Performance
	}
	scores := make(map[strategy.Key]float64, len(reg.Entries()))
	byKey := make(map[strategy.Key]evaluated, len(reg.Entries()))
	for _, e := range reg.Entries() {
		series := market.Retimeframe(base, e.Definition.Timeframe)
		closes := market.Closes(series)
		f, ok := strategy.Compute(closes)
		score := strategy.Score(e.Variant, f, ok)
		scores[e.Definition.Key] = score
		byKey[e.Definition.Key] = evaluated{
			score: score,
			perf:  strategy.Simulate(e.Variant, closes, cfg),
		}
	}
	active := reg.ActiveKey(scores)

	out := make([]StrategyStatus, 0, len(reg.Entries()))
	for _, e := range reg.Entries() {
		ev := byKey[e.Definition.Key]
		out = append(out, StrategyStatus{
			Name:          e.Definition.Name,
			Description:   e.Definition.Description,
			WinRate:       round1(strategy.WinRate(ev.score)),
			Active:        e.Definition.Key == active,
			Confidence:    round2(ev.score),
			ReturnPct:     ev.perf.ReturnPct,
			TotalPnL:      ev.perf.TotalPnL,
			UnrealizedPnL: ev.perf.UnrealizedPnL,
			TradeCount:    ev.perf.TradeCount,
			OpenSide:      ev.perf.OpenSide,
			FeesPaid:      ev.perf.FeesPaid,
			TimeframeSec:  e.Definition.Timeframe,
		})
	}
	return out
}

func candleView(c market.Candle, source string) CandleView {
	return CandleView{
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
		Timestamp: time.Unix(c.Time, 0).UTC().Format(time.RFC3339),
		Source:    source,
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }
