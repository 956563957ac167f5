package strategy

import "math"

// Performance is the result of replaying one strategy over a close series.
type Performance struct {
	ReturnPct     float64 `json:"return_pct"`
	TotalPnL      float64 `json:"total_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	TradeCount    int     `json:"trade_count"`
	OpenSide      Side    `json:"open_side"`
	FeesPaid      float64 `json:"fees_paid"`
}

// SimConfig are the replay constants. Zero values fall back to the engine
// defaults: $10 notional, 4bps per side, 20-close floor, 600-close cap.
type SimConfig struct {
	Notional  float64
	FeeRate   float64
	MinCloses int
	MaxCloses int
}

func (c SimConfig) withDefaults() SimConfig {
	if c.Notional <= 0 {
		c.Notional = 10
	}
	if c.FeeRate <= 0 {
		c.FeeRate = 0.0004
	}
	if c.MinCloses <= 0 {
		c.MinCloses = 20
	}
	if c.MaxCloses <= 0 {
		c.MaxCloses = 600
	}
	return c
}

// Simulate replays the close series index by index, recomputing the full
// feature set as of each index (expanding window, quadratic by construction;
// bounded by the close cap) and trading the variant's signals: a signal
// change closes the held position minus a closing fee, a fresh signal opens
// a position of notional/close with the opening fee debited immediately.
// Trades are counted on entry, so a position still open at the end counts.
// Series shorter than the floor report the zero default instead of running.
func Simulate(v Variant, closes []float64, cfg SimConfig) Performance {
	cfg = cfg.withDefaults()
	if len(closes) < cfg.MinCloses {
		return Performance{}
	}
	if len(closes) > cfg.MaxCloses {
		closes = closes[len(closes)-cfg.MaxCloses:]
	}

	side := SideNone
	var entryPrice, qty, cumulativePnL, feesPaid float64
	tradeCount := 0
	lastPrice := closes[len(closes)-1]

	for idx := 1; idx < len(closes); idx++ {
		window := closes[:idx+1]
		lastClose := window[len(window)-1]
		signal := v.Signal(computeWindow(window))

		if side != SideNone && signal != side {
			if entryPrice != 0 && qty != 0 {
				var pnl float64
				if side == SideLong {
					pnl = (lastClose - entryPrice) * qty
				} else {
					pnl = (entryPrice - lastClose) * qty
				}
				closeFee := cfg.Notional * cfg.FeeRate
				pnl -= closeFee
				cumulativePnL += pnl
				feesPaid += closeFee
			}
			side = SideNone
			entryPrice = 0
			qty = 0
		}

		if signal != SideNone && side == SideNone {
			if lastClose != 0 {
				qty = cfg.Notional / lastClose
			}
			side = signal
			entryPrice = lastClose
			tradeCount++
			openFee := cfg.Notional * cfg.FeeRate
			cumulativePnL -= openFee
			feesPaid += openFee
		}

		lastPrice = lastClose
	}

	unrealized := 0.0
	if side != SideNone && entryPrice != 0 && qty != 0 && lastPrice != 0 {
		if side == SideLong {
			unrealized = (lastPrice - entryPrice) * qty
		} else {
			unrealized = (entryPrice - lastPrice) * qty
		}
	}
	totalPnL := cumulativePnL + unrealized
	return Performance{
		ReturnPct:     round2(totalPnL / cfg.Notional * 100),
		TotalPnL:      round2(totalPnL),
		UnrealizedPnL: round2(unrealized),
		TradeCount:    tradeCount,
		OpenSide:      side,
		FeesPaid:      round4(feesPaid),
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
