package strategy

import (
	talib "github.com/markcheno/go-talib"
)

const (
	featureWindowCap = 360
	fastMAPeriod     = 20
	slowMAPeriod     = 60
	rsiPeriod        = 14
	volPeriod        = 60
	rangePeriod      = 50
)

// FeatureSet holds the technical features derived from a close series.
// FastMA/SlowMA are zero when there is not enough history for the period;
// HasRSI marks RSI availability since zero is a legal RSI value.
type FeatureSet struct {
	LastClose   float64
	FastMA      float64
	SlowMA      float64
	RSI         float64
	HasRSI      bool
	VolPct      float64
	High50      float64
	Low50       float64
	RangePos    float64
	RangeEdge   float64
	RangeCenter float64
	Mom15       float64
	Mom30       float64
}

// Compute derives the feature set from a close series, restricted to the
// most recent 360 samples. Returns false with fewer than 5 closes.
func Compute(closes []float64) (FeatureSet, bool) {
	if len(closes) < 5 {
		return FeatureSet{}, false
	}
	if len(closes) > featureWindowCap {
		closes = closes[len(closes)-featureWindowCap:]
	}
	return computeWindow(closes), true
}

// computeWindow derives features over the full window with no cap and no
// minimum-length check. The backtest replay calls it directly on every
// expanding prefix so its output matches the as-of-index semantics.
func computeWindow(closes []float64) FeatureSet {
	f := FeatureSet{LastClose: closes[len(closes)-1]}
	if v, ok := sma(closes, fastMAPeriod); ok {
		f.FastMA = v
	}
	if v, ok := sma(closes, slowMAPeriod); ok {
		f.SlowMA = v
	}
	f.RSI, f.HasRSI = rsi(closes, rsiPeriod)
	f.VolPct = volPct(closes, f.LastClose)

	f.High50, f.Low50 = rangeExtremes(closes, rangePeriod)
	if f.High50 == f.Low50 {
		f.RangePos = 0.5
	} else {
		f.RangePos = clamp01((f.LastClose - f.Low50) / (f.High50 - f.Low50))
	}
	f.RangeEdge = f.RangePos
	if 1-f.RangePos > f.RangeEdge {
		f.RangeEdge = 1 - f.RangePos
	}
	f.RangeCenter = 1 - f.RangeEdge

	f.Mom15 = momentum(closes, 15)
	if len(closes) > 30 {
		f.Mom30 = momentum(closes, 30)
	} else {
		f.Mom30 = f.Mom15
	}
	return f
}

// sma is the arithmetic mean of the last period values.
func sma(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	series := talib.Sma(values, period)
	return series[len(series)-1], true
}

// rsi over the last period deltas, without Wilder smoothing: gains and
// losses are plain sums, rs = gains/losses, and zero losses pin the value
// at 100 instead of dividing by zero.
func rsi(values []float64, period int) (float64, bool) {
	if len(values) <= period {
		return 0, false
	}
	gains, losses := 0.0, 0.0
	for idx := len(values) - period; idx < len(values); idx++ {
		delta := values[idx] - values[idx-1]
		if delta >= 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	if losses == 0 {
		return 100, true
	}
	rs := gains / losses
	return 100 - (100 / (1 + rs)), true
}

// volPct is the population standard deviation of the last 60 closes over the
// latest close; zero when fewer than 2 samples or the close is zero.
func volPct(values []float64, lastClose float64) float64 {
	if len(values) < 2 || lastClose == 0 {
		return 0
	}
	period := volPeriod
	if len(values) < period {
		period = len(values)
	}
	series := talib.StdDev(values, period, 1.0)
	return series[len(series)-1] / lastClose
}

func rangeExtremes(values []float64, period int) (high, low float64) {
	start := 0
	if len(values) > period {
		start = len(values) - period
	}
	high, low = values[start], values[start]
	for _, v := range values[start+1:] {
		if v > high {
			high = v
		}
		if v < low {
			low = v
		}
	}
	return high, low
}

// momentum is the percentage change of the last close against the close n-1
// bars back (index len-n), zero when the window is too short.
func momentum(values []float64, n int) float64 {
	if len(values) <= n {
		return 0
	}
	return safePctChange(values[len(values)-1], values[len(values)-n])
}

func safePctChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
