package strategy

// Side is a strategy's directional decision for the current evaluation.
type Side string

const (
	SideNone  Side = ""
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Variant carries the signal and scoring behavior of one strategy. The set
// of implementations is closed; the registry refuses keys it does not know.
type Variant interface {
	Key() Key
	Signal(f FeatureSet) Side
	score(f FeatureSet) float64
}

var variants = map[Key]Variant{
	KeyTrend:      trendVariant{},
	KeyMeanRevert: meanRevertVariant{},
	KeyBreakout:   breakoutVariant{},
	KeyScalper:    scalperVariant{},
	KeyLongHold:   holdVariant{key: KeyLongHold, side: SideLong},
	KeyShortHold:  holdVariant{key: KeyShortHold, side: SideShort},
}

// Score is the display confidence in [0,100]; 50 when features are
// unavailable.
func Score(v Variant, f FeatureSet, ok bool) float64 {
	if !ok {
		return 50
	}
	return v.score(f)
}

// WinRate maps a confidence score onto the displayed win-rate percentage.
func WinRate(score float64) float64 {
	return clampScore(45 + score*0.35)
}

type trendVariant struct{}

func (trendVariant) Key() Key { return KeyTrend }

func (trendVariant) Signal(f FeatureSet) Side {
	if f.FastMA > 0 && f.SlowMA > 0 {
		if f.FastMA > f.SlowMA*1.001 && f.Mom15 >= 0 {
			return SideLong
		}
		if f.FastMA < f.SlowMA*0.999 && f.Mom15 <= 0 {
			return SideShort
		}
	}
	return SideNone
}

func (trendVariant) score(f FeatureSet) float64 {
	score := 20.0
	if f.FastMA > 0 && f.SlowMA > 0 {
		score += max0((f.FastMA-f.SlowMA)/f.SlowMA) * 6000
	}
	score += max0(f.Mom15) * 9000
	score += max0(f.Mom30) * 7000
	score += capAt(f.VolPct*3000, 12)
	return clampScore(score)
}

type meanRevertVariant struct{}

func (meanRevertVariant) Key() Key { return KeyMeanRevert }

func (meanRevertVariant) Signal(f FeatureSet) Side {
	if f.HasRSI {
		if f.RSI > 65 {
			return SideShort
		}
		if f.RSI < 35 {
			return SideLong
		}
	}
	return SideNone
}

func (meanRevertVariant) score(f FeatureSet) float64 {
	score := 10.0
	if f.HasRSI {
		score += max0(abs(f.RSI-50)-8) * 2.6
	}
	score += f.RangeCenter * 35
	score -= capAt(f.VolPct*5000, 25)
	return clampScore(score)
}

type breakoutVariant struct{}

func (breakoutVariant) Key() Key { return KeyBreakout }

func (breakoutVariant) Signal(f FeatureSet) Side {
	if f.LastClose >= f.High50*0.999 {
		return SideLong
	}
	if f.LastClose <= f.Low50*1.001 {
		return SideShort
	}
	if abs(f.Mom15) > 0.004 && f.VolPct > 0.003 {
		if f.Mom15 > 0 {
			return SideLong
		}
		return SideShort
	}
	return SideNone
}

func (breakoutVariant) score(f FeatureSet) float64 {
	score := 15.0
	score += f.RangeEdge * 50
	score += max0(f.Mom15) * 12000
	score += max0(f.Mom30) * 9000
	score += capAt(f.VolPct*12000, 40)
	return clampScore(score)
}

type scalperVariant struct{}

func (scalperVariant) Key() Key { return KeyScalper }

func (scalperVariant) Signal(f FeatureSet) Side {
	if f.VolPct < 0.0015 {
		return SideNone
	}
	if f.RangePos >= 0.35 && f.RangePos <= 0.65 {
		if f.Mom15 > 0 {
			return SideLong
		}
		if f.Mom15 < 0 {
			return SideShort
		}
	}
	return SideNone
}

func (scalperVariant) score(f FeatureSet) float64 {
	score := 15.0
	score += capAt(f.VolPct*15000, 55)
	score += max0(1-abs(f.RangePos-0.5)*2) * 35
	score -= abs(f.Mom15) * 5000
	return clampScore(score)
}

// holdVariant covers long_hold and short_hold: a constant signal with a
// constant score of 55.
type holdVariant struct {
	key  Key
	side Side
}

func (h holdVariant) Key() Key               { return h.key }
func (h holdVariant) Signal(FeatureSet) Side { return h.side }
func (holdVariant) score(FeatureSet) float64 { return 55 }

func max0(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}

func capAt(v, limit float64) float64 {
	if v < limit {
		return v
	}
	return limit
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
