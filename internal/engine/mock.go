package engine

import (
	"math/rand"

	"htsim/internal/market"
)

const (
	syntheticStartPrice = 98000.0
	syntheticFloor      = 1000.0
	syntheticMaxDrift   = 180.0
	syntheticMaxWick    = 60.0
)

// SyntheticSource generates random-walk candles so the engine keeps serving
// well-formed snapshots while the live feed is unreachable. Each candle opens
// at the previous close, drifts by a bounded random amount, and never goes
// below a hard price floor.
type SyntheticSource struct {
	rng   *rand.Rand
	price float64
}

func NewSyntheticSource(seed int64) *SyntheticSource {
	return &SyntheticSource{
		rng:   rand.New(rand.NewSource(seed)),
		price: syntheticStartPrice,
	}
}

// Seed resets the walk onto a real price, typically the last live close
// before the feed dropped, so the synthetic series continues from it.
func (s *SyntheticSource) Seed(price float64) {
	if price > 0 {
		s.price = price
	}
}

// Next produces one candle at the given bucket time and advances the walk.
func (s *SyntheticSource) Next(bucketTime int64) market.Candle {
	open := s.price
	drift := (s.rng.Float64()*2 - 1) * syntheticMaxDrift
	closePrice := open + drift
	if closePrice < syntheticFloor {
		closePrice = syntheticFloor
	}
	high := open
	if closePrice > high {
		high = closePrice
	}
	high += s.rng.Float64() * syntheticMaxWick
	low := open
	if closePrice < low {
		low = closePrice
	}
	low -= s.rng.Float64() * syntheticMaxWick
	s.price = closePrice
	return market.Candle{
		Time:   bucketTime,
		Open:   round2(open),
		High:   round2(high),
		Low:    round2(low),
		Close:  round2(closePrice),
		Volume: round2(50 + s.rng.Float64()*400),
	}
}
