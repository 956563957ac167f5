package market

// Ring is a bounded candle buffer: appending past capacity evicts the oldest
// entries. Appending a candle for the bucket already at the tail merges into
// it, so the still-open bucket stays mutable until the next bucket starts.
// Ring is not safe for concurrent use; the engine guards it.
type Ring struct {
	capacity int
	candles  []Candle
}

func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{capacity: capacity, candles: make([]Candle, 0, capacity)}
}

func (r *Ring) Append(c Candle) {
	if n := len(r.candles); n > 0 && r.candles[n-1].Time == c.Time {
		last := &r.candles[n-1]
		if c.High > last.High {
			last.High = c.High
		}
		if c.Low < last.Low {
			last.Low = c.Low
		}
		last.Close = c.Close
		last.Volume += c.Volume
		return
	}
	r.candles = append(r.candles, c)
	if len(r.candles) > r.capacity {
		overflow := len(r.candles) - r.capacity
		r.candles = append(r.candles[:0], r.candles[overflow:]...)
	}
}

func (r *Ring) Len() int { return len(r.candles) }

func (r *Ring) Last() (Candle, bool) {
	if len(r.candles) == 0 {
		return Candle{}, false
	}
	return r.candles[len(r.candles)-1], true
}

// Snapshot copies the buffered candles, oldest first.
func (r *Ring) Snapshot() []Candle {
	out := make([]Candle, len(r.candles))
	copy(out, r.candles)
	return out
}

// Tail copies up to n of the most recent candles, oldest first.
func (r *Ring) Tail(n int) []Candle {
	if n <= 0 || len(r.candles) == 0 {
		return nil
	}
	if n > len(r.candles) {
		n = len(r.candles)
	}
	out := make([]Candle, n)
	copy(out, r.candles[len(r.candles)-n:])
	return out
}
