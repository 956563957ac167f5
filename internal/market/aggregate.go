package market

import "sort"

// IngestTrades buckets raw trades into fixed-width candles. Within a bucket,
// open is the price of the first trade in timestamp order, close the price of
// the last trade processed, high/low are running extremes and volume is the
// quantity sum. Trades without a timestamp are dropped. Output is sorted by
// bucket start ascending.
func IngestTrades(trades []Trade, bucketSeconds int) []Candle {
	if bucketSeconds < 1 {
		bucketSeconds = 1
	}
	width := int64(bucketSeconds)
	buckets := make(map[int64]*Candle)
	ordered := make([]Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].TradeTime < ordered[j].TradeTime })
	for _, tr := range ordered {
		if tr.TradeTime == 0 {
			continue
		}
		sec := tr.TradeTime / 1000
		start := (sec / width) * width
		c, ok := buckets[start]
		if !ok {
			buckets[start] = &Candle{
				Time:   start,
				Open:   tr.Price,
				High:   tr.Price,
				Low:    tr.Price,
				Close:  tr.Price,
				Volume: tr.Quantity,
			}
			continue
		}
		if tr.Price > c.High {
			c.High = tr.Price
		}
		if tr.Price < c.Low {
			c.Low = tr.Price
		}
		c.Close = tr.Price
		c.Volume += tr.Quantity
	}
	return sortBuckets(buckets)
}

// Retimeframe re-buckets already aggregated candles into a coarser timeframe.
// A timeframe of one second or less is a pass-through and returns a copy of
// the input. Applying it twice with the same period is a no-op.
func Retimeframe(candles []Candle, timeframeSeconds int) []Candle {
	if timeframeSeconds <= 1 {
		out := make([]Candle, len(candles))
		copy(out, candles)
		return out
	}
	width := int64(timeframeSeconds)
	buckets := make(map[int64]*Candle)
	for _, c := range candles {
		start := (c.Time / width) * width
		agg, ok := buckets[start]
		if !ok {
			cc := c
			cc.Time = start
			buckets[start] = &cc
			continue
		}
		if c.High > agg.High {
			agg.High = c.High
		}
		if c.Low < agg.Low {
			agg.Low = c.Low
		}
		agg.Close = c.Close
		agg.Volume += c.Volume
	}
	return sortBuckets(buckets)
}

// Closes extracts the close series from a candle slice.
func Closes(candles []Candle) []float64 {
	out := make([]float64, 0, len(candles))
	for _, c := range candles {
		out = append(out, c.Close)
	}
	return out
}

func sortBuckets(buckets map[int64]*Candle) []Candle {
	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]Candle, 0, len(keys))
	for _, k := range keys {
		out = append(out, *buckets[k])
	}
	return out
}
