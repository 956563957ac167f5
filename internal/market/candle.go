package market

// Candle is one OHLCV bar. Time is the bucket start in unix seconds and is
// always a multiple of the bucket width that produced it.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Trade is a single raw trade from the upstream feed. TradeTime is in unix
// milliseconds; zero means the feed omitted it.
type Trade struct {
	Price     float64
	Quantity  float64
	TradeTime int64
}
