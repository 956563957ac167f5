package binance

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"htsim/internal/market"
)

const maxAggTradeLimit = 1000

// Config tunes the REST client. Zero values take the public endpoint with a
// short timeout.
type Config struct {
	BaseURL     string
	HTTPTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	return c
}

// Source fetches aggregated trades over the Binance spot REST API. Public
// market data only, so no credentials are configured.
type Source struct {
	client *binance.Client
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	client := binance.NewClient("", "")
	if base := strings.TrimSpace(final.BaseURL); base != "" {
		client.BaseURL = base
	}
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Source{client: client}
}

// FetchAggTrades returns trades at or after startTime (millisecond epoch,
// zero for the exchange default window) and the newest trade time seen, which
// callers pass back as the next startTime. Records with an unparseable price
// or quantity are dropped.
func (s *Source) FetchAggTrades(ctx context.Context, symbol string, startTime int64, limit int) ([]market.Trade, int64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, 0, fmt.Errorf("symbol is required")
	}
	if limit <= 0 || limit > maxAggTradeLimit {
		limit = maxAggTradeLimit
	}
	svc := s.client.NewAggTradesService().Symbol(symbol).Limit(limit)
	if startTime > 0 {
		svc = svc.StartTime(startTime)
	}
	rows, err := svc.Do(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching agg trades for %s: %w", symbol, err)
	}
	trades := make([]market.Trade, 0, len(rows))
	var lastTime int64
	for _, row := range rows {
		if row == nil {
			continue
		}
		trade, ok := convertAggTrade(row)
		if !ok {
			continue
		}
		trades = append(trades, trade)
		if trade.TradeTime > lastTime {
			lastTime = trade.TradeTime
		}
	}
	return trades, lastTime, nil
}

// convertAggTrade parses the string price and quantity exactly before the
// engine degrades them to float64 aggregates.
func convertAggTrade(row *binance.AggTrade) (market.Trade, bool) {
	price, err := decimal.NewFromString(strings.TrimSpace(row.Price))
	if err != nil || price.IsZero() || price.IsNegative() {
		return market.Trade{}, false
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(row.Quantity))
	if err != nil || qty.IsNegative() {
		return market.Trade{}, false
	}
	if row.Timestamp <= 0 {
		return market.Trade{}, false
	}
	return market.Trade{
		Price:     price.InexactFloat64(),
		Quantity:  qty.InexactFloat64(),
		TradeTime: row.Timestamp,
	}, true
}
