package rowstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"htsim/internal/market"
	"htsim/internal/strategy"
)

// Config points at a PostgREST-style row store.
type Config struct {
	BaseURL           string
	APIKey            string
	PriceTable        string
	SimTable          string
	RequestsPerSecond float64
	HTTPTimeout       time.Duration
}

func (c Config) withDefaults() Config {
	if c.PriceTable == "" {
		c.PriceTable = "price_15s"
	}
	if c.SimTable == "" {
		c.SimTable = "simulations_10m"
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 4
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 20 * time.Second
	}
	return c
}

// Client reads base candles from and writes simulation rows to the remote
// row store. All requests share one rate limiter so a long backfill walk
// stays under the service quota.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

func New(cfg Config) (*Client, error) {
	final := cfg.withDefaults()
	if strings.TrimSpace(final.BaseURL) == "" {
		return nil, fmt.Errorf("rowstore base url is required")
	}
	if strings.TrimSpace(final.APIKey) == "" {
		return nil, fmt.Errorf("rowstore api key is required")
	}
	final.BaseURL = strings.TrimRight(final.BaseURL, "/")
	return &Client{
		cfg:     final,
		http:    &http.Client{Timeout: final.HTTPTimeout},
		limiter: rate.NewLimiter(rate.Limit(final.RequestsPerSecond), 1),
	}, nil
}

func (c *Client) do(ctx context.Context, req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.cfg.APIKey)
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("row store returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, table string, params url.Values) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", c.cfg.BaseURL, table, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, req)
}

// FetchPriceWindow returns up to limit base candles strictly before the given
// time, oldest first. Rows with a missing or unparseable timestamp are
// dropped; a null volume reads as zero.
func (c *Client) FetchPriceWindow(ctx context.Context, before time.Time, limit int) ([]market.Candle, error) {
	params := url.Values{}
	params.Set("select", "ts,open,high,low,close,volume")
	params.Set("order", "ts.desc")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("ts", "lt."+before.UTC().Format(time.RFC3339))
	body, err := c.get(ctx, c.cfg.PriceTable, params)
	if err != nil {
		return nil, fmt.Errorf("fetching price window: %w", err)
	}
	rows := gjson.ParseBytes(body).Array()
	candles := make([]market.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		ts, err := time.Parse(time.RFC3339, row.Get("ts").String())
		if err != nil {
			continue
		}
		candles = append(candles, market.Candle{
			Time:   ts.Unix(),
			Open:   row.Get("open").Float(),
			High:   row.Get("high").Float(),
			Low:    row.Get("low").Float(),
			Close:  row.Get("close").Float(),
			Volume: row.Get("volume").Float(),
		})
	}
	return candles, nil
}

// FirstPriceTime returns the earliest base candle timestamp, false when the
// table is empty.
func (c *Client) FirstPriceTime(ctx context.Context) (time.Time, bool, error) {
	return c.boundaryTime(ctx, c.cfg.PriceTable, "ts.asc")
}

// LastSimTime returns the newest simulation row timestamp, false when the
// table is empty. The backfill walk resumes from it.
func (c *Client) LastSimTime(ctx context.Context) (time.Time, bool, error) {
	return c.boundaryTime(ctx, c.cfg.SimTable, "ts.desc")
}

func (c *Client) boundaryTime(ctx context.Context, table, order string) (time.Time, bool, error) {
	params := url.Values{}
	params.Set("select", "ts")
	params.Set("order", order)
	params.Set("limit", "1")
	body, err := c.get(ctx, table, params)
	if err != nil {
		return time.Time{}, false, err
	}
	rows := gjson.ParseBytes(body).Array()
	if len(rows) == 0 {
		return time.Time{}, false, nil
	}
	raw := rows[0].Get("ts").String()
	if raw == "" {
		return time.Time{}, false, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing ts %q from %s: %w", raw, table, err)
	}
	return ts.UTC(), true, nil
}

// UpsertSimulation writes one per-strategy returns row keyed by ts,
// overwriting an existing row for the same window.
func (c *Client) UpsertSimulation(ctx context.Context, ts time.Time, returns map[strategy.Key]float64) error {
	payload := []map[string]any{{
		"ts":                     ts.UTC().Format(time.RFC3339),
		"trend_return_pct":       returns[strategy.KeyTrend],
		"mean_revert_return_pct": returns[strategy.KeyMeanRevert],
		"breakout_return_pct":    returns[strategy.KeyBreakout],
		"scalper_return_pct":     returns[strategy.KeyScalper],
		"long_hold_return_pct":   returns[strategy.KeyLongHold],
		"short_hold_return_pct":  returns[strategy.KeyShortHold],
	}}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/rest/v1/%s?on_conflict=ts", c.cfg.BaseURL, c.cfg.SimTable)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=representation")
	if _, err := c.do(ctx, req); err != nil {
		return fmt.Errorf("upserting simulation row: %w", err)
	}
	return nil
}
