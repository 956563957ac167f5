package prefill

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"htsim/internal/gateway/rowstore"
	"htsim/internal/logger"
	"htsim/internal/market"
	"htsim/internal/store"
	"htsim/internal/strategy"
)

const (
	windowDuration  = 10 * time.Minute
	priceWindowRows = 40
)

// Options controls one backfill run. Zero From resumes after the last
// simulation row (or the first price row when the table is empty); zero To
// walks up to the current window.
type Options struct {
	From            time.Time
	To              time.Time
	MinPriceRows    int
	CSVPath         string
	MirrorShortHold bool
	Sleep           time.Duration
	Notional        float64
	FeeRate         float64
}

func (o Options) withDefaults() Options {
	if o.MinPriceRows <= 0 {
		o.MinPriceRows = priceWindowRows
	}
	if o.Notional <= 0 {
		o.Notional = 10.0
	}
	if o.FeeRate <= 0 {
		o.FeeRate = 0.0004
	}
	return o
}

// WindowResult is the audit record for one processed window.
type WindowResult struct {
	TS      time.Time
	Status  string // ok, skip, error
	Reason  string
	Returns map[strategy.Key]float64
}

// Runner walks 10-minute windows over the remote price table, replays every
// strategy on each window, and upserts the per-strategy returns both remotely
// and into the local mirror.
type Runner struct {
	client   *rowstore.Client
	mirror   *store.Mirror
	registry *strategy.Registry
	opts     Options
	runID    string
	csv      *csvLog
}

func NewRunner(client *rowstore.Client, mirror *store.Mirror, opts Options) (*Runner, error) {
	if client == nil {
		return nil, fmt.Errorf("rowstore client is required")
	}
	reg, err := strategy.LoadRegistry()
	if err != nil {
		return nil, err
	}
	final := opts.withDefaults()
	r := &Runner{
		client:   client,
		mirror:   mirror,
		registry: reg,
		opts:     final,
		runID:    uuid.NewString(),
	}
	if final.CSVPath != "" {
		log, err := newCSVLog(final.CSVPath)
		if err != nil {
			return nil, err
		}
		r.csv = log
	}
	return r, nil
}

// TruncateWindow floors a time to its 10-minute boundary.
func TruncateWindow(t time.Time) time.Time {
	return t.UTC().Truncate(windowDuration)
}

// Run walks every window from start to end inclusive. Individual window
// failures are recorded and skipped; only resolving the range itself can fail
// the run.
func (r *Runner) Run(ctx context.Context) error {
	start, end, err := r.resolveRange(ctx)
	if err != nil {
		return err
	}
	if start.After(end) {
		logger.Infof("start %s is after end %s, nothing to do", start.Format(time.RFC3339), end.Format(time.RFC3339))
		return nil
	}
	logger.Infof("prefill run %s: %s .. %s", r.runID, start.Format(time.RFC3339), end.Format(time.RFC3339))
	for ts := start; !ts.After(end); ts = ts.Add(windowDuration) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result := r.ProcessWindow(ctx, ts)
		if r.csv != nil {
			if err := r.csv.append(result); err != nil {
				logger.Warnf("csv append failed for %s: %v", result.TS.Format(time.RFC3339), err)
			}
		}
		if r.opts.Sleep > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.opts.Sleep):
			}
		}
	}
	return nil
}

func (r *Runner) resolveRange(ctx context.Context) (time.Time, time.Time, error) {
	end := TruncateWindow(time.Now())
	if !r.opts.To.IsZero() {
		end = TruncateWindow(r.opts.To)
	}
	if !r.opts.From.IsZero() {
		return TruncateWindow(r.opts.From), end, nil
	}
	lastSim, ok, err := r.client.LastSimTime(ctx)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if ok {
		return TruncateWindow(lastSim.Add(windowDuration)), end, nil
	}
	firstPrice, ok, err := r.client.FirstPriceTime(ctx)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("price table has no data")
	}
	return TruncateWindow(firstPrice.Add(windowDuration)), end, nil
}

// ProcessWindow replays all strategies over the candles in the 10-minute
// window ending at ts (exclusive) and upserts the returns row.
func (r *Runner) ProcessWindow(ctx context.Context, ts time.Time) WindowResult {
	windowEnd := TruncateWindow(ts)
	windowStart := windowEnd.Add(-windowDuration)

	raw, err := r.client.FetchPriceWindow(ctx, windowEnd, priceWindowRows)
	if err != nil {
		logger.Errorf("window %s: %v", windowEnd.Format(time.RFC3339), err)
		return WindowResult{TS: windowEnd, Status: "error", Reason: err.Error()}
	}
	window := make([]market.Candle, 0, len(raw))
	for _, c := range raw {
		if c.Time >= windowStart.Unix() {
			window = append(window, c)
		}
	}
	if len(window) == 0 {
		logger.Warnf("window %s: no price rows (raw_count=%d)", windowEnd.Format(time.RFC3339), len(raw))
		return WindowResult{TS: windowEnd, Status: "skip", Reason: "no_price_rows"}
	}
	if len(window) < r.opts.MinPriceRows {
		logger.Warnf("window %s: proceeding with partial price rows (%d/%d)",
			windowEnd.Format(time.RFC3339), len(window), r.opts.MinPriceRows)
	}

	returns := r.replay(window)
	if r.opts.MirrorShortHold {
		returns[strategy.KeyShortHold] = -returns[strategy.KeyLongHold]
	}

	if err := r.client.UpsertSimulation(ctx, windowEnd, returns); err != nil {
		logger.Errorf("window %s: %v", windowEnd.Format(time.RFC3339), err)
		return WindowResult{TS: windowEnd, Status: "error", Reason: err.Error()}
	}
	if r.mirror != nil {
		if err := r.mirrorRow(ctx, windowEnd, returns); err != nil {
			logger.Warnf("window %s: mirroring failed: %v", windowEnd.Format(time.RFC3339), err)
		}
	}
	logger.Infof("window %s: upserted", windowEnd.Format(time.RFC3339))
	return WindowResult{TS: windowEnd, Status: "ok", Returns: returns}
}

func (r *Runner) replay(window []market.Candle) map[strategy.Key]float64 {
	cfg := strategy.SimConfig{Notional: r.opts.Notional, FeeRate: r.opts.FeeRate}
	returns := make(map[strategy.Key]float64, len(r.registry.Entries()))
	for _, e := range r.registry.Entries() {
		series := market.Retimeframe(window, e.Definition.Timeframe)
		perf := strategy.Simulate(e.Variant, market.Closes(series), cfg)
		returns[e.Definition.Key] = perf.ReturnPct
	}
	return returns
}

func (r *Runner) mirrorRow(ctx context.Context, ts time.Time, returns map[strategy.Key]float64) error {
	detail, err := store.EncodeDetail(returns)
	if err != nil {
		return err
	}
	return r.mirror.Upsert(ctx, &store.SimulationRow{
		TS:                  ts,
		RunID:               r.runID,
		TrendReturnPct:      returns[strategy.KeyTrend],
		MeanRevertReturnPct: returns[strategy.KeyMeanRevert],
		BreakoutReturnPct:   returns[strategy.KeyBreakout],
		ScalperReturnPct:    returns[strategy.KeyScalper],
		LongHoldReturnPct:   returns[strategy.KeyLongHold],
		ShortHoldReturnPct:  returns[strategy.KeyShortHold],
		Detail:              detail,
	})
}
