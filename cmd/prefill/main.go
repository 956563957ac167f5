package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"htsim/internal/config"
	"htsim/internal/gateway/rowstore"
	"htsim/internal/logger"
	"htsim/internal/prefill"
	"htsim/internal/report"
	"htsim/internal/store"
)

func main() {
	var (
		fromFlag        = flag.String("from", "", "first window to process (RFC3339), default resumes after the last simulation row")
		toFlag          = flag.String("to", "", "last window to process (RFC3339), default now")
		csvPath         = flag.String("csv-path", "simulations_10m.csv", "audit CSV path, empty to disable")
		minPriceRows    = flag.Int("min-price-rows", 40, "base candles required for a full window; fewer logs a partial warning")
		mirrorShortHold = flag.Bool("mirror-short-hold", true, "derive short_hold return as the negated long_hold return")
		sleepSeconds    = flag.Float64("sleep-seconds", 0, "pause between windows")
		reportDir       = flag.String("report-dir", "", "write an HTML returns chart here after the run")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("HTSIM_CONFIG"))
	if err != nil {
		log.Fatalf("loading config failed: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	client, err := rowstore.New(rowstore.Config{
		BaseURL:           cfg.Rowstore.BaseURL,
		APIKey:            cfg.Rowstore.APIKey,
		PriceTable:        cfg.Rowstore.PriceTable,
		SimTable:          cfg.Rowstore.SimTable,
		RequestsPerSecond: cfg.Rowstore.RequestsPerSecond,
	})
	if err != nil {
		log.Fatalf("row store client failed: %v", err)
	}
	mirror, err := store.OpenMirror(cfg.Store.MirrorPath)
	if err != nil {
		log.Fatalf("opening local mirror failed: %v", err)
	}
	defer mirror.Close()

	opts := prefill.Options{
		CSVPath:         *csvPath,
		MinPriceRows:    *minPriceRows,
		MirrorShortHold: *mirrorShortHold,
		Sleep:           time.Duration(*sleepSeconds * float64(time.Second)),
		Notional:        cfg.Engine.Notional,
		FeeRate:         cfg.Engine.FeeRate,
	}
	if opts.From, err = parseTimeFlag(*fromFlag); err != nil {
		log.Fatalf("invalid -from: %v", err)
	}
	if opts.To, err = parseTimeFlag(*toFlag); err != nil {
		log.Fatalf("invalid -to: %v", err)
	}

	runner, err := prefill.NewRunner(client, mirror, opts)
	if err != nil {
		log.Fatalf("building runner failed: %v", err)
	}
	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("prefill failed: %v", err)
	}

	if *reportDir != "" {
		rows, err := mirror.Recent(ctx, 1000)
		if err != nil {
			log.Fatalf("reading mirror for report failed: %v", err)
		}
		// oldest first for the chart
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
		path := report.Filename(*reportDir, time.Now())
		if err := report.RenderFile(path, rows); err != nil {
			log.Fatalf("rendering report failed: %v", err)
		}
		logger.Infof("report written to %s", path)
	}
}

func parseTimeFlag(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
