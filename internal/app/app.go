package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"htsim/internal/config"
	"htsim/internal/engine"
	"htsim/internal/gateway/binance"
	"htsim/internal/logger"
	"htsim/internal/store"
	transporthttp "htsim/internal/transport/http"
)

// App wires the engine, the trade feed, the candle cache, and the HTTP
// surface. NewApp builds everything without starting anything; Run drives the
// poll loop and the server until the context ends.
type App struct {
	cfg     *config.Config
	eng     *engine.Engine
	cache   *store.CandleCache
	source  *binance.Source
	server  *transporthttp.Server
	poller  *poller
	applier *applier
}

func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.LogLevel)

	eng, err := engine.New(engine.Options{
		BaseSeconds:    cfg.Engine.BaseSeconds,
		CycleSeconds:   cfg.Engine.CycleSeconds,
		Notional:       cfg.Engine.Notional,
		FeeRate:        cfg.Engine.FeeRate,
		BufferCapacity: cfg.Engine.BufferCapacity,
	}, cfg.Engine.MockSeed)
	if err != nil {
		return nil, err
	}

	cache, err := store.NewCandleCache(cfg.Store.CandleCacheDir)
	if err != nil {
		return nil, fmt.Errorf("opening candle cache: %w", err)
	}

	source := binance.New(binance.Config{})
	server, err := transporthttp.NewServer(transporthttp.Config{
		Addr: cfg.Server.Listen,
		Mode: cfg.Server.Mode,
	}, eng)
	if err != nil {
		cache.Close()
		return nil, err
	}

	a := &App{
		cfg:    cfg,
		eng:    eng,
		cache:  cache,
		source: source,
		server: server,
	}
	a.poller = newPoller(source, cfg.Market, cfg.Engine.BaseSeconds)
	a.applier = newApplier(eng, cache, cfg.Market.Symbol)
	return a, nil
}

// Run seeds history, then runs the poll loop, the applier, and the HTTP
// server. Returns when the context is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.seed(ctx)

	updates := make(chan batch, 4)
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.poller.run(ctx, updates)
	})
	group.Go(func() error {
		return a.applier.run(ctx, updates)
	})
	group.Go(func() error {
		logger.Infof("http server listening on %s", a.cfg.Server.Listen)
		return a.server.ListenAndServe()
	})
	group.Go(func() error {
		<-ctx.Done()
		return a.server.Shutdown(context.Background())
	})
	err := group.Wait()
	if closeErr := a.cache.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// seed preloads the engine buffer: cached candles first, then one live fetch
// to catch up. A failed fetch is not fatal; the poll loop degrades to the
// synthetic source on its own.
func (a *App) seed(ctx context.Context) {
	cached, err := a.cache.Recent(ctx, a.cfg.Market.Symbol, a.cfg.Engine.BufferCapacity)
	if err != nil {
		logger.Warnf("reading cached candles failed: %v", err)
	} else if len(cached) > 0 {
		a.eng.SeedCandles(cached)
		a.poller.lastTradeTime = cached[len(cached)-1].Time * 1000
		logger.Infof("seeded %d candles from cache", len(cached))
	}
	if b, ok := a.poller.pollOnce(ctx); ok {
		if n := a.applier.apply(ctx, b); n > 0 {
			logger.Infof("seeded %d candles from live feed", n)
		}
	}
}

// Engine exposes the engine instance for tests and replay harnesses.
func (a *App) Engine() *engine.Engine { return a.eng }
