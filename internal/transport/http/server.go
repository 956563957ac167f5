package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"htsim/internal/engine"
	"htsim/internal/market"
	"htsim/internal/metrics"
)

const maxHistoryLimit = 10000

// Server exposes engine snapshots and candle history over HTTP.
type Server struct {
	addr   string
	eng    *engine.Engine
	router *gin.Engine
	http   *http.Server
}

type Config struct {
	Addr string
	Mode string
}

func NewServer(cfg Config, eng *engine.Engine) (*Server, error) {
	if eng == nil {
		return nil, errors.New("engine is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8021"
	}
	switch cfg.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{addr: cfg.Addr, eng: eng, router: router}
	s.registerRoutes()
	s.http = &http.Server{Addr: cfg.Addr, Handler: router}
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", metrics.Handler())
	api := s.router.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/history", s.handleHistory)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "source": s.eng.Source()})
}

func (s *Server) handleStatus(c *gin.Context) {
	metrics.SnapshotRequests.Inc()
	c.JSON(http.StatusOK, s.eng.Snapshot())
}

type historyCandle struct {
	Time      int64   `json:"time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Timestamp string  `json:"timestamp"`
}

func (s *Server) handleHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "3000"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be positive"})
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	candles := s.eng.History(limit)
	out := make([]historyCandle, 0, len(candles))
	for _, cd := range candles {
		out = append(out, toHistoryCandle(cd))
	}
	c.JSON(http.StatusOK, gin.H{"candles": out, "source": s.eng.Source()})
}

func toHistoryCandle(c market.Candle) historyCandle {
	return historyCandle{
		Time:      c.Time,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
		Timestamp: time.Unix(c.Time, 0).UTC().Format(time.RFC3339),
	}
}

// Router returns the underlying handler, mostly for tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) ListenAndServe() error {
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
