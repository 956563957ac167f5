package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

var (
	CandlesIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "htsim_candles_ingested_total", Help: "Candles applied to the engine buffer"},
		[]string{"symbol", "source"},
	)
	PollErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "htsim_poll_errors_total", Help: "Failed trade feed fetch attempts"},
		[]string{"symbol"},
	)
	SnapshotRequests = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "htsim_snapshot_requests_total", Help: "Snapshot reads served"},
	)
	MockSourceActive = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "htsim_mock_source_active", Help: "1 while candles come from the synthetic source"},
	)
)

func init() {
	prometheus.MustRegister(CandlesIngested, PollErrors, SnapshotRequests, MockSourceActive)
}

// Handler exposes the default registry on a gin route.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
