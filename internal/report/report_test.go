package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"htsim/internal/store"
)

func sampleRows(n int) []store.SimulationRow {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := make([]store.SimulationRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, store.SimulationRow{
			TS:                 base.Add(time.Duration(i) * 10 * time.Minute),
			TrendReturnPct:     float64(i) * 0.1,
			LongHoldReturnPct:  0.5,
			ShortHoldReturnPct: -0.5,
		})
	}
	return rows
}

func TestRenderProducesAllSeries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleRows(6)))

	html := buf.String()
	for _, name := range []string{
		"Trend Follow", "Mean Reversion", "Breakout Momentum",
		"Volatility Scalper", "Long Bias", "Short Bias",
	} {
		assert.Contains(t, html, name)
	}
	assert.Contains(t, html, "03-01 10:00")
}

func TestRenderRejectsEmptyInput(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(&buf, nil))
}

func TestRenderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.html")
	require.NoError(t, RenderFile(path, sampleRows(3)))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestFilename(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, filepath.Join("reports", "strategy_returns_20260301_100000.html"), Filename("reports", now))
}
