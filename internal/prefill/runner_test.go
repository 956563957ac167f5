package prefill

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"htsim/internal/gateway/rowstore"
	"htsim/internal/store"
	"htsim/internal/strategy"
)

type fakeRowstore struct {
	priceRows []map[string]any // served newest first
	simRows   []map[string]any
	upserts   [][]byte
}

func (f *fakeRowstore) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/price_15s"):
			rows := f.priceRows
			if r.URL.Query().Get("order") == "ts.asc" && len(rows) > 1 {
				rows = []map[string]any{rows[len(rows)-1]}
			}
			require.NoError(t, json.NewEncoder(w).Encode(rows))
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/simulations_10m"):
			require.NoError(t, json.NewEncoder(w).Encode(f.simRows))
		case r.Method == http.MethodPost:
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			f.upserts = append(f.upserts, body)
			_, _ = w.Write([]byte("[]"))
		default:
			http.NotFound(w, r)
		}
	}
}

func windowRows(end time.Time, n int) []map[string]any {
	rows := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		ts := end.Add(-time.Duration(i+1) * 15 * time.Second)
		price := 100.0 + float64(n-i)
		rows = append(rows, map[string]any{
			"ts": ts.Format(time.RFC3339), "open": price, "high": price, "low": price, "close": price, "volume": 1,
		})
	}
	return rows
}

func newTestRunner(t *testing.T, fake *fakeRowstore, opts Options) *Runner {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	client, err := rowstore.New(rowstore.Config{
		BaseURL:           srv.URL,
		APIKey:            "k",
		RequestsPerSecond: 1000,
	})
	require.NoError(t, err)

	mirror, err := store.OpenMirror(filepath.Join(t.TempDir(), "sim.db"))
	require.NoError(t, err)
	t.Cleanup(func() { mirror.Close() })

	runner, err := NewRunner(client, mirror, opts)
	require.NoError(t, err)
	return runner
}

func TestTruncateWindow(t *testing.T) {
	in := time.Date(2026, 3, 1, 10, 17, 42, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 10, 0, 0, time.UTC), TruncateWindow(in))
}

func TestProcessWindowUpsertsAndMirrorsShortHold(t *testing.T) {
	end := time.Date(2026, 3, 1, 10, 10, 0, 0, time.UTC)
	fake := &fakeRowstore{priceRows: windowRows(end, 40)}
	runner := newTestRunner(t, fake, Options{MirrorShortHold: true})

	result := runner.ProcessWindow(context.Background(), end)
	require.Equal(t, "ok", result.Status)
	require.Len(t, fake.upserts, 1)

	row := gjson.ParseBytes(fake.upserts[0]).Array()[0]
	assert.Equal(t, "2026-03-01T10:10:00Z", row.Get("ts").String())
	longHold := row.Get("long_hold_return_pct").Float()
	assert.InDelta(t, -longHold, row.Get("short_hold_return_pct").Float(), 1e-9)
	// prices rise through the window, so the always-long replay gains
	assert.Positive(t, longHold)

	mirrored, err := runner.mirror.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, mirrored, 1)
	assert.InDelta(t, longHold, mirrored[0].LongHoldReturnPct, 1e-9)
	assert.NotEmpty(t, mirrored[0].RunID)
}

func TestProcessWindowSkipsEmptyWindow(t *testing.T) {
	fake := &fakeRowstore{}
	runner := newTestRunner(t, fake, Options{})

	result := runner.ProcessWindow(context.Background(), time.Date(2026, 3, 1, 10, 10, 0, 0, time.UTC))
	assert.Equal(t, "skip", result.Status)
	assert.Equal(t, "no_price_rows", result.Reason)
	assert.Empty(t, fake.upserts)
}

func TestRunResumesAfterLastSimRow(t *testing.T) {
	end := time.Date(2026, 3, 1, 10, 20, 0, 0, time.UTC)
	fake := &fakeRowstore{
		priceRows: windowRows(end, 40),
		simRows:   []map[string]any{{"ts": "2026-03-01T10:00:00Z"}},
	}
	csvPath := filepath.Join(t.TempDir(), "audit.csv")
	runner := newTestRunner(t, fake, Options{To: end, CSVPath: csvPath, MirrorShortHold: true})

	require.NoError(t, runner.Run(context.Background()))
	// resumes at 10:10 and walks through 10:20: two windows
	assert.Len(t, fake.upserts, 2)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3) // header + two rows
	assert.True(t, strings.HasPrefix(lines[0], "ts,status,reason"))
	assert.Contains(t, lines[1], "2026-03-01T10:10:00Z,ok")
}

func TestRunNothingToDo(t *testing.T) {
	fake := &fakeRowstore{simRows: []map[string]any{{"ts": "2026-03-01T10:00:00Z"}}}
	runner := newTestRunner(t, fake, Options{To: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)})
	require.NoError(t, runner.Run(context.Background()))
	assert.Empty(t, fake.upserts)
}

func TestReplayBelowFloorYieldsZeroLongTimeframes(t *testing.T) {
	end := time.Date(2026, 3, 1, 10, 10, 0, 0, time.UTC)
	fake := &fakeRowstore{priceRows: windowRows(end, 40)}
	runner := newTestRunner(t, fake, Options{})

	result := runner.ProcessWindow(context.Background(), end)
	require.Equal(t, "ok", result.Status)
	// 40 base candles collapse to 10 one-minute candles, under the 20-close
	// replay floor
	assert.Zero(t, result.Returns[strategy.KeyTrend])
}
