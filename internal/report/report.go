package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"htsim/internal/store"
)

type seriesDef struct {
	name  string
	color string
	pick  func(store.SimulationRow) float64
}

var seriesDefs = []seriesDef{
	{"Trend Follow", "#3b82f6", func(r store.SimulationRow) float64 { return r.TrendReturnPct }},
	{"Mean Reversion", "#fbbf24", func(r store.SimulationRow) float64 { return r.MeanRevertReturnPct }},
	{"Breakout Momentum", "#f472b6", func(r store.SimulationRow) float64 { return r.BreakoutReturnPct }},
	{"Volatility Scalper", "#22d3ee", func(r store.SimulationRow) float64 { return r.ScalperReturnPct }},
	{"Long Bias", "#34d399", func(r store.SimulationRow) float64 { return r.LongHoldReturnPct }},
	{"Short Bias", "#f87171", func(r store.SimulationRow) float64 { return r.ShortHoldReturnPct }},
}

// Render writes an HTML line chart of per-strategy window returns.
func Render(w io.Writer, rows []store.SimulationRow) error {
	if len(rows) == 0 {
		return fmt.Errorf("no simulation rows to chart")
	}

	xAxis := make([]string, 0, len(rows))
	for _, row := range rows {
		xAxis = append(xAxis, row.TS.UTC().Format("01-02 15:04"))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:  types.ThemeWesteros,
			Width:  "1400px",
			Height: "640px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Strategy returns per 10-minute window",
			Subtitle: fmt.Sprintf("%d windows, %s .. %s", len(rows), xAxis[0], xAxis[len(xAxis)-1]),
			Left:     "left",
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "return %", Scale: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis)
	for _, def := range seriesDefs {
		data := make([]opts.LineData, 0, len(rows))
		for _, row := range rows {
			data = append(data, opts.LineData{Value: def.pick(row)})
		}
		line.AddSeries(def.name, data, charts.WithLineStyleOpts(opts.LineStyle{Color: def.color, Width: 2}))
	}

	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(w)
}

// RenderFile charts the most recent rows from the mirror into an HTML file.
func RenderFile(path string, rows []store.SimulationRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Render(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Filename builds a timestamped report name.
func Filename(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("strategy_returns_%s.html", now.UTC().Format("20060102_150405")))
}
