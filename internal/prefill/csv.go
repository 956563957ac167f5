package prefill

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"htsim/internal/strategy"
)

var csvFields = []string{
	"ts",
	"status",
	"reason",
	"trend_return_pct",
	"mean_revert_return_pct",
	"breakout_return_pct",
	"scalper_return_pct",
	"long_hold_return_pct",
	"short_hold_return_pct",
}

// csvLog appends one audit row per processed window. The header is written
// once when the file is created.
type csvLog struct {
	path string
}

func newCSVLog(path string) (*csvLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		w := csv.NewWriter(f)
		if err := w.Write(csvFields); err != nil {
			f.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return &csvLog{path: path}, nil
}

func (l *csvLog) append(result WindowResult) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	record := []string{
		result.TS.UTC().Format(time.RFC3339),
		result.Status,
		result.Reason,
	}
	for _, key := range []strategy.Key{
		strategy.KeyTrend, strategy.KeyMeanRevert, strategy.KeyBreakout,
		strategy.KeyScalper, strategy.KeyLongHold, strategy.KeyShortHold,
	} {
		if result.Returns == nil {
			record = append(record, "")
			continue
		}
		record = append(record, strconv.FormatFloat(result.Returns[key], 'f', -1, 64))
	}
	w := csv.NewWriter(f)
	if err := w.Write(record); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing csv log: %w", err)
	}
	return nil
}
