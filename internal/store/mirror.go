package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SimulationRow is one 10-minute window of per-strategy returns, mirrored
// locally so reports and audits work without the remote row store. Detail
// keeps the full performance records as JSON.
type SimulationRow struct {
	TS                  time.Time      `gorm:"column:ts;primaryKey" json:"ts"`
	RunID               string         `gorm:"column:run_id;index" json:"run_id"`
	TrendReturnPct      float64        `gorm:"column:trend_return_pct" json:"trend_return_pct"`
	MeanRevertReturnPct float64        `gorm:"column:mean_revert_return_pct" json:"mean_revert_return_pct"`
	BreakoutReturnPct   float64        `gorm:"column:breakout_return_pct" json:"breakout_return_pct"`
	ScalperReturnPct    float64        `gorm:"column:scalper_return_pct" json:"scalper_return_pct"`
	LongHoldReturnPct   float64        `gorm:"column:long_hold_return_pct" json:"long_hold_return_pct"`
	ShortHoldReturnPct  float64        `gorm:"column:short_hold_return_pct" json:"short_hold_return_pct"`
	Detail              datatypes.JSON `gorm:"column:detail;type:TEXT" json:"detail,omitempty"`
}

func (SimulationRow) TableName() string { return "simulations_10m" }

// Mirror is the local gorm-backed copy of the simulation table.
type Mirror struct {
	db *gorm.DB
}

func OpenMirror(path string) (*Mirror, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("mirror path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&SimulationRow{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Mirror{db: db}, nil
}

func (m *Mirror) Close() error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Upsert writes or replaces the row for its window timestamp.
func (m *Mirror) Upsert(ctx context.Context, row *SimulationRow) error {
	if row == nil {
		return fmt.Errorf("simulation row cannot be nil")
	}
	return m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ts"}},
		UpdateAll: true,
	}).Create(row).Error
}

// Recent returns up to limit rows, newest first.
func (m *Mirror) Recent(ctx context.Context, limit int) ([]SimulationRow, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []SimulationRow
	err := m.db.WithContext(ctx).Order("ts DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// Range returns rows with from <= ts <= to, oldest first.
func (m *Mirror) Range(ctx context.Context, from, to time.Time) ([]SimulationRow, error) {
	var rows []SimulationRow
	err := m.db.WithContext(ctx).
		Where("ts BETWEEN ? AND ?", from, to).
		Order("ts ASC").
		Find(&rows).Error
	return rows, err
}

// EncodeDetail marshals any value into the JSON detail column.
func EncodeDetail(v any) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
