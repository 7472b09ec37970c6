// Package store persists candles and price snapshots in SQLite via Gorm.
// Both tables rely on upsert-on-conflict semantics: concurrent writers for
// the same key converge to the same upstream truth, so last-writer-wins is
// acceptable and no application-level locking is used.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tickline/internal/market"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

// New opens (creating if needed) the SQLite database at path and migrates
// the schema. ":memory:" is accepted for tests.
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store: database path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&CandleModel{}, &PriceSnapshotModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for concurrent readers while keeping
	// lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertCandles writes bars keyed by (symbol, interval, ts), replacing the
// OHLCV fields on conflict.
func (s *Store) UpsertCandles(ctx context.Context, candles []market.Candle) error {
	if s == nil || s.db == nil || len(candles) == 0 {
		return nil
	}
	now := time.Now().Unix()
	models := make([]CandleModel, 0, len(candles))
	for _, c := range candles {
		if c.Symbol == "" || c.Interval == "" {
			continue
		}
		models = append(models, CandleModel{
			Symbol:    c.Symbol,
			Interval:  string(c.Interval),
			Timestamp: c.Timestamp,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
			UpdatedAt: now,
		})
	}
	if len(models) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "interval"}, {Name: "ts"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"open", "high", "low", "close", "volume", "updated_at",
		}),
	}).Create(&models).Error
}

// RecentCandles returns up to limit most recent bars for (symbol, interval),
// ordered ascending by timestamp.
func (s *Store) RecentCandles(ctx context.Context, symbol string, interval market.Interval, limit int) ([]market.Candle, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	if limit <= 0 {
		limit = 100
	}
	var models []CandleModel
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND interval = ?", symbol, string(interval)).
		Order("ts DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		m := models[i]
		out = append(out, market.Candle{
			Symbol:    m.Symbol,
			Interval:  market.Interval(m.Interval),
			Timestamp: m.Timestamp,
			Open:      m.Open,
			High:      m.High,
			Low:       m.Low,
			Close:     m.Close,
			Volume:    m.Volume,
		})
	}
	return out, nil
}

// UpsertSnapshots writes the latest quote per symbol, keeping the raw
// upstream payload alongside for debugging.
func (s *Store) UpsertSnapshots(ctx context.Context, quotes []market.Quote) error {
	if s == nil || s.db == nil || len(quotes) == 0 {
		return nil
	}
	models := make([]PriceSnapshotModel, 0, len(quotes))
	for _, q := range quotes {
		if q.Symbol == "" {
			continue
		}
		raw, _ := json.Marshal(q)
		updated := q.UpdatedAt
		if updated == 0 {
			updated = time.Now().Unix()
		}
		models = append(models, PriceSnapshotModel{
			Symbol:        q.Symbol,
			Price:         q.Price,
			Change:        q.Change,
			ChangePercent: q.ChangePercent,
			PrevClose:     q.PrevClose,
			LastUpdated:   updated,
			Raw:           raw,
		})
	}
	if len(models) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"price", "change", "change_percent", "prev_close", "last_updated", "raw",
		}),
	}).Create(&models).Error
}

// Snapshots returns the stored quote per requested symbol; symbols with no
// row are absent from the map.
func (s *Store) Snapshots(ctx context.Context, symbols []string) (map[string]market.Quote, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	out := make(map[string]market.Quote, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}
	var models []PriceSnapshotModel
	if err := s.db.WithContext(ctx).Where("symbol IN ?", symbols).Find(&models).Error; err != nil {
		return nil, err
	}
	for _, m := range models {
		out[m.Symbol] = market.Quote{
			Symbol:        m.Symbol,
			Price:         m.Price,
			Change:        m.Change,
			ChangePercent: m.ChangePercent,
			PrevClose:     m.PrevClose,
			UpdatedAt:     m.LastUpdated,
		}
	}
	return out, nil
}

func ensureDir(path string) error {
	if path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
