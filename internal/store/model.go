package store

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CandleModel is one persisted OHLCV bar. The (symbol, interval, ts) key is
// unique; upserts replace the OHLCV fields because in-session bars get
// revised on every refresh.
type CandleModel struct {
	ID        int64           `gorm:"column:id;primaryKey"`
	Symbol    string          `gorm:"column:symbol;uniqueIndex:idx_candle_key,priority:1"`
	Interval  string          `gorm:"column:interval;uniqueIndex:idx_candle_key,priority:2"`
	Timestamp int64           `gorm:"column:ts;uniqueIndex:idx_candle_key,priority:3"`
	Open      decimal.Decimal `gorm:"column:open;type:TEXT"`
	High      decimal.Decimal `gorm:"column:high;type:TEXT"`
	Low       decimal.Decimal `gorm:"column:low;type:TEXT"`
	Close     decimal.Decimal `gorm:"column:close;type:TEXT"`
	Volume    int64           `gorm:"column:volume"`
	UpdatedAt int64           `gorm:"column:updated_at"`
}

func (CandleModel) TableName() string { return "candles" }

// PriceSnapshotModel holds the latest known quote per symbol: the fast read
// path for list views, and the fallback when upstream is unavailable.
type PriceSnapshotModel struct {
	Symbol        string          `gorm:"column:symbol;primaryKey"`
	Price         decimal.Decimal `gorm:"column:price;type:TEXT"`
	Change        decimal.Decimal `gorm:"column:change;type:TEXT"`
	ChangePercent decimal.Decimal `gorm:"column:change_percent;type:TEXT"`
	PrevClose     decimal.Decimal `gorm:"column:prev_close;type:TEXT"`
	LastUpdated   int64           `gorm:"column:last_updated"`
	Raw           datatypes.JSON  `gorm:"column:raw;type:TEXT"`
}

func (PriceSnapshotModel) TableName() string { return "price_snapshots" }
