package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar. Timestamp is the bar-open time in epoch seconds,
// already bucketed to the interval boundary (top of the hour for hourly bars,
// local exchange midnight for daily and coarser bars).
type Candle struct {
	Symbol    string          `json:"symbol"`
	Interval  Interval        `json:"interval"`
	Timestamp int64           `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
}

// Time returns the bar-open time in the given location.
func (c Candle) Time(loc *time.Location) time.Time {
	return time.Unix(c.Timestamp, 0).In(loc)
}

// Quote is the latest known state of a symbol for list views.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	PrevClose     decimal.Decimal `json:"prev_close"`
	Sparkline     []float64       `json:"sparkline"`
	UpdatedAt     int64           `json:"updated_at"`
}
