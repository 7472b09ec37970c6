// Package calendar answers "is the market open" and "which trading session
// should cached data cover" for a single exchange. It is the sole source of
// truth for candle freshness decisions.
package calendar

import (
	"fmt"
	"time"
)

// Clock supplies the current time; injected so tests control "now".
type Clock func() time.Time

// Config describes the exchange's published trading window in its local
// timezone. Times are minutes since local midnight.
type Config struct {
	Timezone       string // e.g. "Asia/Ho_Chi_Minh"
	OpenMinute     int    // e.g. 9*60 for 09:00
	CloseMinute    int    // e.g. 15*60 for 15:00
	AfternoonStart int    // hour marking the afternoon session, e.g. 13
}

// Calendar computes market-hours state. Stateless besides the injected clock.
type Calendar struct {
	loc            *time.Location
	openMinute     int
	closeMinute    int
	afternoonStart int
	now            Clock
}

func New(cfg Config, now Clock) (*Calendar, error) {
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Ho_Chi_Minh"
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading exchange timezone failed: %w", err)
	}
	if cfg.OpenMinute <= 0 {
		cfg.OpenMinute = 9 * 60
	}
	if cfg.CloseMinute <= cfg.OpenMinute {
		cfg.CloseMinute = 15 * 60
	}
	if cfg.AfternoonStart <= 0 {
		cfg.AfternoonStart = 13
	}
	if now == nil {
		now = time.Now
	}
	return &Calendar{
		loc:            loc,
		openMinute:     cfg.OpenMinute,
		closeMinute:    cfg.CloseMinute,
		afternoonStart: cfg.AfternoonStart,
		now:            now,
	}, nil
}

// Location returns the exchange timezone.
func (c *Calendar) Location() *time.Location { return c.loc }

// Now returns the injected clock's current time in the exchange timezone.
func (c *Calendar) Now() time.Time { return c.now().In(c.loc) }

// AfternoonStartHour is the local hour at which the afternoon session opens.
func (c *Calendar) AfternoonStartHour() int { return c.afternoonStart }

// IsOpen reports whether the market is trading at t: false on weekends,
// true on weekdays within the published window.
func (c *Calendar) IsOpen(t time.Time) bool {
	lt := t.In(c.loc)
	switch lt.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minute := lt.Hour()*60 + lt.Minute()
	return minute >= c.openMinute && minute < c.closeMinute
}

// IsTradingDay reports whether t falls on a weekday, regardless of the hour.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	switch t.In(c.loc).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// LastSessionDate returns the calendar date (local midnight) of the most
// recently completed or currently open trading session, walking backward
// from t:
//
//	Sunday            -> Friday (-2 days)
//	Saturday          -> Friday (-1 day)
//	Monday pre-open   -> Friday (-3 days)
//	weekday pre-open  -> previous day (-1 day)
//	weekday otherwise -> same day
func (c *Calendar) LastSessionDate(t time.Time) time.Time {
	lt := t.In(c.loc)
	day := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, c.loc)
	switch lt.Weekday() {
	case time.Sunday:
		return day.AddDate(0, 0, -2)
	case time.Saturday:
		return day.AddDate(0, 0, -1)
	}
	minute := lt.Hour()*60 + lt.Minute()
	if minute < c.openMinute {
		if lt.Weekday() == time.Monday {
			return day.AddDate(0, 0, -3)
		}
		return day.AddDate(0, 0, -1)
	}
	return day
}

// SameSessionDate reports whether the epoch-second timestamp ts falls on the
// session date want (a local midnight value from LastSessionDate).
func (c *Calendar) SameSessionDate(ts int64, want time.Time) bool {
	bt := time.Unix(ts, 0).In(c.loc)
	return bt.Year() == want.Year() && bt.YearDay() == want.YearDay()
}
