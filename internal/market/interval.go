package market

import (
	"fmt"
	"strings"
	"time"
)

// Interval is the bucket width for candles.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

// ParseInterval normalizes user input ("1H", "d", "1d") into an Interval.
func ParseInterval(raw string) (Interval, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("interval is required")
	}
	// "1M" (monthly) is the only case-sensitive value; everything else lowercases.
	if s == "1M" || s == "M" {
		return Interval1M, nil
	}
	switch strings.ToLower(s) {
	case "1m":
		return Interval1m, nil
	case "5m":
		return Interval5m, nil
	case "15m":
		return Interval15m, nil
	case "30m":
		return Interval30m, nil
	case "1h", "60", "h":
		return Interval1h, nil
	case "1d", "d", "day":
		return Interval1d, nil
	case "1w", "w", "week":
		return Interval1w, nil
	default:
		return "", fmt.Errorf("unsupported interval %q", raw)
	}
}

// Intraday reports whether the interval is finer than one trading day.
func (iv Interval) Intraday() bool {
	switch iv {
	case Interval1m, Interval5m, Interval15m, Interval30m, Interval1h:
		return true
	default:
		return false
	}
}

// Duration returns the nominal bucket width. Weekly and monthly intervals
// use calendar approximations; they are only used for bucketing cached bars,
// never for wall-clock arithmetic.
func (iv Interval) Duration() time.Duration {
	switch iv {
	case Interval1m:
		return time.Minute
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval30m:
		return 30 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval1d:
		return 24 * time.Hour
	case Interval1w:
		return 7 * 24 * time.Hour
	case Interval1M:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// Bucket truncates an epoch-second timestamp to the interval boundary so
// overlapping upstream pulls merge instead of creating near-adjacent bars.
// Daily and coarser bars are truncated to local midnight in loc.
func (iv Interval) Bucket(ts int64, loc *time.Location) int64 {
	if iv.Intraday() {
		step := int64(iv.Duration() / time.Second)
		if step <= 0 {
			return ts
		}
		return ts - ts%step
	}
	t := time.Unix(ts, 0).In(loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	switch iv {
	case Interval1w:
		// ISO-style week bucket: walk back to Monday.
		for day.Weekday() != time.Monday {
			day = day.AddDate(0, 0, -1)
		}
	case Interval1M:
		day = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	}
	return day.Unix()
}

func (iv Interval) String() string { return string(iv) }
