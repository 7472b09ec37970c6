package syncer

import (
	"context"
	"time"

	"tickline/internal/guard"
	"tickline/internal/logger"
	"tickline/internal/market"
)

// Warmer refreshes the configured watchlist's candles on a schedule so the
// first user poll after the open hits a warm cache. It runs through the
// normal synchronizer path and therefore respects the circuit breaker.
type Warmer struct {
	candles   *CandleSyncer
	breaker   *guard.Breaker
	symbols   []string
	intervals []market.Interval
}

func NewWarmer(candles *CandleSyncer, breaker *guard.Breaker, symbols []string, intervals []market.Interval) *Warmer {
	if len(intervals) == 0 {
		intervals = []market.Interval{market.Interval1h, market.Interval1d}
	}
	return &Warmer{candles: candles, breaker: breaker, symbols: symbols, intervals: intervals}
}

// Run walks the watchlist once. Failures are logged and skipped; an open
// breaker aborts the whole pass since every remaining call would fail fast
// anyway.
func (w *Warmer) Run(ctx context.Context) {
	if w == nil || w.candles == nil || len(w.symbols) == 0 {
		return
	}
	start := time.Now()
	refreshed := 0
	for _, sym := range w.symbols {
		if ctx.Err() != nil {
			return
		}
		if w.breaker != nil && w.breaker.Open(time.Now()) {
			logger.Warnf("[warmup] breaker open, aborting pass after %d refreshes", refreshed)
			return
		}
		for _, iv := range w.intervals {
			if _, err := w.candles.GetCandles(ctx, sym, iv, 60); err != nil {
				logger.Warnf("[warmup] %s %s failed: %v", sym, iv, err)
				continue
			}
			refreshed++
		}
	}
	logger.Debugf("[warmup] pass finished: %d refreshes in %s", refreshed, time.Since(start).Round(time.Millisecond))
}
