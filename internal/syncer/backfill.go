package syncer

import (
	"context"
	"sync"

	"tickline/internal/logger"
	"tickline/internal/market"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// HistoryFetcher is the slice of the candle synchronizer the backfiller
// needs; backfill runs through the same path so it respects the breaker.
type HistoryFetcher interface {
	GetCandles(ctx context.Context, symbol string, interval market.Interval, limit int) ([]market.Candle, error)
}

// Backfiller refreshes stale sparklines off the response path. Its
// cancellation scope is the process lifetime, not any single request:
// submitters fire and forget, and failures are logged, never surfaced.
type Backfiller struct {
	ctx      context.Context
	fetch    HistoryFetcher
	sem      *semaphore.Weighted
	interval market.Interval
	points   int

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewBackfiller caps concurrent backfills at workers. ctx should be the
// process-lifetime context; cancelling it drains the pool.
func NewBackfiller(ctx context.Context, fetch HistoryFetcher, workers int, interval market.Interval, points int) *Backfiller {
	if workers <= 0 {
		workers = 3
	}
	if points <= 0 {
		points = 30
	}
	if interval == "" {
		interval = market.Interval1h
	}
	return &Backfiller{
		ctx:      ctx,
		fetch:    fetch,
		sem:      semaphore.NewWeighted(int64(workers)),
		interval: interval,
		points:   points,
		inflight: make(map[string]struct{}),
	}
}

// Submit queues one symbol for background refresh. When the pool is
// saturated the submission is dropped rather than queued: during a
// cache-cold event (process restart, everything stale at once) an unbounded
// queue would amplify upstream load for data the response already shipped
// without.
func (b *Backfiller) Submit(symbol string) {
	if b == nil || b.fetch == nil || symbol == "" {
		return
	}
	b.mu.Lock()
	if _, dup := b.inflight[symbol]; dup {
		b.mu.Unlock()
		return
	}
	b.inflight[symbol] = struct{}{}
	b.mu.Unlock()

	if !b.sem.TryAcquire(1) {
		b.forget(symbol)
		logger.Debugf("[backfill] pool saturated, dropping %s", symbol)
		return
	}

	job := uuid.NewString()[:8]
	go func() {
		defer b.sem.Release(1)
		defer b.forget(symbol)
		if b.ctx.Err() != nil {
			return
		}
		if _, err := b.fetch.GetCandles(b.ctx, symbol, b.interval, b.points); err != nil {
			logger.Warnf("[backfill %s] %s %s failed: %v", job, symbol, b.interval, err)
			return
		}
		logger.Debugf("[backfill %s] refreshed %s %s", job, symbol, b.interval)
	}()
}

func (b *Backfiller) forget(symbol string) {
	b.mu.Lock()
	delete(b.inflight, symbol)
	b.mu.Unlock()
}
