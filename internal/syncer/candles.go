// Package syncer holds the two caller-facing synchronizers: chart candles
// and watchlist quotes. Both decide per request whether persisted data is
// trustworthy for the current market state or must be refreshed upstream
// through the rate-limit guard.
package syncer

import (
	"context"
	"sort"
	"time"

	"tickline/internal/calendar"
	"tickline/internal/guard"
	"tickline/internal/logger"
	"tickline/internal/market"
)

// CandleStore is the slice of the persistence layer the synchronizers need.
type CandleStore interface {
	UpsertCandles(ctx context.Context, candles []market.Candle) error
	RecentCandles(ctx context.Context, symbol string, interval market.Interval, limit int) ([]market.Candle, error)
}

// SnapshotStore persists the latest quote per symbol.
type SnapshotStore interface {
	UpsertSnapshots(ctx context.Context, quotes []market.Quote) error
	Snapshots(ctx context.Context, symbols []string) (map[string]market.Quote, error)
}

// Decision is the per-request outcome of the freshness evaluation.
type Decision int

const (
	ServeCached Decision = iota
	RefreshThenServe
	ServeStaleFallback
)

func (d Decision) String() string {
	switch d {
	case ServeCached:
		return "serve-cached"
	case RefreshThenServe:
		return "refresh-then-serve"
	case ServeStaleFallback:
		return "serve-stale-fallback"
	default:
		return "unknown"
	}
}

type CandleConfig struct {
	// SymbolSuffix qualifies bare tickers ("FPT" -> "FPT.VN").
	SymbolSuffix string
	// ColdThreshold is the cached-bar count below which the cache counts as
	// cold and gets the large backfill window.
	ColdThreshold int
	// ColdWindow / IncrementalWindow are the upstream fetch sizes in bars.
	ColdWindow        int
	IncrementalWindow int
}

func (c CandleConfig) withDefaults() CandleConfig {
	if c.ColdThreshold <= 0 {
		c.ColdThreshold = 30
	}
	if c.ColdWindow <= 0 {
		c.ColdWindow = 300
	}
	if c.IncrementalWindow <= 0 {
		c.IncrementalWindow = 5
	}
	return c
}

// CandleSyncer serves time-ordered OHLCV windows, refreshing from upstream
// only when the market calendar says cached bars can no longer be current.
type CandleSyncer struct {
	cfg    CandleConfig
	store  CandleStore
	source market.Source
	guard  *guard.Guard
	cal    *calendar.Calendar
}

func NewCandleSyncer(cfg CandleConfig, st CandleStore, src market.Source, g *guard.Guard, cal *calendar.Calendar) *CandleSyncer {
	return &CandleSyncer{
		cfg:    cfg.withDefaults(),
		store:  st,
		source: src,
		guard:  g,
		cal:    cal,
	}
}

// GetCandles returns up to limit bars for (symbol, interval), oldest first,
// deduplicated by bucketed timestamp. Upstream or store failures never
// surface as long as any cached data exists; with nothing anywhere the
// result is empty, not an error.
func (s *CandleSyncer) GetCandles(ctx context.Context, symbol string, interval market.Interval, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	sym := market.NormalizeSymbol(symbol, s.cfg.SymbolSuffix)
	if sym == "" {
		return nil, nil
	}

	cached, err := s.store.RecentCandles(ctx, sym, interval, limit)
	if err != nil {
		// Store read failure is treated as "no cached data".
		logger.Warnf("[candles] reading cache for %s %s failed: %v", sym, interval, err)
		cached = nil
	}

	decision, window := s.decide(cached, interval, limit)
	if decision == ServeCached {
		return cached, nil
	}

	var fetched []market.Candle
	fetchErr := s.guard.Do(ctx, "history "+sym, func(ctx context.Context) error {
		var err error
		fetched, err = s.source.FetchHistory(ctx, sym, interval, window)
		return err
	})
	if fetchErr != nil {
		decision = ServeStaleFallback
		logger.Warnf("[candles] refresh for %s %s failed (%s): %v", sym, interval, decision, fetchErr)
		return cached, nil
	}

	fetched = s.bucketed(sym, interval, fetched)
	if err := s.store.UpsertCandles(ctx, fetched); err != nil {
		// Dropped writes are acceptable; the next refresh converges.
		logger.Warnf("[candles] upserting %d bars for %s %s failed: %v", len(fetched), sym, interval, err)
	}
	return mergeCandles(cached, fetched, limit), nil
}

// decide applies the freshness rules from the market calendar.
func (s *CandleSyncer) decide(cached []market.Candle, interval market.Interval, limit int) (Decision, int) {
	now := s.cal.Now()
	open := s.cal.IsOpen(now)
	session := s.cal.LastSessionDate(now)

	cold := len(cached) < s.cfg.ColdThreshold && len(cached) < limit
	window := s.cfg.IncrementalWindow
	if cold {
		window = s.cfg.ColdWindow
		if window < limit {
			window = limit
		}
	}

	if !open && len(cached) > 0 && s.fresh(cached, interval, session) {
		return ServeCached, 0
	}
	return RefreshThenServe, window
}

// fresh reports whether the newest cached bar covers the expected last
// session. Intraday bars must additionally reach the afternoon session, so
// a morning-only bar set still triggers one refresh after hours.
func (s *CandleSyncer) fresh(cached []market.Candle, interval market.Interval, session time.Time) bool {
	newest := cached[len(cached)-1]
	if interval.Intraday() {
		bt := newest.Time(s.cal.Location())
		if bt.Year() != session.Year() || bt.YearDay() != session.YearDay() {
			return false
		}
		return bt.Hour() >= s.cal.AfternoonStartHour()
	}
	// Daily and coarser bars cover a whole bucket: the cache is current when
	// the expected session lands inside the newest bar's bucket. For daily
	// bars this is date equality; a weekly bar stamped Monday covers every
	// session of that week.
	return interval.Bucket(session.Unix(), s.cal.Location()) == newest.Timestamp
}

// bucketed stamps fetched bars with the canonical symbol/interval and
// truncates timestamps to the interval boundary so overlapping pulls merge.
func (s *CandleSyncer) bucketed(sym string, interval market.Interval, bars []market.Candle) []market.Candle {
	loc := s.cal.Location()
	out := make([]market.Candle, 0, len(bars))
	for _, b := range bars {
		b.Symbol = sym
		b.Interval = interval
		b.Timestamp = interval.Bucket(b.Timestamp, loc)
		out = append(out, b)
	}
	return out
}

// mergeCandles combines cached and fetched bars, upstream winning on
// timestamp collision, sorted ascending and truncated to limit from the tail.
func mergeCandles(cached, fetched []market.Candle, limit int) []market.Candle {
	byTS := make(map[int64]market.Candle, len(cached)+len(fetched))
	for _, c := range cached {
		byTS[c.Timestamp] = c
	}
	for _, c := range fetched {
		byTS[c.Timestamp] = c
	}
	out := make([]market.Candle, 0, len(byTS))
	for _, c := range byTS {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
