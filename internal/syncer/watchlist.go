package syncer

import (
	"context"
	"time"

	"tickline/internal/calendar"
	"tickline/internal/config"
	"tickline/internal/guard"
	"tickline/internal/logger"
	"tickline/internal/market"

	"github.com/shopspring/decimal"
)

type WatchlistConfig struct {
	SymbolSuffix  string
	SparkPoints   int             // rolling sparkline window, in bars
	SparkInterval market.Interval // sparkline bar width
	CacheCapacity int             // in-memory quote cache size
}

func (c WatchlistConfig) withDefaults() WatchlistConfig {
	if c.SparkPoints <= 0 {
		c.SparkPoints = 30
	}
	if c.SparkInterval == "" {
		c.SparkInterval = market.Interval1h
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = 512
	}
	return c
}

// WatchlistSyncer answers the frequently-polled list view. Its caching is
// deliberately coarser than the chart path: a short price TTL amortizes many
// concurrent viewers into one upstream batch, sparklines come from the
// candle store with background-only refresh, and on non-trading days no
// upstream call is made at all.
type WatchlistSyncer struct {
	cfg       WatchlistConfig
	store     CandleStore
	snapshots SnapshotStore
	source    market.Source
	guard     *guard.Guard
	cal       *calendar.Calendar
	backfill  *Backfiller
	cache     *quoteCache
	tuning    func() config.Tuning
}

func NewWatchlistSyncer(
	cfg WatchlistConfig,
	st CandleStore,
	snaps SnapshotStore,
	src market.Source,
	g *guard.Guard,
	cal *calendar.Calendar,
	backfill *Backfiller,
	tuning func() config.Tuning,
) *WatchlistSyncer {
	final := cfg.withDefaults()
	if tuning == nil {
		tuning = func() config.Tuning { return config.Tuning{}.WithDefaults() }
	}
	return &WatchlistSyncer{
		cfg:       final,
		store:     st,
		snapshots: snaps,
		source:    src,
		guard:     g,
		cal:       cal,
		backfill:  backfill,
		cache:     newQuoteCache(final.CacheCapacity),
		tuning:    tuning,
	}
}

// GetQuotes returns price + sparkline for every requested symbol. The map
// always covers the full request set: a symbol with no data anywhere still
// appears with zeroed fields, so callers never confuse absence with "not
// found".
func (s *WatchlistSyncer) GetQuotes(ctx context.Context, symbols []string) (map[string]market.Quote, error) {
	tn := s.tuning().WithDefaults()
	now := s.cal.Now()
	trading := s.cal.IsTradingDay(now)

	syms := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, raw := range symbols {
		sym := market.NormalizeSymbol(raw, s.cfg.SymbolSuffix)
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		syms = append(syms, sym)
	}
	out := make(map[string]market.Quote, len(syms))
	if len(syms) == 0 {
		return out, nil
	}

	sparks := s.sparklines(ctx, syms, now, trading, tn)

	snaps, err := s.snapshots.Snapshots(ctx, syms)
	if err != nil {
		logger.Warnf("[watchlist] reading snapshots failed: %v", err)
		snaps = map[string]market.Quote{}
	}

	resolved := make(map[string]market.Quote, len(syms))
	var need []string
	for _, sym := range syms {
		if q, ok := s.cache.Get(sym, now); ok {
			resolved[sym] = q
			continue
		}
		if snap, ok := snaps[sym]; ok {
			// Closed market: prices cannot move, serve the snapshot verbatim
			// regardless of its age.
			if !trading || now.Unix()-snap.UpdatedAt <= int64(tn.PriceTTL/time.Second) {
				resolved[sym] = snap
				continue
			}
		}
		if trading {
			need = append(need, sym)
		}
	}

	if len(need) > 0 {
		var fetched []market.Quote
		fetchErr := s.guard.Do(ctx, "quotes", func(ctx context.Context) error {
			var err error
			fetched, err = s.source.FetchQuotes(ctx, need)
			return err
		})
		if fetchErr != nil {
			logger.Warnf("[watchlist] quote refresh for %d symbols failed: %v", len(need), fetchErr)
		} else {
			if err := s.snapshots.UpsertSnapshots(ctx, fetched); err != nil {
				logger.Warnf("[watchlist] upserting %d snapshots failed: %v", len(fetched), err)
			}
			for _, q := range fetched {
				s.cache.Set(q.Symbol, q, now, tn.PriceTTL)
				resolved[q.Symbol] = q
			}
		}
	}

	for _, sym := range syms {
		q, ok := resolved[sym]
		if !ok {
			// Fallback chain: any snapshot -> last sparkline close -> zero.
			if snap, found := snaps[sym]; found {
				q = snap
			} else if pts := sparks[sym]; len(pts) > 0 {
				q = market.Quote{Symbol: sym, Price: decimal.NewFromFloat(pts[len(pts)-1])}
			} else {
				q = market.Quote{Symbol: sym}
			}
		}
		// Upstream reports zero when a symbol has no live trade; the previous
		// close is the better answer for a list view.
		if q.Price.IsZero() && q.PrevClose.IsPositive() {
			q.Price = q.PrevClose
		}
		q.Symbol = sym
		q.Sparkline = sparks[sym]
		out[sym] = q
	}
	return out, nil
}

// sparklines reads the rolling close-price window per symbol and queues
// stale or missing ones for background backfill.
func (s *WatchlistSyncer) sparklines(ctx context.Context, syms []string, now time.Time, trading bool, tn config.Tuning) map[string][]float64 {
	staleAfter := tn.SparkStaleClosed
	if trading {
		staleAfter = tn.SparkStaleOpen
	}
	out := make(map[string][]float64, len(syms))
	for _, sym := range syms {
		bars, err := s.store.RecentCandles(ctx, sym, s.cfg.SparkInterval, s.cfg.SparkPoints)
		if err != nil {
			logger.Warnf("[watchlist] reading sparkline for %s failed: %v", sym, err)
			bars = nil
		}
		pts := make([]float64, 0, len(bars))
		for _, b := range bars {
			f, _ := b.Close.Float64()
			pts = append(pts, f)
		}
		out[sym] = pts

		stale := len(bars) == 0 ||
			now.Sub(time.Unix(bars[len(bars)-1].Timestamp, 0)) > staleAfter
		if stale && s.backfill != nil {
			s.backfill.Submit(sym)
		}
	}
	return out
}
