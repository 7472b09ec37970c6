// Package app wires the process: config -> store, calendar, guard, gateway,
// synchronizers, warmup cron and HTTP transport. Every dependency is
// constructed here explicitly and handed down; nothing reaches for globals.
package app

import (
	"context"
	"fmt"
	"time"

	"tickline/internal/calendar"
	"tickline/internal/config"
	"tickline/internal/gateway/dchart"
	"tickline/internal/guard"
	"tickline/internal/logger"
	"tickline/internal/market"
	"tickline/internal/notifier"
	"tickline/internal/store"
	"tickline/internal/syncer"
	apihttp "tickline/internal/transport/http"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg    *config.Config
	db     *store.Store
	server *apihttp.Server
	warmer *syncer.Warmer
	cron   *cron.Cron

	// backfillCancel tears down the process-scoped backfill pool on exit.
	backfillCancel context.CancelFunc
}

// New builds the application object (does not start anything).
func New(cfg *config.Config, cfgPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	cal, err := calendar.New(calendar.Config{
		Timezone:       cfg.Market.Timezone,
		OpenMinute:     cfg.Market.OpenMinute(),
		CloseMinute:    cfg.Market.CloseMinute(),
		AfternoonStart: cfg.Market.AfternoonStartHour,
	}, nil)
	if err != nil {
		return nil, err
	}

	db, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store failed: %w", err)
	}

	var alerts notifier.Notifier = notifier.Noop{}
	if cfg.Notify.Telegram.Enabled {
		alerts = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
	}

	breaker := guard.NewBreaker()
	g := guard.New(guard.Config{
		MaxRetries:  cfg.Guard.MaxRetries,
		BackoffBase: time.Duration(cfg.Guard.BackoffBaseMS) * time.Millisecond,
		CallTimeout: time.Duration(cfg.Guard.CallTimeoutSeconds) * time.Second,
		Cooldown:    time.Duration(cfg.Guard.CooldownMinutes) * time.Minute,
	}, breaker, alerts)

	source := dchart.New(dchart.Config{
		ChartBaseURL:      cfg.Upstream.ChartBaseURL,
		QuoteBaseURL:      cfg.Upstream.QuoteBaseURL,
		SymbolSuffix:      cfg.Market.SymbolSuffix,
		HTTPTimeout:       time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.Upstream.RequestsPerSecond,
		Burst:             cfg.Upstream.Burst,
	})

	candles := syncer.NewCandleSyncer(syncer.CandleConfig{
		SymbolSuffix:      cfg.Market.SymbolSuffix,
		ColdThreshold:     cfg.Sync.ColdThreshold,
		ColdWindow:        cfg.Sync.ColdWindow,
		IncrementalWindow: cfg.Sync.IncrementalWindow,
	}, db, source, g, cal)

	sparkInterval := market.Interval1h
	if iv, err := market.ParseInterval(cfg.Watchlist.SparkInterval); err == nil && cfg.Watchlist.SparkInterval != "" {
		sparkInterval = iv
	}

	backfillCtx, backfillCancel := context.WithCancel(context.Background())
	backfill := syncer.NewBackfiller(backfillCtx, candles,
		cfg.Watchlist.BackfillWorkers, sparkInterval, cfg.Watchlist.SparkPoints)

	tuningFn := func() config.Tuning { return cfg.Watchlist.Tuning() }
	if loader, err := config.NewTuningLoader(cfgPath); err != nil {
		logger.Warnf("tuning hot-reload disabled: %v", err)
	} else {
		tuningFn = loader.Snapshot
	}

	watchlist := syncer.NewWatchlistSyncer(syncer.WatchlistConfig{
		SymbolSuffix:  cfg.Market.SymbolSuffix,
		SparkPoints:   cfg.Watchlist.SparkPoints,
		SparkInterval: sparkInterval,
		CacheCapacity: cfg.Watchlist.CacheCapacity,
	}, db, db, source, g, cal, backfill, tuningFn)

	server, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:     cfg.App.HTTPAddr,
		Candles:  candles,
		Quotes:   watchlist,
		Breaker:  breaker,
		Location: cal.Location(),
	})
	if err != nil {
		backfillCancel()
		db.Close()
		return nil, err
	}

	a := &App{
		cfg:            cfg,
		db:             db,
		server:         server,
		backfillCancel: backfillCancel,
	}

	if cfg.Warmup.Enabled && len(cfg.Warmup.Symbols) > 0 {
		intervals := make([]market.Interval, 0, len(cfg.Warmup.Intervals))
		for _, raw := range cfg.Warmup.Intervals {
			iv, err := market.ParseInterval(raw)
			if err != nil {
				logger.Warnf("skipping warmup interval %q: %v", raw, err)
				continue
			}
			intervals = append(intervals, iv)
		}
		a.warmer = syncer.NewWarmer(candles, breaker, cfg.Warmup.Symbols, intervals)
		a.cron = cron.New()
	}
	return a, nil
}

// Run starts the HTTP server and the warmup schedule, blocking until ctx is
// cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.server == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.backfillCancel()
	defer a.db.Close()

	if a.cron != nil && a.warmer != nil {
		if _, err := a.cron.AddFunc(a.cfg.Warmup.Schedule, func() { a.warmer.Run(ctx) }); err != nil {
			return fmt.Errorf("invalid warmup schedule %q: %w", a.cfg.Warmup.Schedule, err)
		}
		a.cron.Start()
		defer a.cron.Stop()
		logger.Infof("warmup scheduled (%s) for %d symbols", a.cfg.Warmup.Schedule, len(a.cfg.Warmup.Symbols))
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}
