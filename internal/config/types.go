package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config is the main configuration carrier.
type Config struct {
	App       AppConfig       `toml:"app"`
	Market    MarketConfig    `toml:"market"`
	Upstream  UpstreamConfig  `toml:"upstream"`
	Store     StoreConfig     `toml:"store"`
	Guard     GuardConfig     `toml:"guard"`
	Sync      SyncConfig      `toml:"sync"`
	Watchlist WatchlistConfig `toml:"watchlist"`
	Warmup    WarmupConfig    `toml:"warmup"`
	Notify    NotifyConfig    `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// MarketConfig describes the exchange: timezone, trading window, and the
// suffix qualifying canonical symbols.
type MarketConfig struct {
	Timezone           string `toml:"timezone"`
	OpenTime           string `toml:"open_time"`  // "09:00"
	CloseTime          string `toml:"close_time"` // "15:00"
	AfternoonStartHour int    `toml:"afternoon_start_hour"`
	SymbolSuffix       string `toml:"symbol_suffix"`
}

// OpenMinute returns the open time as minutes since local midnight.
func (m MarketConfig) OpenMinute() int  { return parseClock(m.OpenTime, 9*60) }
func (m MarketConfig) CloseMinute() int { return parseClock(m.CloseTime, 15*60) }

type UpstreamConfig struct {
	ChartBaseURL      string  `toml:"chart_base_url"`
	QuoteBaseURL      string  `toml:"quote_base_url"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type GuardConfig struct {
	MaxRetries         int `toml:"max_retries"`
	BackoffBaseMS      int `toml:"backoff_base_ms"`
	CallTimeoutSeconds int `toml:"call_timeout_seconds"`
	CooldownMinutes    int `toml:"cooldown_minutes"`
}

type SyncConfig struct {
	ColdThreshold     int `toml:"cold_threshold"`
	ColdWindow        int `toml:"cold_window"`
	IncrementalWindow int `toml:"incremental_window"`
}

// WatchlistConfig carries both the fixed shape of the list view and the
// hand-tuned staleness knobs. The knob values are re-read at runtime by the
// TuningLoader; adjusting them does not need a restart.
type WatchlistConfig struct {
	SparkPoints           int    `toml:"spark_points"`
	SparkInterval         string `toml:"spark_interval"`
	CacheCapacity         int    `toml:"cache_capacity"`
	BackfillWorkers       int    `toml:"backfill_workers"`
	PriceTTLSeconds       int    `toml:"price_ttl_seconds"`
	SparkStaleOpenMinutes int    `toml:"spark_stale_open_minutes"`
	SparkStaleClosedHours int    `toml:"spark_stale_closed_hours"`
}

type WarmupConfig struct {
	Enabled   bool     `toml:"enabled"`
	Schedule  string   `toml:"schedule"` // cron spec
	Symbols   []string `toml:"symbols"`
	Intervals []string `toml:"intervals"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// Tuning are the runtime-adjustable staleness thresholds. The exact values
// are hand-tuned operations knobs, not behavior contracts.
type Tuning struct {
	PriceTTL         time.Duration
	SparkStaleOpen   time.Duration
	SparkStaleClosed time.Duration
}

func (t Tuning) WithDefaults() Tuning {
	if t.PriceTTL <= 0 {
		t.PriceTTL = 45 * time.Second
	}
	if t.SparkStaleOpen <= 0 {
		t.SparkStaleOpen = 2 * time.Hour
	}
	if t.SparkStaleClosed <= 0 {
		t.SparkStaleClosed = 72 * time.Hour
	}
	return t
}

// Tuning extracts the knob values from the watchlist section.
func (w WatchlistConfig) Tuning() Tuning {
	return Tuning{
		PriceTTL:         time.Duration(w.PriceTTLSeconds) * time.Second,
		SparkStaleOpen:   time.Duration(w.SparkStaleOpenMinutes) * time.Minute,
		SparkStaleClosed: time.Duration(w.SparkStaleClosedHours) * time.Hour,
	}.WithDefaults()
}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":8086"
	}
	if c.Market.Timezone == "" {
		c.Market.Timezone = "Asia/Ho_Chi_Minh"
	}
	if c.Market.SymbolSuffix == "" {
		c.Market.SymbolSuffix = ".VN"
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/tickline.db"
	}
	if c.Warmup.Schedule == "" {
		c.Warmup.Schedule = "*/15 9-15 * * 1-5"
	}
}

func (c *Config) validate() error {
	if c.Market.OpenMinute() >= c.Market.CloseMinute() {
		return fmt.Errorf("market open_time must be before close_time")
	}
	if c.Notify.Telegram.Enabled && (c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "") {
		return fmt.Errorf("telegram notify enabled but bot_token/chat_id missing")
	}
	return nil
}

// parseClock turns "HH:MM" into minutes since midnight.
func parseClock(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	parts := strings.SplitN(raw, ":", 2)
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return fallback
	}
	m := 0
	if len(parts) == 2 {
		m, err = strconv.Atoi(parts[1])
		if err != nil || m < 0 || m > 59 {
			return fallback
		}
	}
	return h*60 + m
}
