package config

import (
	"fmt"
	"strings"
	"sync"

	"tickline/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ChangeListener receives the new tuning snapshot after a reload.
type ChangeListener func(Tuning)

// TuningLoader watches the config file and hot-reloads the watchlist
// staleness knobs. Everything else in the config still needs a restart;
// these thresholds are the values operators actually fiddle with.
type TuningLoader struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  Tuning
	listeners []ChangeListener
}

// NewTuningLoader reads the config file at path and starts watching it for
// filesystem events.
func NewTuningLoader(path string) (*TuningLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("tuning loader requires a config path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading tuning config failed: %w", err)
	}
	loader := &TuningLoader{path: path, v: v}
	if err := loader.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := loader.reload(); err != nil {
			logger.Errorf("tuning reload failed (%s): %v", evt.Name, err)
			return
		}
		loader.notify()
	})
	v.WatchConfig()
	return loader, nil
}

// Snapshot returns the current tuning values.
func (l *TuningLoader) Snapshot() Tuning {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot
}

// Subscribe registers a listener and delivers the current snapshot once.
func (l *TuningLoader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	snap := l.snapshot
	l.mu.Unlock()
	fn(snap)
}

func (l *TuningLoader) reload() error {
	var w WatchlistConfig
	raw := l.v.Sub("watchlist")
	if raw != nil {
		if err := raw.Unmarshal(&w, func(dc *mapstructure.DecoderConfig) {
			dc.TagName = "toml"
			dc.WeaklyTypedInput = true
		}); err != nil {
			return fmt.Errorf("parsing watchlist tuning failed: %w", err)
		}
	}
	next := w.Tuning()
	l.mu.Lock()
	prev := l.snapshot
	l.snapshot = next
	l.mu.Unlock()
	if prev != next {
		logger.Infof("tuning applied: price_ttl=%s spark_stale_open=%s spark_stale_closed=%s",
			next.PriceTTL, next.SparkStaleOpen, next.SparkStaleClosed)
	}
	return nil
}

func (l *TuningLoader) notify() {
	l.mu.RLock()
	listeners := append([]ChangeListener(nil), l.listeners...)
	snap := l.snapshot
	l.mu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
}
