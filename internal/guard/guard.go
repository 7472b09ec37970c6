// Package guard wraps upstream calls with bounded retry/backoff and a blunt
// process-wide circuit breaker. Throttling is the only retried failure class;
// anything else propagates immediately so callers fall back to cache.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tickline/internal/logger"
	"tickline/internal/market"
	"tickline/internal/notifier"
)

type Config struct {
	MaxRetries  int           // throttle retries per call
	BackoffBase time.Duration // first retry delay, doubled each attempt
	CallTimeout time.Duration // hard bound on each upstream attempt
	Cooldown    time.Duration // breaker open window
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 15 * time.Second
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Minute
	}
	return c
}

// Guard serializes breaker checks around upstream invocations.
type Guard struct {
	cfg      Config
	breaker  *Breaker
	notifier notifier.Notifier
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) bool
}

func New(cfg Config, breaker *Breaker, n notifier.Notifier) *Guard {
	if breaker == nil {
		breaker = NewBreaker()
	}
	if n == nil {
		n = notifier.Noop{}
	}
	return &Guard{
		cfg:      cfg.withDefaults(),
		breaker:  breaker,
		notifier: n,
		now:      time.Now,
		sleep:    sleepWithContext,
	}
}

// Breaker exposes the shared circuit state for health reporting and for
// callers that want to skip work while the cool-down runs.
func (g *Guard) Breaker() *Breaker { return g.breaker }

// Do runs fn behind the breaker. Throttle errors are retried up to
// MaxRetries with doubling backoff; the first throttle observed trips the
// breaker for the cool-down window and fires a single operator alert.
// While open, Do fails fast with market.ErrBreakerOpen.
func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if g.breaker.Open(g.now()) {
		return fmt.Errorf("%s: %w", op, market.ErrBreakerOpen)
	}

	delay := g.cfg.BackoffBase
	var err error
	for attempt := 0; ; attempt++ {
		err = g.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, market.ErrThrottled) {
			return err
		}
		if tripped := g.breaker.Trip(
			fmt.Sprintf("upstream throttled during %s", op),
			g.cfg.Cooldown, g.now(),
		); tripped {
			g.alert(op)
		}
		if attempt >= g.cfg.MaxRetries {
			return err
		}
		logger.Warnf("[guard] %s throttled, retry %d/%d in %s", op, attempt+1, g.cfg.MaxRetries, delay)
		if !g.sleep(ctx, delay) {
			return err
		}
		delay *= 2
	}
}

func (g *Guard) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()
	err := fn(callCtx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// Timeouts are not throttling; no retry loop, immediate fallback.
		return fmt.Errorf("%w: %v", market.ErrUpstreamUnavailable, err)
	}
	return err
}

func (g *Guard) alert(op string) {
	_, rearmAt, reason := g.breaker.State()
	msg := fmt.Sprintf("⚠️ quote provider circuit breaker tripped\nreason: %s\nretrying after: %s",
		reason, rearmAt.Format(time.RFC3339))
	go func() {
		if err := g.notifier.Alert(msg); err != nil {
			logger.Warnf("[guard] operator alert failed: %v", err)
		}
	}()
	logger.Errorf("[guard] breaker tripped (%s), cooling down for %s", op, g.cfg.Cooldown)
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
