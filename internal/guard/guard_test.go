package guard

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tickline/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanNotifier struct {
	alerts chan string
}

func newChanNotifier() *chanNotifier {
	return &chanNotifier{alerts: make(chan string, 8)}
}

func (n *chanNotifier) Alert(text string) error {
	n.alerts <- text
	return nil
}

func (n *chanNotifier) waitAlert(t *testing.T) string {
	t.Helper()
	select {
	case msg := <-n.alerts:
		return msg
	case <-time.After(time.Second):
		t.Fatal("expected an operator alert, got none")
		return ""
	}
}

func (n *chanNotifier) assertNoAlert(t *testing.T) {
	t.Helper()
	select {
	case msg := <-n.alerts:
		t.Fatalf("unexpected alert: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

// newTestGuard builds a guard with a controllable clock and instant sleeps
// that record the requested backoff delays.
func newTestGuard(cfg Config, n *chanNotifier) (*Guard, *time.Time, *[]time.Duration) {
	g := New(cfg, NewBreaker(), n)
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	var slept []time.Duration
	g.now = func() time.Time { return now }
	g.sleep = func(_ context.Context, d time.Duration) bool {
		slept = append(slept, d)
		return true
	}
	return g, &now, &slept
}

func TestDoSuccessPassesThrough(t *testing.T) {
	n := newChanNotifier()
	g, _, _ := newTestGuard(Config{}, n)

	calls := 0
	err := g.Do(context.Background(), "history", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	n.assertNoAlert(t)
}

func TestDoNonThrottleErrorNoRetry(t *testing.T) {
	n := newChanNotifier()
	g, _, slept := newTestGuard(Config{}, n)

	boom := errors.New("malformed payload")
	calls := 0
	err := g.Do(context.Background(), "history", func(ctx context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "non-throttle errors must not be retried")
	assert.Empty(t, *slept)
	assert.False(t, g.Breaker().Open(g.now()))
	n.assertNoAlert(t)
}

func TestDoThrottleRetriesWithDoublingBackoff(t *testing.T) {
	n := newChanNotifier()
	g, _, slept := newTestGuard(Config{MaxRetries: 3, BackoffBase: 2 * time.Second}, n)

	calls := 0
	err := g.Do(context.Background(), "quotes", func(ctx context.Context) error {
		calls++
		return fmt.Errorf("http 429: %w", market.ErrThrottled)
	})
	require.ErrorIs(t, err, market.ErrThrottled)
	assert.Equal(t, 4, calls, "initial attempt plus MaxRetries")
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, *slept)
}

func TestDoThrottleTripsBreakerAndAlertsOnce(t *testing.T) {
	n := newChanNotifier()
	g, _, _ := newTestGuard(Config{MaxRetries: 2, Cooldown: 30 * time.Minute}, n)

	err := g.Do(context.Background(), "quotes", func(ctx context.Context) error {
		return market.ErrThrottled
	})
	require.ErrorIs(t, err, market.ErrThrottled)

	msg := n.waitAlert(t)
	assert.Contains(t, msg, "circuit breaker tripped")
	// Three throttled attempts, exactly one alert.
	n.assertNoAlert(t)

	tripped, rearmAt, reason := g.Breaker().State()
	assert.True(t, tripped)
	assert.Equal(t, g.now().Add(30*time.Minute), rearmAt)
	assert.Contains(t, reason, "quotes")
}

func TestDoFailsFastWhileBreakerOpen(t *testing.T) {
	n := newChanNotifier()
	g, _, _ := newTestGuard(Config{MaxRetries: 1, Cooldown: 30 * time.Minute}, n)

	_ = g.Do(context.Background(), "quotes", func(ctx context.Context) error {
		return market.ErrThrottled
	})
	n.waitAlert(t)

	calls := 0
	err := g.Do(context.Background(), "history", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, market.ErrBreakerOpen)
	assert.Equal(t, 0, calls, "open breaker must skip the upstream entirely")
	n.assertNoAlert(t)
}

func TestDoRearmsAfterCooldown(t *testing.T) {
	n := newChanNotifier()
	g, now, _ := newTestGuard(Config{MaxRetries: 1, Cooldown: 30 * time.Minute}, n)

	_ = g.Do(context.Background(), "quotes", func(ctx context.Context) error {
		return market.ErrThrottled
	})
	n.waitAlert(t)

	*now = now.Add(31 * time.Minute)

	calls := 0
	err := g.Do(context.Background(), "quotes", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "breaker must re-arm after the cool-down elapses")
}

func TestDoMapsCallTimeoutToUnavailable(t *testing.T) {
	n := newChanNotifier()
	g, _, _ := newTestGuard(Config{CallTimeout: 10 * time.Millisecond}, n)

	err := g.Do(context.Background(), "history", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, market.ErrUpstreamUnavailable)
	assert.False(t, g.Breaker().Open(g.now()), "timeouts must not trip the breaker")
	n.assertNoAlert(t)
}

func TestBreakerTripTransitions(t *testing.T) {
	b := NewBreaker()
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	assert.True(t, b.Trip("throttled", time.Minute, now), "closed to open reports the transition")
	assert.False(t, b.Trip("throttled again", time.Minute, now.Add(10*time.Second)), "already open")
	assert.True(t, b.Open(now.Add(30*time.Second)))
	assert.False(t, b.Open(now.Add(2*time.Minute)), "clears after the cool-down")
	assert.True(t, b.Trip("throttled", time.Minute, now.Add(3*time.Minute)), "re-trip after clearing alerts again")
}
