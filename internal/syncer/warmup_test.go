package syncer

import (
	"context"
	"testing"
	"time"

	"tickline/internal/guard"
	"tickline/internal/market"

	"github.com/stretchr/testify/assert"
)

func TestWarmerRefreshesEveryPair(t *testing.T) {
	loc := exchangeTZ(t)
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, loc)

	st := newFakeStore()
	src := &fakeSource{}
	s := newCandleSyncer(st, src, testCalendar(t, now))

	w := NewWarmer(s, guard.NewBreaker(), []string{"FPT", "VNM"}, nil)
	w.Run(context.Background())

	history, _ := src.counts()
	assert.Equal(t, 4, history, "two symbols times the default two intervals")
}

func TestWarmerAbortsWhileBreakerOpen(t *testing.T) {
	loc := exchangeTZ(t)
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, loc)

	st := newFakeStore()
	src := &fakeSource{}
	s := newCandleSyncer(st, src, testCalendar(t, now))

	breaker := guard.NewBreaker()
	breaker.Trip("upstream throttled during quotes", time.Hour, time.Now())

	w := NewWarmer(s, breaker, []string{"FPT", "VNM"}, []market.Interval{market.Interval1d})
	w.Run(context.Background())

	history, _ := src.counts()
	assert.Equal(t, 0, history, "an open breaker aborts the pass immediately")
}
