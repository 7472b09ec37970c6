package store

import (
	"context"
	"path/filepath"
	"testing"

	"tickline/internal/market"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "tickline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testCandle(symbol string, ts int64, close float64) market.Candle {
	return market.Candle{
		Symbol:    symbol,
		Interval:  market.Interval1d,
		Timestamp: ts,
		Open:      decimal.NewFromFloat(close - 0.5),
		High:      decimal.NewFromFloat(close + 1),
		Low:       decimal.NewFromFloat(close - 1),
		Close:     decimal.NewFromFloat(close),
		Volume:    12345,
	}
}

func TestUpsertCandlesIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	bars := []market.Candle{
		testCandle("FPT.VN", 1000, 30),
		testCandle("FPT.VN", 2000, 31),
		testCandle("FPT.VN", 3000, 32),
	}
	require.NoError(t, st.UpsertCandles(ctx, bars))
	// Re-writing the same keys with a revised close must update, not duplicate.
	bars[2].Close = decimal.NewFromFloat(32.5)
	require.NoError(t, st.UpsertCandles(ctx, bars))

	got, err := st.RecentCandles(ctx, "FPT.VN", market.Interval1d, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1000), got[0].Timestamp)
	assert.Equal(t, int64(3000), got[2].Timestamp)
	assert.True(t, got[2].Close.Equal(decimal.NewFromFloat(32.5)))
}

func TestRecentCandlesLimitAndIsolation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var bars []market.Candle
	for i := int64(1); i <= 5; i++ {
		bars = append(bars, testCandle("FPT.VN", i*1000, float64(30+i)))
	}
	bars = append(bars, testCandle("VNM.VN", 1000, 65))
	require.NoError(t, st.UpsertCandles(ctx, bars))

	got, err := st.RecentCandles(ctx, "FPT.VN", market.Interval1d, 3)
	require.NoError(t, err)
	require.Len(t, got, 3, "limit keeps the most recent bars")
	assert.Equal(t, int64(3000), got[0].Timestamp, "result stays ascending after the tail cut")
	assert.Equal(t, int64(5000), got[2].Timestamp)

	other, err := st.RecentCandles(ctx, "VNM.VN", market.Interval1d, 10)
	require.NoError(t, err)
	assert.Len(t, other, 1, "symbols do not bleed into each other")

	none, err := st.RecentCandles(ctx, "HPG.VN", market.Interval1d, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSnapshotsUpsertAndRead(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	quotes := []market.Quote{
		{
			Symbol:        "FPT.VN",
			Price:         decimal.NewFromFloat(31.5),
			Change:        decimal.NewFromFloat(0.5),
			ChangePercent: decimal.NewFromFloat(1.61),
			PrevClose:     decimal.NewFromFloat(31.0),
			UpdatedAt:     1756350000,
		},
		{Symbol: "VNM.VN", Price: decimal.NewFromFloat(65.2), UpdatedAt: 1756350000},
	}
	require.NoError(t, st.UpsertSnapshots(ctx, quotes))

	// Overwrite one symbol; the other must stay untouched.
	quotes[0].Price = decimal.NewFromFloat(31.8)
	quotes[0].UpdatedAt = 1756353600
	require.NoError(t, st.UpsertSnapshots(ctx, quotes[:1]))

	got, err := st.Snapshots(ctx, []string{"FPT.VN", "VNM.VN", "HPG.VN"})
	require.NoError(t, err)
	require.Len(t, got, 2, "symbols with no row are simply absent")
	assert.True(t, got["FPT.VN"].Price.Equal(decimal.NewFromFloat(31.8)))
	assert.Equal(t, int64(1756353600), got["FPT.VN"].UpdatedAt)
	assert.True(t, got["VNM.VN"].Price.Equal(decimal.NewFromFloat(65.2)))
	assert.True(t, got["FPT.VN"].PrevClose.Equal(decimal.NewFromFloat(31.0)))
}

func TestNewRejectsEmptyPath(t *testing.T) {
	_, err := New("   ")
	assert.Error(t, err)
}
