package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterval(t *testing.T) {
	cases := []struct {
		in   string
		want Interval
	}{
		{"1m", Interval1m},
		{"5m", Interval5m},
		{"60", Interval1h},
		{"1H", Interval1h},
		{"d", Interval1d},
		{"1d", Interval1d},
		{"DAY", Interval1d},
		{"w", Interval1w},
		{"1M", Interval1M},
	}
	for _, tc := range cases {
		got, err := ParseInterval(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseInterval("")
	assert.Error(t, err)
	_, err = ParseInterval("3h")
	assert.Error(t, err)
}

func TestIntervalBucket(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	require.NoError(t, err)

	// 2026-08-28 10:17:42 ICT, a Friday.
	ts := time.Date(2026, 8, 28, 10, 17, 42, 0, loc).Unix()

	assert.Equal(t, time.Date(2026, 8, 28, 10, 17, 0, 0, loc).Unix(), Interval1m.Bucket(ts, loc))
	assert.Equal(t, time.Date(2026, 8, 28, 10, 0, 0, 0, loc).Unix(), Interval1h.Bucket(ts, loc))
	assert.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, loc).Unix(), Interval1d.Bucket(ts, loc))
	// Week buckets land on Monday.
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, loc).Unix(), Interval1w.Bucket(ts, loc))
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, loc).Unix(), Interval1M.Bucket(ts, loc))

	// Bucketing is idempotent.
	b := Interval1h.Bucket(ts, loc)
	assert.Equal(t, b, Interval1h.Bucket(b, loc))
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "FPT.VN", NormalizeSymbol("fpt", ".VN"))
	assert.Equal(t, "FPT.VN", NormalizeSymbol(" FPT.VN ", ".VN"))
	assert.Equal(t, "BRK.B", NormalizeSymbol("brk.b", ".VN"), "qualified input keeps its qualifier")
	assert.Equal(t, "FPT", NormalizeSymbol("fpt", ""))
	assert.Equal(t, "", NormalizeSymbol("   ", ".VN"))
}
