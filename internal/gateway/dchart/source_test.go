package dchart

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"tickline/internal/market"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		ChartBaseURL:      srv.URL,
		QuoteBaseURL:      srv.URL,
		SymbolSuffix:      ".VN",
		RequestsPerSecond: 1000,
		Burst:             1000,
	})
}

func TestFetchHistoryParsesBars(t *testing.T) {
	var gotQuery map[string]string
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"symbol":     r.URL.Query().Get("symbol"),
			"resolution": r.URL.Query().Get("resolution"),
		}
		w.Write([]byte(`{"s":"ok",
			"t":[1756339200,1756342800],
			"o":[31.0,31.4],
			"h":[31.5,31.6],
			"l":[30.9,31.3],
			"c":[31.4,31.55],
			"v":[120000,98000]}`))
	})

	bars, err := src.FetchHistory(context.Background(), "FPT.VN", market.Interval1h, 30)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, "FPT", gotQuery["symbol"], "exchange suffix is stripped on the wire")
	assert.Equal(t, "60", gotQuery["resolution"])
	assert.Equal(t, "FPT.VN", bars[0].Symbol)
	assert.Equal(t, int64(1756339200), bars[0].Timestamp)
	assert.True(t, bars[1].Close.Equal(decimal.NewFromFloat(31.55)))
	assert.Equal(t, int64(98000), bars[1].Volume)
}

func TestFetchHistoryNoData(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"s":"no_data"}`))
	})
	bars, err := src.FetchHistory(context.Background(), "XXX.VN", market.Interval1d, 30)
	require.NoError(t, err)
	assert.Empty(t, bars, "an unknown symbol is empty, not an error")
}

func TestFetchHistoryErrorStatus(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"s":"error","errmsg":"invalid resolution"}`))
	})
	_, err := src.FetchHistory(context.Background(), "FPT.VN", market.Interval1d, 30)
	assert.ErrorIs(t, err, market.ErrUpstreamUnavailable)
}

func TestFetchHistoryUnequalArrays(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"s":"ok","t":[1,2],"o":[1.0],"h":[1.0],"l":[1.0],"c":[1.0]}`))
	})
	_, err := src.FetchHistory(context.Background(), "FPT.VN", market.Interval1d, 30)
	assert.ErrorIs(t, err, market.ErrUpstreamUnavailable)
}

func TestFetchQuotesMapsCodesBack(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "code:FPT,VNM", r.URL.Query().Get("q"))
		w.Write([]byte(`{"data":[
			{"code":"FPT","close":31.5,"change":0.5,"pctChange":1.61,"basicPrice":31.0},
			{"code":"VNM","close":65.2,"change":-0.3,"pctChange":-0.46,"basicPrice":65.5}
		]}`))
	})

	quotes, err := src.FetchQuotes(context.Background(), []string{"FPT.VN", "VNM.VN"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	assert.Equal(t, "FPT.VN", quotes[0].Symbol, "rows map back to the qualified symbol")
	assert.True(t, quotes[0].Price.Equal(decimal.NewFromFloat(31.5)))
	assert.True(t, quotes[0].PrevClose.Equal(decimal.NewFromFloat(31.0)))
	assert.True(t, quotes[1].Change.Equal(decimal.NewFromFloat(-0.3)))
	assert.NotZero(t, quotes[0].UpdatedAt)
}

func TestFetchQuotesDeduplicatesCodes(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "code:FPT", r.URL.Query().Get("q"),
			"spellings collapsing to the same bare code are requested once")
		w.Write([]byte(`{"data":[{"code":"FPT","close":31.5,"basicPrice":31.0}]}`))
	})

	quotes, err := src.FetchQuotes(context.Background(), []string{"FPT", "FPT.VN"})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "FPT", quotes[0].Symbol, "the first requested spelling wins")
}

func TestGetMapsThrottleAndFailures(t *testing.T) {
	t.Run("429 is throttled", func(t *testing.T) {
		src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
		_, err := src.FetchHistory(context.Background(), "FPT.VN", market.Interval1d, 30)
		assert.ErrorIs(t, err, market.ErrThrottled)
	})

	t.Run("5xx is unavailable", func(t *testing.T) {
		src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := src.FetchHistory(context.Background(), "FPT.VN", market.Interval1d, 30)
		assert.ErrorIs(t, err, market.ErrUpstreamUnavailable)
		assert.NotErrorIs(t, err, market.ErrThrottled)
	})

	t.Run("malformed body is unavailable", func(t *testing.T) {
		src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>gateway error</html>"))
		})
		_, err := src.FetchHistory(context.Background(), "FPT.VN", market.Interval1d, 30)
		assert.ErrorIs(t, err, market.ErrUpstreamUnavailable)
	})
}
