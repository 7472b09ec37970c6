// Package dchart implements market.Source against a VNDirect-style market
// data API: a TradingView "history" endpoint for OHLCV bars and a batched
// stock_prices endpoint for latest quotes.
package dchart

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tickline/internal/market"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const maxHistoryLimit = 1000

type Source struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	return &Source{
		cfg:     final,
		client:  &http.Client{Timeout: final.HTTPTimeout},
		limiter: rate.NewLimiter(rate.Limit(final.RequestsPerSecond), final.Burst),
	}
}

var resolutions = map[market.Interval]string{
	market.Interval1m:  "1",
	market.Interval5m:  "5",
	market.Interval15m: "15",
	market.Interval30m: "30",
	market.Interval1h:  "60",
	market.Interval1d:  "D",
	market.Interval1w:  "W",
	market.Interval1M:  "M",
}

func (s *Source) FetchHistory(ctx context.Context, symbol string, interval market.Interval, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	code := s.bareCode(symbol)
	if code == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	res, ok := resolutions[interval]
	if !ok {
		return nil, fmt.Errorf("unsupported interval %q", interval)
	}

	now := time.Now()
	span := time.Duration(limit) * interval.Duration()
	if !interval.Intraday() {
		// Calendar span, not trading span: stretch to cover weekends.
		span = span * 2
	}
	q := url.Values{}
	q.Set("symbol", code)
	q.Set("resolution", res)
	q.Set("from", fmt.Sprintf("%d", now.Add(-span).Unix()))
	q.Set("to", fmt.Sprintf("%d", now.Unix()))

	body, err := s.get(ctx, s.cfg.ChartBaseURL+"/dchart/history?"+q.Encode())
	if err != nil {
		return nil, err
	}
	status := gjson.GetBytes(body, "s").String()
	if status == "no_data" {
		return nil, nil
	}
	if status != "ok" {
		return nil, fmt.Errorf("%w: history status=%q", market.ErrUpstreamUnavailable, status)
	}

	ts := gjson.GetBytes(body, "t").Array()
	opens := gjson.GetBytes(body, "o").Array()
	highs := gjson.GetBytes(body, "h").Array()
	lows := gjson.GetBytes(body, "l").Array()
	closes := gjson.GetBytes(body, "c").Array()
	vols := gjson.GetBytes(body, "v").Array()
	if len(opens) != len(ts) || len(highs) != len(ts) || len(lows) != len(ts) || len(closes) != len(ts) {
		return nil, fmt.Errorf("%w: history arrays of unequal length", market.ErrUpstreamUnavailable)
	}

	out := make([]market.Candle, 0, len(ts))
	for i := range ts {
		c := market.Candle{
			Symbol:    symbol,
			Interval:  interval,
			Timestamp: ts[i].Int(),
			Open:      decimal.NewFromFloat(opens[i].Float()),
			High:      decimal.NewFromFloat(highs[i].Float()),
			Low:       decimal.NewFromFloat(lows[i].Float()),
			Close:     decimal.NewFromFloat(closes[i].Float()),
		}
		if i < len(vols) {
			c.Volume = vols[i].Int()
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Source) FetchQuotes(ctx context.Context, symbols []string) ([]market.Quote, error) {
	codes := make([]string, 0, len(symbols))
	bySymbol := make(map[string]string, len(symbols))
	for _, sym := range symbols {
		code := s.bareCode(sym)
		if code == "" {
			continue
		}
		// "FPT" and "FPT.VN" both map to code FPT; keep the first spelling.
		if _, dup := bySymbol[code]; dup {
			continue
		}
		codes = append(codes, code)
		bySymbol[code] = sym
	}
	if len(codes) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("q", "code:"+strings.Join(codes, ","))
	q.Set("size", fmt.Sprintf("%d", len(codes)))
	body, err := s.get(ctx, s.cfg.QuoteBaseURL+"/v4/stock_prices/latest?"+q.Encode())
	if err != nil {
		return nil, err
	}

	rows := gjson.GetBytes(body, "data").Array()
	out := make([]market.Quote, 0, len(rows))
	now := time.Now().Unix()
	for _, row := range rows {
		code := strings.ToUpper(row.Get("code").String())
		sym, ok := bySymbol[code]
		if !ok {
			continue
		}
		out = append(out, market.Quote{
			Symbol:        sym,
			Price:         decimal.NewFromFloat(row.Get("close").Float()),
			Change:        decimal.NewFromFloat(row.Get("change").Float()),
			ChangePercent: decimal.NewFromFloat(row.Get("pctChange").Float()),
			PrevClose:     decimal.NewFromFloat(row.Get("basicPrice").Float()),
			UpdatedAt:     now,
		})
	}
	return out, nil
}

func (s *Source) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrUpstreamUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status=429", market.ErrThrottled)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status=%d", market.ErrUpstreamUnavailable, resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: malformed response", market.ErrUpstreamUnavailable)
	}
	return body, nil
}

func (s *Source) bareCode(symbol string) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	return strings.TrimSuffix(sym, s.cfg.SymbolSuffix)
}

var _ market.Source = (*Source)(nil)
