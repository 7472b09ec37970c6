package dchart

import "time"

// Config describes the upstream quote provider endpoints.
type Config struct {
	// ChartBaseURL serves TradingView-style OHLCV history
	// (GET /dchart/history?symbol=&resolution=&from=&to=).
	ChartBaseURL string
	// QuoteBaseURL serves the latest-quote batch endpoint
	// (GET /v4/stock_prices/latest?q=code:AAA,BBB).
	QuoteBaseURL string
	// SymbolSuffix is the exchange qualifier carried by canonical symbols
	// ("FPT.VN"); the provider itself wants bare codes.
	SymbolSuffix string
	HTTPTimeout  time.Duration
	// Request pacing. The provider is shared by every synchronizer in the
	// process; pacing here keeps a cache-cold burst from looking like abuse.
	RequestsPerSecond float64
	Burst             int
}

func (c Config) withDefaults() Config {
	if c.ChartBaseURL == "" {
		c.ChartBaseURL = "https://dchart-api.vndirect.com.vn"
	}
	if c.QuoteBaseURL == "" {
		c.QuoteBaseURL = "https://api-finfo.vndirect.com.vn"
	}
	if c.SymbolSuffix == "" {
		c.SymbolSuffix = ".VN"
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 5
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	return c
}
