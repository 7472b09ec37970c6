package market

import "context"

// Source is the upstream quote provider port. Implementations must return
// ErrThrottled (wrapped) on a provider throttling signal so the rate-limit
// guard can distinguish it from ordinary failures.
type Source interface {
	// FetchHistory returns up to limit bars for one symbol/interval,
	// oldest first. Timestamps are raw provider values; the synchronizer
	// buckets them.
	FetchHistory(ctx context.Context, symbol string, interval Interval, limit int) ([]Candle, error)

	// FetchQuotes returns the latest quote for each requested symbol in one
	// batched call. Symbols with no data upstream are simply absent from the
	// result; callers must not treat absence as an error.
	FetchQuotes(ctx context.Context, symbols []string) ([]Quote, error)
}
