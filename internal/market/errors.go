package market

import "errors"

// Error taxonomy for upstream failures. Callers branch on these with
// errors.Is; everything else coming out of a gateway is treated like
// ErrUpstreamUnavailable.
var (
	// ErrThrottled marks an upstream "too many requests" response. It is the
	// only error class the rate-limit guard retries, and the only one that
	// trips the circuit breaker.
	ErrThrottled = errors.New("upstream throttled")

	// ErrUpstreamUnavailable covers network failures, timeouts and malformed
	// responses. Never retried; callers fall back to cached data.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrBreakerOpen is returned without any network attempt while the
	// circuit breaker cool-down is running.
	ErrBreakerOpen = errors.New("circuit breaker open")
)
