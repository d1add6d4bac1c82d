package armor

import "time"

// Pattern: Factory Function — each preset produces a ready-made option bundle
// for a common dependency shape, avoiding boilerplate configuration.

// StandardDependency returns options suitable for a typical outbound
// dependency: 3 retries at 1s intervals with a 5s per-try deadline.
func StandardDependency() []Option {
	return []Option{
		WithRetry(3, time.Second),
		WithTimeoutPerTry(5 * time.Second),
	}
}

// HighTrafficDependency returns options for dependencies called at volume:
// 100 requests per second with a queue of 20, a bulkhead of 20 concurrent
// calls, 2 retries at 1s intervals, and a 2s per-try deadline.
func HighTrafficDependency() []Option {
	return []Option{
		WithThrottle(100, time.Second, 20),
		WithBulkhead(20),
		WithRetry(2, time.Second),
		WithTimeoutPerTry(2 * time.Second),
	}
}
