// Package armor wraps outbound HTTP dependency calls with composable
// resilience policies: fixed-window rate limiting with a bounded wait
// queue, a concurrency bulkhead, fixed-interval retries with per-try
// timeouts, and selective dependency tracing for retried attempts.
//
// The central type is Pipeline, an immutable ordered handler chain built
// once per named dependency via [NewPipeline] with functional options.
// Rejected requests never reach the transport; they are answered with a
// synthesized 429 carrying retry guidance.
package armor
