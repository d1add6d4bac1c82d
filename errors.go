package armor

import (
	"net/http"
	"strconv"
	"time"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------.

type (
	// PipelineError identifies errors produced by the resilience pipeline
	// itself, as opposed to errors from the underlying transport.
	//nolint:iface // exported for use in tests and consumer error
	// classification.
	PipelineError interface {
		error
		// IsPipeline reports whether this error originates from the
		// pipeline.
		IsPipeline() bool
	}

	// pipelineError is the concrete type backing all sentinel errors.
	pipelineError string
)

// Sentinel pipeline errors.
var (
	// ErrThrottled is returned when a request is rejected because the rate
	// limiter's wait queue is full. The throttle stage converts it into a
	// synthesized 429 response before it reaches the caller.
	ErrThrottled error = pipelineError("throttle queue full")
	// ErrAttemptTimeout is returned when a single attempt exceeds its
	// per-try deadline. It is retryable.
	ErrAttemptTimeout error = pipelineError("attempt timeout")
	// ErrRetriesExhausted wraps the last error once all retry attempts have
	// been used without success.
	ErrRetriesExhausted error = pipelineError("retries exhausted")
)

func (e pipelineError) Error() string { return string(e) }

// IsPipeline reports whether the error is a pipeline infrastructure error.
func (pipelineError) IsPipeline() bool { return true }

// ThrottledError carries the time at which the next permit window opens.
// It matches ErrThrottled under [errors.Is].
type ThrottledError struct {
	// RetryAt is the start of the next window, when capacity replenishes.
	RetryAt time.Time
}

// Error returns a human-readable description including the retry time.
func (e *ThrottledError) Error() string {
	return "throttle queue full, retry at " + e.RetryAt.UTC().Format(http.TimeFormat)
}

// IsPipeline reports whether the error is a pipeline infrastructure error.
func (*ThrottledError) IsPipeline() bool { return true }

// Is makes ThrottledError match the ErrThrottled sentinel.
func (*ThrottledError) Is(target error) bool { return target == ErrThrottled }

// StatusError describes an HTTP status code that triggered a retry. It is
// passed to the OnRetry hook when the failed attempt produced a response
// rather than a transport error.
type StatusError struct {
	StatusCode int
}

// Error returns a human-readable description of the status error.
func (e *StatusError) Error() string {
	return "http status " + strconv.Itoa(e.StatusCode)
}
