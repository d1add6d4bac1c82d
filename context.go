package armor

import "context"

// retryAttemptKey marks a request context as belonging to a retried attempt.
// The retry controller sets it before the second and subsequent attempts;
// inner stages (the tracer in particular) only ever read it.
type retryAttemptKey struct{}

// withRetryAttempt returns a context flagged as a retried attempt.
func withRetryAttempt(ctx context.Context) context.Context {
	return context.WithValue(ctx, retryAttemptKey{}, true)
}

// IsRetryAttempt reports whether ctx belongs to the second or a subsequent
// attempt of a request. First attempts are expected to be traced by baseline
// instrumentation outside this pipeline.
func IsRetryAttempt(ctx context.Context) bool {
	v, ok := ctx.Value(retryAttemptKey{}).(bool)
	return ok && v
}
