package armor

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Pattern: Per-Try Timeout — bounds one attempt with a context deadline,
// returning ErrAttemptTimeout when the attempt itself timed out.
// Distinguishes attempt expiry from parent context cancellation, which keeps
// its identity so callers can tell a caller-initiated abort from a transient
// failure.

// doPerTry executes one attempt with a deadline of d. The transport honors
// the derived context, so expiry aborts the in-flight call promptly.
func doPerTry(
	ctx context.Context,
	d time.Duration,
	req *http.Request,
	next Handler,
	hooks *Hooks,
) (*http.Response, error) {
	// If the parent context is already done, return its error immediately.
	if ctx.Err() != nil {
		return nil, ctx.Err() //nolint:wrapcheck // preserving context error identity
	}

	tryCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	resp, err := next(tryCtx, req)
	if err == nil {
		return resp, nil
	}

	// The attempt failed while our deadline had expired and the parent was
	// still live: report the attempt as timed out so the retry controller
	// treats it as transient.
	if errors.Is(tryCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		hooks.emitAttemptTimeout()

		return nil, ErrAttemptTimeout
	}

	// Parent cancellation keeps its identity.
	if ctx.Err() != nil {
		return nil, ctx.Err() //nolint:wrapcheck // preserving context error identity
	}

	return nil, err
}

// perTryTimeoutStage applies doPerTry to every attempt flowing through it.
// It sits inside the retry stage, so each attempt gets a fresh deadline.
func perTryTimeoutStage(d time.Duration, hooks *Hooks) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *http.Request) (*http.Response, error) {
			return doPerTry(ctx, d, req, next, hooks)
		}
	}
}
