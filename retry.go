package armor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// retryConfig holds the optional configuration for retry behavior.
type retryConfig struct {
	extraCodes map[int]struct{} // statuses retryable in addition to 5xx/408
	allMethods bool             // retry non-GET methods too
}

// RetryOption configures retry behavior.
type RetryOption func(*retryConfig)

// AdditionalStatusCodes marks extra HTTP status codes as retryable, on top
// of the built-in 5xx and 408 classification.
func AdditionalStatusCodes(codes ...int) RetryOption {
	return func(cfg *retryConfig) {
		if cfg.extraCodes == nil {
			cfg.extraCodes = make(map[int]struct{}, len(codes))
		}
		for _, c := range codes {
			cfg.extraCodes[c] = struct{}{}
		}
	}
}

// RetryAllMethods makes every HTTP method eligible for retry. Without it
// only GET requests are retried; non-GET failures surface on the first
// attempt.
func RetryAllMethods() RetryOption {
	return func(cfg *retryConfig) {
		cfg.allMethods = true
	}
}

// retryParams carries the resolved retry settings into doRetry.
type retryParams struct {
	count    int // number of retries after the initial attempt
	interval time.Duration
	cfg      retryConfig
	hooks    *Hooks
	clock    Clock
}

// retryableStatus reports whether an HTTP status code warrants another
// attempt: any 5xx, 408, or an explicitly configured additional code.
func retryableStatus(code int, extra map[int]struct{}) bool {
	if code >= http.StatusInternalServerError || code == http.StatusRequestTimeout {
		return true
	}

	_, ok := extra[code]

	return ok
}

// drainLimit caps how much of an abandoned response body is read before
// closing, enough to let the transport reuse the connection.
const drainLimit = 64 << 10

// drainBody discards and closes the body of a response that will not be
// surfaced to the caller.
func drainBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	_ = resp.Body.Close()
}

// Pattern: Retry — masks transient failures by re-issuing the attempt after
// a fixed interval. Deliberately not exponential: the interval mirrors the
// dependency contract, and shedding is handled upstream by the throttle.

// doRetry executes req through next with retry logic. Retryable outcomes are
// transport errors, attempt timeouts, and retryable statuses; parent
// cancellation always stops the loop. The second and subsequent attempts run
// under a context flagged via withRetryAttempt so the tracer can pick them
// out.
func doRetry(ctx context.Context, req *http.Request, next Handler, p retryParams) (*http.Response, error) {
	attempts := p.count + 1

	// Only GET is idempotent-by-contract here; other methods get a single
	// attempt unless the pipeline is configured to retry all methods.
	if req.Method != http.MethodGet && !p.cfg.allMethods {
		attempts = 1
	}

	// A body that cannot be rewound pins the request to a single attempt;
	// decided up front so no retry is announced or slept for.
	if req.Body != nil && req.GetBody == nil {
		attempts = 1
	}

	var (
		lastResp *http.Response
		lastErr  error
	)

	for attempt := 0; attempt < attempts; attempt++ {
		attemptCtx := ctx
		attemptReq := req

		if attempt > 0 {
			attemptCtx = withRetryAttempt(ctx)

			// Replay the request body if there is one.
			if req.Body != nil {
				body, err := req.GetBody()
				if err != nil {
					break
				}

				attemptReq = req.Clone(ctx)
				attemptReq.Body = body
			}
		}

		resp, err := next(attemptCtx, attemptReq)

		// Parent cancellation is not a transient failure; unwind now.
		if ctx.Err() != nil {
			if err == nil {
				drainBody(resp)
			}

			return nil, ctx.Err() //nolint:wrapcheck // preserving context error identity
		}

		if err == nil && !retryableStatus(resp.StatusCode, p.cfg.extraCodes) {
			return resp, nil
		}

		// Discard the previous retryable response before replacing it.
		drainBody(lastResp)
		lastResp, lastErr = resp, err

		if attempt == attempts-1 {
			break
		}

		cause := lastErr
		if cause == nil {
			cause = &StatusError{StatusCode: lastResp.StatusCode}
		}

		// Emit OnRetry with the 1-indexed attempt that just failed.
		p.hooks.emitRetry(attempt+1, cause)

		// Sleep the fixed interval using Clock, respecting cancellation.
		timer := p.clock.NewTimer(p.interval)
		select {
		case <-timer.C():
		case <-ctx.Done():
			timer.Stop()
			drainBody(lastResp)

			return nil, ctx.Err() //nolint:wrapcheck // preserving context error identity
		}
	}

	// Exhausted. A final HTTP response is surfaced as-is — a 500 after N
	// retries is a normal failure path for the caller, not a transport
	// crash. Pure errors are wrapped so callers can detect exhaustion.
	if lastResp != nil {
		return lastResp, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
}

// retryStage wraps the inner stages (per-try timeout, tracer, transport)
// with doRetry.
func retryStage(p retryParams) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *http.Request) (*http.Response, error) {
			return doRetry(ctx, req, next, p)
		}
	}
}

// IsRetriesExhausted reports whether err marks a request that failed every
// configured attempt.
func IsRetriesExhausted(err error) bool {
	return errors.Is(err, ErrRetriesExhausted)
}
