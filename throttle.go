package armor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// Throttle — fixed-window admission control with a bounded wait queue
// ---------------------------------------------------------------------------

// Throttle bounds the number of requests admitted per time window.
//
// Pattern: Rate Limiter — fixed window counter with a bounded FIFO wait
// queue. Requests beyond the per-window limit wait (oldest first) for the
// next window boundary; once the queue is full, further requests are
// rejected with a [ThrottledError] carrying the next permissible time.
type Throttle struct {
	limit      int
	window     time.Duration
	queueLimit int
	clock      Clock
	hooks      *Hooks

	mu          sync.Mutex
	windowStart time.Time
	issued      int
	waiters     []*throttleWaiter
	wakeArmed   bool
}

// throttleWaiter is one queued request. granted and cancelled are guarded by
// the throttle mutex; ready is closed exactly once, by the granter.
type throttleWaiter struct {
	ready     chan struct{}
	granted   bool
	cancelled bool
}

// NewThrottle creates a throttle admitting limit requests per window, with
// up to queueLimit requests waiting for the next window boundary.
func NewThrottle(limit int, window time.Duration, queueLimit int, clock Clock, hooks *Hooks) *Throttle {
	return &Throttle{
		limit:       limit,
		window:      window,
		queueLimit:  queueLimit,
		clock:       clock,
		hooks:       hooks,
		windowStart: clock.Now(),
	}
}

// roll resets the permit counter when the window has elapsed.
// Must be called with mu held.
func (t *Throttle) roll(now time.Time) {
	if now.Sub(t.windowStart) >= t.window {
		t.windowStart = now
		t.issued = 0
	}
}

// Acquire obtains a permit for the current window. It returns nil when a
// permit is issued (immediately or after queuing), a [ThrottledError] when
// the wait queue is full, and the context error when ctx is cancelled while
// queued.
func (t *Throttle) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // preserving context error identity
	}

	t.mu.Lock()

	now := t.clock.Now()
	t.roll(now)

	if t.issued < t.limit {
		t.issued++
		t.mu.Unlock()

		return nil
	}

	if len(t.waiters) >= t.queueLimit {
		retryAt := t.windowStart.Add(t.window)
		t.mu.Unlock()
		t.hooks.emitThrottleRejected()

		return &ThrottledError{RetryAt: retryAt}
	}

	w := &throttleWaiter{ready: make(chan struct{})}
	t.waiters = append(t.waiters, w)
	t.armWake(now)
	t.mu.Unlock()
	t.hooks.emitThrottleQueued()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		t.mu.Lock()
		if w.granted {
			// Granted and cancelled raced; the permit was already consumed,
			// let the request proceed.
			t.mu.Unlock()

			return nil
		}

		w.cancelled = true
		t.mu.Unlock()

		return ctx.Err() //nolint:wrapcheck // preserving context error identity
	}
}

// armWake schedules a wake-up at the next window boundary if none is
// pending. Must be called with mu held.
func (t *Throttle) armWake(now time.Time) {
	if t.wakeArmed {
		return
	}

	t.wakeArmed = true

	delay := t.windowStart.Add(t.window).Sub(now)
	if delay < 0 {
		delay = 0
	}

	go t.wake(delay)
}

// wake fires at a window boundary and grants permits to queued waiters,
// oldest first, up to the per-window limit. If waiters remain it re-arms for
// the following boundary.
func (t *Throttle) wake(delay time.Duration) {
	timer := t.clock.NewTimer(delay)
	<-timer.C()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.wakeArmed = false

	now := t.clock.Now()
	t.roll(now)

	for t.issued < t.limit && len(t.waiters) > 0 {
		w := t.waiters[0]
		t.waiters = t.waiters[1:]

		if w.cancelled {
			continue
		}

		w.granted = true
		t.issued++
		close(w.ready)
	}

	if len(t.waiters) > 0 {
		t.armWake(now)
	}
}

// Saturated reports whether the throttle is rejecting: the current window's
// permits are spent and the wait queue is full.
func (t *Throttle) Saturated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.roll(t.clock.Now())

	return t.issued >= t.limit && len(t.waiters) >= t.queueLimit
}

// Queued returns the number of requests waiting for the next window.
func (t *Throttle) Queued() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.waiters)
}

// ---------------------------------------------------------------------------
// Synthesized rejection response
// ---------------------------------------------------------------------------

// HeaderRateLimitSource marks a 429 as synthesized inside the pipeline
// rather than returned by the remote dependency.
const HeaderRateLimitSource = "X-RateLimit-Source"

// RateLimitSourceInternal is the HeaderRateLimitSource value for rejections
// synthesized by the throttle stage.
const RateLimitSourceInternal = "Internal"

const rejectionMessage = "request rejected by local rate limiter"

// rejectionResponse builds the 429 returned for a throttled request. The
// transport is never invoked for such a request.
func rejectionResponse(req *http.Request, retryAt time.Time) *http.Response {
	header := make(http.Header)
	header.Set("Retry-After", retryAt.UTC().Format(http.TimeFormat))
	header.Set(HeaderRateLimitSource, RateLimitSourceInternal)
	header.Set("Content-Type", "text/plain; charset=utf-8")

	body := []byte(rejectionMessage)

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", http.StatusTooManyRequests, rejectionMessage),
		StatusCode:    http.StatusTooManyRequests,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// throttleStage converts throttle decisions into HTTP semantics: admitted
// requests pass through, full-queue rejections become a synthesized 429.
func throttleStage(t *Throttle) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *http.Request) (*http.Response, error) {
			if err := t.Acquire(ctx); err != nil {
				var te *ThrottledError
				if errors.As(err, &te) {
					return rejectionResponse(req, te.RetryAt), nil
				}

				return nil, err
			}

			return next(ctx, req)
		}
	}
}
