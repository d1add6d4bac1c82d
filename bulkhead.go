package armor

import (
	"context"
	"net/http"
	"sync/atomic"
)

// Bulkhead limits concurrent access to a dependency.
//
// Pattern: Bulkhead — semaphore-based concurrency limiter. Unlike a
// rejecting bulkhead, requests beyond the cap wait in an unbounded queue:
// shedding load is the throttle's job, not the bulkhead's. Under sustained
// overload the queue grows without bound, so a throttle should sit in front
// of it. Blocked acquirers are woken in roughly FIFO order by the runtime.
type Bulkhead struct {
	slots    chan struct{}
	hooks    *Hooks
	inFlight atomic.Int64
}

// NewBulkhead creates a bulkhead that allows at most maxParallel
// simultaneous calls.
func NewBulkhead(maxParallel int, hooks *Hooks) *Bulkhead {
	return &Bulkhead{
		slots: make(chan struct{}, maxParallel),
		hooks: hooks,
	}
}

// Acquire obtains a slot, waiting as long as needed. It returns the context
// error if ctx is cancelled while waiting.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.slots <- struct{}{}:
	default:
		select {
		case b.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // preserving context error identity
		}
	}

	b.inFlight.Add(1)
	b.hooks.emitBulkheadAcquired()

	return nil
}

// Release returns a slot. Every successful Acquire must be paired with
// exactly one Release, regardless of call outcome.
func (b *Bulkhead) Release() {
	<-b.slots
	b.inFlight.Add(-1)
	b.hooks.emitBulkheadReleased()
}

// Full returns true if all slots are in use.
func (b *Bulkhead) Full() bool {
	return len(b.slots) == cap(b.slots)
}

// InFlight returns the number of calls currently holding a slot.
func (b *Bulkhead) InFlight() int64 {
	return b.inFlight.Load()
}

// bulkheadStage bounds concurrent work admitted past the throttle. The slot
// is released when the wrapped call completes, success or failure.
func bulkheadStage(b *Bulkhead) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *http.Request) (*http.Response, error) {
			if err := b.Acquire(ctx); err != nil {
				return nil, err
			}
			defer b.Release()

			return next(ctx, req)
		}
	}
}
