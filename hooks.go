package armor

// Hooks holds optional callback functions for pipeline lifecycle events. All
// fields are nil by default; callers set only the hooks they care about. Once
// constructed, a Hooks value must not be mutated — emit methods read the
// function fields without synchronisation, which is safe as long as the
// struct is read-only after initialisation.
//
// Pattern: Observer — decouples pipeline event emission from consumers
// (logging, metrics, alerting) without stages knowing about observers.
type Hooks struct {
	// OnRetry fires before the sleep preceding the next attempt. attempt is
	// 1-indexed; cause is the transport error or a [StatusError].
	OnRetry            func(attempt int, cause error)
	OnThrottleQueued   func()
	OnThrottleRejected func()
	OnBulkheadAcquired func()
	OnBulkheadReleased func()
	OnAttemptTimeout   func()
	// OnTraceEmitted fires after the tracer reports a retried attempt.
	OnTraceEmitted func(trace DependencyTrace)
}

func (h *Hooks) emitRetry(attempt int, cause error) {
	if h.OnRetry != nil {
		h.OnRetry(attempt, cause)
	}
}

func (h *Hooks) emitThrottleQueued() {
	if h.OnThrottleQueued != nil {
		h.OnThrottleQueued()
	}
}

func (h *Hooks) emitThrottleRejected() {
	if h.OnThrottleRejected != nil {
		h.OnThrottleRejected()
	}
}

func (h *Hooks) emitBulkheadAcquired() {
	if h.OnBulkheadAcquired != nil {
		h.OnBulkheadAcquired()
	}
}

func (h *Hooks) emitBulkheadReleased() {
	if h.OnBulkheadReleased != nil {
		h.OnBulkheadReleased()
	}
}

func (h *Hooks) emitAttemptTimeout() {
	if h.OnAttemptTimeout != nil {
		h.OnAttemptTimeout()
	}
}

func (h *Hooks) emitTraceEmitted(trace DependencyTrace) {
	if h.OnTraceEmitted != nil {
		h.OnTraceEmitted(trace)
	}
}
