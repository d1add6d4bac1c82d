package armor

import (
	"context"
	"net/http"
	"time"
)

// ---------------------------------------------------------------------------
// Pipeline — one immutable handler chain per named HTTP dependency
// ---------------------------------------------------------------------------

// Pipeline is the ordered chain of resilience stages wrapping a transport
// call. Build it once at startup with [NewPipeline] and share it across all
// callers of that dependency; the throttle's window state and the bulkhead's
// slot count are the only mutable state, and both are safe for concurrent
// use.
//
// Pattern: Functional Options — configures Pipeline via composable option
// functions; disabled policies are simply absent from the chain.
type Pipeline struct {
	name    string
	hooks   Hooks
	clock   Clock
	handler Handler

	// References to stateful stages (needed later for health reporting).
	throttle *Throttle
	bulkhead *Bulkhead

	// Registry this pipeline is registered with (nil if anonymous or opted
	// out).
	registry *Registry
}

// Name returns the pipeline's dependency name.
func (p *Pipeline) Name() string { return p.name }

// Do sends req through the stage chain and returns the response or a
// synthesized rejection. The transport is reached only by admitted,
// non-rejected attempts.
func (p *Pipeline) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return p.handler(ctx, req)
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// pipelineSetup holds configuration collected before stage assembly.
type pipelineSetup struct {
	clock     Clock
	hooks     Hooks
	registry  *Registry
	transport Handler
	reporter  TraceReporter

	throttle *throttleDesc
	bulkhead *bulkheadDesc
	retry    *retryDesc
	perTry   *perTryDesc
}

// Option configures a pipeline under construction.
type Option func(*pipelineSetup)

// throttleDesc holds deferred throttle configuration.
type throttleDesc struct {
	limit      int
	window     time.Duration
	queueLimit int
}

// bulkheadDesc holds deferred bulkhead configuration.
type bulkheadDesc struct {
	maxParallel int
}

// retryDesc holds deferred retry configuration.
type retryDesc struct {
	count    int
	interval time.Duration
	opts     []RetryOption
}

// perTryDesc holds deferred per-try timeout configuration.
type perTryDesc struct {
	d time.Duration
}

// WithClock sets the clock used by all stages within this pipeline.
func WithClock(c Clock) Option {
	return func(s *pipelineSetup) {
		s.clock = c
	}
}

// WithHooks sets the lifecycle hooks for all stages within this pipeline.
func WithHooks(h Hooks) Option {
	return func(s *pipelineSetup) {
		s.hooks = h
	}
}

// WithRegistry sets an explicit registry for the pipeline to register with.
// If not provided, named pipelines auto-register with DefaultRegistry.
func WithRegistry(reg *Registry) Option {
	return func(s *pipelineSetup) {
		s.registry = reg
	}
}

// WithTransport sets the innermost stage to rt. Defaults to
// [http.DefaultTransport].
func WithTransport(rt http.RoundTripper) Option {
	return func(s *pipelineSetup) {
		s.transport = transportHandler(rt)
	}
}

// withTransportHandler sets the innermost stage directly. Used by Client to
// install an http.Client-backed transport (cookie jar).
func withTransportHandler(h Handler) Option {
	return func(s *pipelineSetup) {
		s.transport = h
	}
}

// WithThrottle adds fixed-window admission control: limit requests per
// window, with up to queueLimit requests waiting for the next window. A
// non-positive limit leaves the stage out.
func WithThrottle(limit int, window time.Duration, queueLimit int) Option {
	return func(s *pipelineSetup) {
		s.throttle = &throttleDesc{limit: limit, window: window, queueLimit: queueLimit}
	}
}

// WithBulkhead adds a concurrency cap of maxParallel simultaneous calls.
// A non-positive cap leaves the stage out.
func WithBulkhead(maxParallel int) Option {
	return func(s *pipelineSetup) {
		s.bulkhead = &bulkheadDesc{maxParallel: maxParallel}
	}
}

// WithRetry adds retry logic: count retries after the initial attempt, a
// fixed interval between attempts, and optional retry configuration. A
// non-positive count leaves the stage out.
func WithRetry(count int, interval time.Duration, opts ...RetryOption) Option {
	return func(s *pipelineSetup) {
		s.retry = &retryDesc{count: count, interval: interval, opts: opts}
	}
}

// WithTimeoutPerTry bounds each individual attempt with deadline d,
// distinct from any overall request deadline the caller supplies. A
// non-positive d leaves the stage out.
func WithTimeoutPerTry(d time.Duration) Option {
	return func(s *pipelineSetup) {
		s.perTry = &perTryDesc{d: d}
	}
}

// WithTracer records a [DependencyTrace] for every retried attempt via r.
func WithTracer(r TraceReporter) Option {
	return func(s *pipelineSetup) {
		s.reporter = r
	}
}

// ---------------------------------------------------------------------------
// NewPipeline — construct and wire up the chain
// ---------------------------------------------------------------------------

// transportHandler adapts an http.RoundTripper to the innermost Handler.
func transportHandler(rt http.RoundTripper) Handler {
	return func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return rt.RoundTrip(req.WithContext(ctx)) //nolint:wrapcheck // transport errors surface as-is
	}
}

// NewPipeline creates a [Pipeline] with the given dependency name and
// options. Only configured stages enter the chain; a pipeline with no
// options at all is a plain pass-through to the transport, byte-identical in
// behavior to calling it directly.
func NewPipeline(name string, opts ...Option) *Pipeline {
	setup := pipelineSetup{}
	for _, opt := range opts {
		opt(&setup)
	}

	if setup.clock == nil {
		setup.clock = RealClock{}
	}

	if setup.transport == nil {
		setup.transport = transportHandler(http.DefaultTransport)
	}

	p := &Pipeline{
		name:  name,
		hooks: setup.hooks,
		clock: setup.clock,
	}

	hooks := &p.hooks
	clock := setup.clock

	var entries []StageEntry

	if d := setup.throttle; d != nil && d.limit > 0 && d.window > 0 {
		p.throttle = NewThrottle(d.limit, d.window, d.queueLimit, clock, hooks)
		entries = append(entries, StageEntry{
			Priority: priorityThrottle,
			Name:     "throttle",
			MW:       throttleStage(p.throttle),
		})
	}

	if d := setup.bulkhead; d != nil && d.maxParallel > 0 {
		p.bulkhead = NewBulkhead(d.maxParallel, hooks)
		entries = append(entries, StageEntry{
			Priority: priorityBulkhead,
			Name:     "bulkhead",
			MW:       bulkheadStage(p.bulkhead),
		})
	}

	if d := setup.retry; d != nil && d.count > 0 {
		var cfg retryConfig
		for _, opt := range d.opts {
			opt(&cfg)
		}

		interval := d.interval
		if interval <= 0 {
			interval = time.Second
		}

		entries = append(entries, StageEntry{
			Priority: priorityRetry,
			Name:     "retry",
			MW: retryStage(retryParams{
				count:    d.count,
				interval: interval,
				cfg:      cfg,
				hooks:    hooks,
				clock:    clock,
			}),
		})
	}

	if d := setup.perTry; d != nil && d.d > 0 {
		entries = append(entries, StageEntry{
			Priority: priorityPerTryTimeout,
			Name:     "timeout_per_try",
			MW:       perTryTimeoutStage(d.d, hooks),
		})
	}

	if setup.reporter != nil {
		entries = append(entries, StageEntry{
			Priority: priorityTrace,
			Name:     "trace",
			MW:       traceStage(setup.reporter, clock, hooks),
		})
	}

	// Sort by priority and chain around the transport.
	p.handler = Chain(SortStages(entries)...)(setup.transport)

	// Auto-register if the pipeline has a name.
	if name != "" {
		reg := setup.registry
		if reg == nil {
			reg = DefaultRegistry()
		}

		p.registry = reg
		reg.Register(p)
	}

	return p
}
