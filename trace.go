package armor

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// DependencyTrace is a timed, outcome-tagged record of one outbound call,
// emitted for retried attempts only and consumed by an external monitoring
// collaborator.
type DependencyTrace struct {
	// Type is the dependency kind, always "Http" for this pipeline.
	Type string
	// Target is the remote host.
	Target string
	// Operation is the request path.
	Operation string
	// Data is the full request URL.
	Data string
	// ResultCode is the stringified HTTP status, empty when the attempt
	// produced no response.
	ResultCode string
	// Success is true when the status was in [200, 400).
	Success bool
	Start   time.Time
	// Duration covers the attempt from entry to completion, whatever the
	// outcome path.
	Duration time.Duration
}

// dependencyTypeHTTP tags every trace emitted by this pipeline.
const dependencyTypeHTTP = "Http"

// TraceReporter consumes dependency traces. Implementations must be safe for
// concurrent use; the tracer calls Report from whichever goroutine runs the
// attempt.
type TraceReporter interface {
	Report(trace DependencyTrace)
}

// TraceReporterFunc adapts a function to the [TraceReporter] interface.
type TraceReporterFunc func(trace DependencyTrace)

// Report calls f(trace).
func (f TraceReporterFunc) Report(trace DependencyTrace) { f(trace) }

// Pattern: Selective tracing — first attempts are assumed to be covered by
// baseline instrumentation outside the pipeline; only retried attempts get a
// span here, so retry storms become visible without double-counting.

// traceStage records one DependencyTrace per retried attempt. The trace is
// reported exactly once on every outcome path: success, error, or
// cancellation.
func traceStage(reporter TraceReporter, clock Clock, hooks *Hooks) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *http.Request) (*http.Response, error) {
			if !IsRetryAttempt(ctx) {
				return next(ctx, req)
			}

			trace := DependencyTrace{
				Type:      dependencyTypeHTTP,
				Target:    req.URL.Host,
				Operation: req.URL.Path,
				Data:      req.URL.String(),
				Start:     clock.Now(),
			}

			defer func() {
				trace.Duration = clock.Since(trace.Start)
				reporter.Report(trace)
				hooks.emitTraceEmitted(trace)
			}()

			resp, err := next(ctx, req)
			if err != nil {
				return nil, err
			}

			trace.ResultCode = strconv.Itoa(resp.StatusCode)
			trace.Success = resp.StatusCode >= http.StatusOK &&
				resp.StatusCode < http.StatusBadRequest

			return resp, nil
		}
	}
}
