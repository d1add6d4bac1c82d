package armor

import (
	"context"
	"net/http"
	"testing"
	"time"
)

// roundTripperFunc adapts a function to http.RoundTripper for stub
// transports.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// stubTransport returns a counting transport that always answers with
// status.
func stubTransport(status int, calls *int) Option {
	return WithTransport(roundTripperFunc(func(_ *http.Request) (*http.Response, error) {
		*calls++
		return testResponse(status, http.StatusText(status)), nil
	}))
}

// ---------------------------------------------------------------------------
// Tests: A pipeline without options is a pass-through to the transport
// ---------------------------------------------------------------------------

func TestNewPipelinePassThrough(t *testing.T) {
	want := testResponse(http.StatusOK, "ok")

	p := NewPipeline("", WithTransport(roundTripperFunc(
		func(_ *http.Request) (*http.Response, error) {
			return want, nil
		},
	)))

	resp, err := p.Do(context.Background(), newGetRequest(t))
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if resp != want {
		t.Fatalf("Do() = %p, want the transport response %p", resp, want)
	}
}

// ---------------------------------------------------------------------------
// Tests: Disabled policies leave no trace in behavior
// ---------------------------------------------------------------------------

func TestNewPipelineDisabledPoliciesAreAbsent(t *testing.T) {
	want := testResponse(http.StatusOK, "ok")
	transport := WithTransport(roundTripperFunc(
		func(_ *http.Request) (*http.Response, error) {
			return want, nil
		},
	))

	// Non-positive values disable each stage entirely.
	p := NewPipeline("",
		transport,
		WithRetry(0, time.Second),
		WithBulkhead(0),
		WithThrottle(0, time.Second, 5),
		WithTimeoutPerTry(0),
	)

	resp, err := p.Do(context.Background(), newGetRequest(t))
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if resp != want {
		t.Fatal("disabled policies must behave identically to an absent stage")
	}
	if p.throttle != nil || p.bulkhead != nil {
		t.Fatal("disabled stateful stages must not be constructed")
	}
}

// ---------------------------------------------------------------------------
// Tests: Rejection short-circuits before the transport
// ---------------------------------------------------------------------------

func TestNewPipelineThrottleRejectionSkipsTransport(t *testing.T) {
	calls := 0
	p := NewPipeline("",
		stubTransport(http.StatusOK, &calls),
		WithThrottle(1, time.Minute, 0),
	)

	req := newGetRequest(t)

	resp, err := p.Do(context.Background(), req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("first Do() = %v/%v, want 200/nil", resp, err)
	}

	resp, err = p.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("second Do() error = %v, want nil", err)
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second Do() status = %d, want 429", resp.StatusCode)
	}
	if calls != 1 {
		t.Fatalf("transport called %d times, want 1", calls)
	}
}

// ---------------------------------------------------------------------------
// Tests: Retry and tracer wire together through the chain
// ---------------------------------------------------------------------------

func TestNewPipelineRetryWithTracer(t *testing.T) {
	rep := &captureReporter{}
	clk := newImmediateTestClock()

	attempts := 0
	p := NewPipeline("",
		WithTransport(roundTripperFunc(func(_ *http.Request) (*http.Response, error) {
			attempts++
			if attempts < 3 {
				return testResponse(http.StatusInternalServerError, "boom"), nil
			}
			return testResponse(http.StatusOK, "ok"), nil
		})),
		WithClock(clk),
		WithRetry(3, time.Second),
		WithTracer(rep),
	)

	resp, err := p.Do(context.Background(), newGetRequest(t))
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Do() status = %d, want 200", resp.StatusCode)
	}
	if attempts != 3 {
		t.Fatalf("transport attempts = %d, want 3", attempts)
	}

	// Attempts 2 and 3 were retries, so exactly 2 traces.
	if n := len(rep.snapshot()); n != 2 {
		t.Fatalf("expected 2 traces, got %d", n)
	}
}

// ---------------------------------------------------------------------------
// Tests: Registration
// ---------------------------------------------------------------------------

func TestNewPipelineRegistersWithExplicitRegistry(t *testing.T) {
	reg := NewRegistry()

	p := NewPipeline("payments", WithRegistry(reg))

	status := reg.CheckReadiness()
	if len(status.Pipelines) != 1 {
		t.Fatalf("registered pipelines = %d, want 1", len(status.Pipelines))
	}
	if status.Pipelines[0].Name != "payments" {
		t.Fatalf("registered name = %q, want payments", status.Pipelines[0].Name)
	}
	if p.Name() != "payments" {
		t.Fatalf("Name() = %q, want payments", p.Name())
	}
}

func TestNewPipelineAnonymousDoesNotRegister(t *testing.T) {
	reg := NewRegistry()

	NewPipeline("", WithRegistry(reg))

	if n := len(reg.CheckReadiness().Pipelines); n != 0 {
		t.Fatalf("anonymous pipeline registered %d entries, want 0", n)
	}
}

// ---------------------------------------------------------------------------
// Tests: Retry interval defaults to one second
// ---------------------------------------------------------------------------

func TestNewPipelineRetryIntervalDefault(t *testing.T) {
	clk := newImmediateTestClock()

	attempts := 0
	p := NewPipeline("",
		WithTransport(roundTripperFunc(func(_ *http.Request) (*http.Response, error) {
			attempts++
			if attempts == 1 {
				return testResponse(http.StatusInternalServerError, "boom"), nil
			}
			return testResponse(http.StatusOK, "ok"), nil
		})),
		WithClock(clk),
		WithRetry(1, 0),
	)

	if _, err := p.Do(context.Background(), newGetRequest(t)); err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}

	durations := clk.getDurations()
	if len(durations) != 1 || durations[0] != time.Second {
		t.Fatalf("interval sleeps = %v, want [1s]", durations)
	}
}
