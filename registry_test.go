package armor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

type staticReporter struct {
	status PipelineStatus
}

func (r staticReporter) Name() string                 { return r.status.Name }
func (r staticReporter) HealthStatus() PipelineStatus { return r.status }

func healthyReporter(name string) staticReporter {
	return staticReporter{status: PipelineStatus{Name: name, State: "healthy", Healthy: true}}
}

// ---------------------------------------------------------------------------
// Tests: Registry
// ---------------------------------------------------------------------------

func TestRegistryEmptyIsReady(t *testing.T) {
	reg := NewRegistry()

	status := reg.CheckReadiness()
	if !status.Ready {
		t.Fatal("CheckReadiness().Ready = false for empty registry, want true")
	}
	if len(status.Pipelines) != 0 {
		t.Fatalf("Pipelines = %v, want empty", status.Pipelines)
	}
}

func TestRegistryCheckReadinessCollectsAll(t *testing.T) {
	reg := NewRegistry()
	reg.Register(healthyReporter("alpha"))
	reg.Register(healthyReporter("beta"))

	status := reg.CheckReadiness()
	if !status.Ready {
		t.Fatal("Ready = false, want true")
	}
	if len(status.Pipelines) != 2 {
		t.Fatalf("Pipelines count = %d, want 2", len(status.Pipelines))
	}
	if status.Pipelines[0].Name != "alpha" || status.Pipelines[1].Name != "beta" {
		t.Fatalf("Pipelines = %+v, want registration order preserved", status.Pipelines)
	}
}

func TestRegistryCriticalUnhealthyBlocksReadiness(t *testing.T) {
	reg := NewRegistry()
	reg.Register(healthyReporter("alpha"))
	reg.Register(staticReporter{status: PipelineStatus{
		Name:        "beta",
		State:       "down",
		Criticality: CriticalityCritical,
		Healthy:     false,
	}})

	if reg.CheckReadiness().Ready {
		t.Fatal("Ready = true with a critical unhealthy pipeline, want false")
	}
}

func TestRegistryDegradedDoesNotBlockReadiness(t *testing.T) {
	reg := NewRegistry()
	reg.Register(staticReporter{status: PipelineStatus{
		Name:        "alpha",
		State:       "throttled",
		Criticality: CriticalityDegraded,
		Healthy:     true,
	}})

	if !reg.CheckReadiness().Ready {
		t.Fatal("Ready = false for a degraded-but-healthy pipeline, want true")
	}
}

func TestRegistryConcurrentRegisterAndCheck(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.Register(healthyReporter("dep"))
		}()
		go func() {
			defer wg.Done()
			_ = reg.CheckReadiness()
		}()
	}
	wg.Wait()

	if got := len(reg.CheckReadiness().Pipelines); got != 10 {
		t.Fatalf("registered %d reporters, want 10", got)
	}
}

func TestDefaultRegistryIsSingleton(t *testing.T) {
	if DefaultRegistry() != DefaultRegistry() {
		t.Fatal("DefaultRegistry() returned distinct instances")
	}
}

// ---------------------------------------------------------------------------
// Tests: Pipeline health reporting
// ---------------------------------------------------------------------------

func TestPipelineHealthStatusHealthy(t *testing.T) {
	var calls int
	p := NewPipeline("dep",
		WithRegistry(NewRegistry()),
		WithThrottle(5, time.Second, 2),
		WithBulkhead(3),
		stubTransport(http.StatusOK, &calls),
	)

	status := p.HealthStatus()
	if !status.Healthy || status.State != "healthy" {
		t.Fatalf("HealthStatus() = %+v, want healthy", status)
	}
	if status.Criticality != CriticalityNone {
		t.Fatalf("Criticality = %v, want none", status.Criticality)
	}
}

func TestPipelineHealthStatusThrottled(t *testing.T) {
	var calls int
	p := NewPipeline("dep",
		WithRegistry(NewRegistry()),
		WithThrottle(1, time.Hour, 0),
		stubTransport(http.StatusOK, &calls),
	)

	resp, err := p.Do(context.Background(), newGetRequest(t))
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	status := p.HealthStatus()
	if status.State != "throttled" {
		t.Fatalf("State = %q, want throttled", status.State)
	}
	if status.Criticality != CriticalityDegraded {
		t.Fatalf("Criticality = %v, want degraded", status.Criticality)
	}
	if !status.Healthy {
		t.Fatal("Healthy = false, saturation is degradation, not failure")
	}
}

func TestPipelineHealthStatusBulkheadFull(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	p := NewPipeline("dep",
		WithRegistry(NewRegistry()),
		WithBulkhead(1),
		withTransportHandler(func(ctx context.Context, _ *http.Request) (*http.Response, error) {
			close(entered)
			select {
			case <-release:
			case <-ctx.Done():
			}

			return testResponse(http.StatusOK, "ok"), nil
		}),
	)

	done := make(chan struct{})
	req := newGetRequest(t)
	go func() {
		defer close(done)
		resp, err := p.Do(context.Background(), req)
		if err == nil {
			resp.Body.Close()
		}
	}()

	<-entered

	status := p.HealthStatus()
	if status.State != "bulkhead_full" {
		t.Fatalf("State = %q, want bulkhead_full", status.State)
	}
	if status.Criticality != CriticalityDegraded {
		t.Fatalf("Criticality = %v, want degraded", status.Criticality)
	}

	close(release)
	<-done
}

func TestCriticalityString(t *testing.T) {
	cases := []struct {
		c    Criticality
		want string
	}{
		{CriticalityNone, "none"},
		{CriticalityDegraded, "degraded"},
		{CriticalityCritical, "critical"},
	}
	for _, tc := range cases {
		if got := tc.c.String(); got != tc.want {
			t.Fatalf("Criticality(%d).String() = %q, want %q", tc.c, got, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Tests: ReadinessHandler
// ---------------------------------------------------------------------------

func TestReadinessHandlerOK(t *testing.T) {
	reg := NewRegistry()
	reg.Register(healthyReporter("alpha"))

	rec := httptest.NewRecorder()
	ReadinessHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", ct)
	}

	var status ReadinessStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if !status.Ready || len(status.Pipelines) != 1 {
		t.Fatalf("decoded status = %+v", status)
	}
}

func TestReadinessHandlerServiceUnavailable(t *testing.T) {
	reg := NewRegistry()
	reg.Register(staticReporter{status: PipelineStatus{
		Name:        "beta",
		State:       "down",
		Criticality: CriticalityCritical,
		Healthy:     false,
	}})

	rec := httptest.NewRecorder()
	ReadinessHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var status ReadinessStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if status.Ready {
		t.Fatal("Ready = true in 503 body, want false")
	}
}
