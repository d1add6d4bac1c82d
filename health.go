package armor

// ---------------------------------------------------------------------------
// HealthReporter interface
// ---------------------------------------------------------------------------.

type (
	// HealthReporter is implemented by Pipeline. It exposes the saturation
	// state of the stateful stages for readiness probes.
	HealthReporter interface {
		// Name returns the dependency name.
		Name() string
		// HealthStatus returns the current health state of the pipeline.
		HealthStatus() PipelineStatus
	}

	// Criticality represents how a stage's saturated state affects
	// readiness.
	Criticality int

	// PipelineStatus represents the current health state of a pipeline.
	PipelineStatus struct {
		Name        string      `json:"name"`
		State       string      `json:"state"`
		Criticality Criticality `json:"criticality"`
		Healthy     bool        `json:"healthy"`
	}
)

const (
	// CriticalityNone means no stage holds persistent saturation state.
	CriticalityNone Criticality = iota
	// CriticalityDegraded means the dependency still serves but is shedding
	// or queueing load.
	CriticalityDegraded
	// CriticalityCritical means the dependency cannot reliably serve
	// requests.
	CriticalityCritical
)

// String returns the criticality level as a human-readable string.
func (c Criticality) String() string {
	switch c {
	case CriticalityDegraded:
		return "degraded"
	case CriticalityCritical:
		return "critical"
	default:
		return "none"
	}
}

// HealthStatus derives the pipeline's current health by inspecting the
// stateful stages. Saturation is degradation, not failure: a saturated
// throttle or full bulkhead means load is being shed or queued, while the
// dependency itself may be perfectly healthy.
func (p *Pipeline) HealthStatus() PipelineStatus {
	status := PipelineStatus{
		Name:    p.name,
		Healthy: true,
		State:   "healthy",
	}

	if p.throttle != nil && p.throttle.Saturated() {
		status.Criticality = CriticalityDegraded
		status.State = "throttled"
	}

	if p.bulkhead != nil && p.bulkhead.Full() {
		if status.Criticality < CriticalityDegraded {
			status.Criticality = CriticalityDegraded
		}

		if status.State == "healthy" {
			status.State = "bulkhead_full"
		}
	}

	return status
}
