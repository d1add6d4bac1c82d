package armor

import "sort"

// StageEntry holds a middleware with its priority for auto-ordering.
type StageEntry struct {
	MW       Middleware
	Name     string
	Priority int
}

// Priority constants fix the execution order of pipeline stages.
// Lower priority = outermost middleware (executed first). The throttle sits
// outermost so overload is shed before any resource is consumed; the tracer
// sits innermost so it observes exactly one transport call per attempt.
const (
	priorityThrottle      = 0
	priorityBulkhead      = 1
	priorityRetry         = 2
	priorityPerTryTimeout = 3 // inside retry: bounds each individual attempt
	priorityTrace         = 4 // innermost — wraps the transport
)

// SortStages sorts stage entries by priority (lowest first = outermost).
// Stable sort to preserve order of stages with the same priority.
func SortStages(entries []StageEntry) []Middleware {
	if len(entries) == 0 {
		return nil
	}

	// Copy to avoid mutating the caller's slice.
	sorted := make([]StageEntry, 0, len(entries))
	sorted = append(sorted, entries...)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	mws := make([]Middleware, 0, len(sorted))
	for _, e := range sorted {
		mws = append(mws, e.MW)
	}

	return mws
}
