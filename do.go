package armor

import (
	"context"
	"net/http"
)

// Do is a convenience function that sends a single request through an
// anonymous pipeline built from opts. The pipeline is not registered with
// any [Registry]; prefer [NewPipeline] or [NewClient] for dependencies
// called more than once, so the throttle and bulkhead state persists.
func Do(ctx context.Context, req *http.Request, opts ...Option) (*http.Response, error) {
	p := NewPipeline("", opts...)
	return p.Do(ctx, req)
}
