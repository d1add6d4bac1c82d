package armor

import (
	"context"
	"net/http"
)

// Pattern: Decorator — each pipeline stage wraps the next, forming a
// composable chain where order determines execution semantics.

// Handler performs one outbound HTTP call. The innermost handler of a
// pipeline is the transport; every stage above it is a [Middleware].
type Handler func(ctx context.Context, req *http.Request) (*http.Response, error)

// Middleware wraps a handler with additional behavior. Each middleware
// receives the next handler in the chain and returns a wrapped version.
type Middleware func(next Handler) Handler

// Chain composes multiple middlewares into a single middleware.
// Middlewares are applied in order: the first middleware is the outermost
// wrapper.
//
// Chain(a, b, c) produces a(b(c(next))) — a is outermost, c is innermost.
// Chain() with zero middlewares returns an identity middleware that passes
// through to next.
func Chain(middlewares ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}

		return next
	}
}
