package client

import (
	"context"

	"github.com/arrowhead-dev/llmbridge/internal/canonical"
)

// Handler dispatches a prepared request to the current provider. It is
// what the innermost Interceptor ultimately calls.
type Handler func(ctx context.Context, req *canonical.Request) (*canonical.Response, error)

// Interceptor wraps a Handler, per spec.md §4.14's "optional interceptor
// pipeline" — e.g. request/response logging, redaction, or injected
// headers. Interceptors compose outside-in: the first in the slice sees
// the request first and the response last.
type Interceptor func(ctx context.Context, req *canonical.Request, next Handler) (*canonical.Response, error)

// chain composes interceptors around base, in the order given.
func chain(interceptors []Interceptor, base Handler) Handler {
	h := base

	for i := len(interceptors) - 1; i >= 0; i-- {
		interceptor := interceptors[i]
		next := h

		h = func(ctx context.Context, req *canonical.Request) (*canonical.Response, error) {
			return interceptor(ctx, req, next)
		}
	}

	return h
}
