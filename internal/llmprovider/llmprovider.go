// Package llmprovider defines the shared Chat/Stream/ListModels contract
// that internal/adapter.Adapter and internal/routing's composable
// strategies both satisfy, so internal/batchexec and internal/client can
// depend on the interface rather than the concrete adapter — a
// generalization of the teacher's providers.Provider interface
// (internal/providers/registry.go) onto this library's canonical
// request/response/event types.
package llmprovider

import (
	"context"

	"github.com/arrowhead-dev/llmbridge/internal/canonical"
)

// EventStream is the minimal pull-based streaming contract Stream
// callers need; *adapter.EventStream satisfies it.
type EventStream interface {
	Next() (canonical.StreamingEvent, bool)
	Err() error
	Close() error
}

// Provider is one chat-capable backend: a single adapter, or a routing
// strategy composing several.
type Provider interface {
	Chat(ctx context.Context, req *canonical.Request) (*canonical.Response, error)
	Stream(ctx context.Context, req *canonical.Request) (EventStream, error)
	ListModels() []string
}
