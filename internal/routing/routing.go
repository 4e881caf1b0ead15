// Package routing implements C13: RoundRobin and Failover, two
// composable llmprovider.Provider strategies that fan a single
// chat/stream call out over several children.
package routing

import (
	"context"
	"sync/atomic"

	"github.com/arrowhead-dev/llmbridge/internal/canonical"
	"github.com/arrowhead-dev/llmbridge/internal/llmerr"
	"github.com/arrowhead-dev/llmbridge/internal/llmprovider"
)

// RoundRobin selects the next child by an atomic fetch-and-add counter
// modulo the child count, per spec.md §4.13.
type RoundRobin struct {
	children []llmprovider.Provider
	counter  uint64
}

// NewRoundRobin requires at least one child (spec.md §4.13); a missing
// child is a Configuration error, not a panic, matching this library's
// never-panic rule (P1).
func NewRoundRobin(children []llmprovider.Provider) (*RoundRobin, error) {
	if len(children) == 0 {
		return nil, llmerr.New(llmerr.KindConfiguration, "round robin router requires at least one child")
	}

	return &RoundRobin{children: children}, nil
}

func (r *RoundRobin) next() llmprovider.Provider {
	idx := atomic.AddUint64(&r.counter, 1) - 1
	return r.children[idx%uint64(len(r.children))]
}

func (r *RoundRobin) Chat(ctx context.Context, req *canonical.Request) (*canonical.Response, error) {
	return r.next().Chat(ctx, req)
}

func (r *RoundRobin) Stream(ctx context.Context, req *canonical.Request) (llmprovider.EventStream, error) {
	return r.next().Stream(ctx, req)
}

func (r *RoundRobin) ListModels() []string {
	return mergedModels(r.children)
}

// Failover calls its children in order, advancing on error; only the
// last child's error is surfaced if every child fails (spec.md §4.13).
type Failover struct {
	children []llmprovider.Provider
}

func NewFailover(children []llmprovider.Provider) (*Failover, error) {
	if len(children) == 0 {
		return nil, llmerr.New(llmerr.KindConfiguration, "failover router requires at least one child")
	}

	return &Failover{children: children}, nil
}

func (f *Failover) Chat(ctx context.Context, req *canonical.Request) (*canonical.Response, error) {
	var lastErr error

	for _, child := range f.children {
		resp, err := child.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err
	}

	return nil, lastErr
}

// Stream mirrors Chat's failover semantics: the first child whose
// Stream call succeeds is returned, per spec.md §4.13 ("first success's
// stream is returned").
func (f *Failover) Stream(ctx context.Context, req *canonical.Request) (llmprovider.EventStream, error) {
	var lastErr error

	for _, child := range f.children {
		stream, err := child.Stream(ctx, req)
		if err == nil {
			return stream, nil
		}

		lastErr = err
	}

	return nil, lastErr
}

func (f *Failover) ListModels() []string {
	return mergedModels(f.children)
}

func mergedModels(children []llmprovider.Provider) []string {
	seen := make(map[string]bool)

	var ids []string

	for _, child := range children {
		for _, id := range child.ListModels() {
			if seen[id] {
				continue
			}

			seen[id] = true
			ids = append(ids, id)
		}
	}

	return ids
}
