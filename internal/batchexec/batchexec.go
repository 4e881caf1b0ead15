// Package batchexec implements C12: running many chat requests against
// a provider, preserving input order, with an optional concurrency cap.
package batchexec

import (
	"context"
	"sync"

	"github.com/arrowhead-dev/llmbridge/internal/canonical"
	"github.com/arrowhead-dev/llmbridge/internal/llmprovider"
)

// sequentialThreshold is the smart variant's cutover point (spec.md
// §4.12: "runs sequentially for n <= 3 and concurrently otherwise").
const sequentialThreshold = 3

// Result holds one request's response or error. Run and RunSmart return
// results in input order, so results[i] belongs to requests[i].
type Result struct {
	Response *canonical.Response
	Err      error
}

// Run executes requests against api, preserving input order in the
// returned slice (spec.md §4.12). concurrencyLimit <= 0 means
// unbounded. Each request's outcome is independent — one failure never
// aborts the batch.
func Run(ctx context.Context, api llmprovider.Provider, requests []*canonical.Request, concurrencyLimit int) []Result {
	results := make([]Result, len(requests))

	if len(requests) == 0 {
		return results
	}

	var sem chan struct{}
	if concurrencyLimit > 0 {
		sem = make(chan struct{}, concurrencyLimit)
	}

	var wg sync.WaitGroup

	for i, req := range requests {
		wg.Add(1)

		go func(i int, req *canonical.Request) {
			defer wg.Done()

			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			resp, err := api.Chat(ctx, req)
			results[i] = Result{Response: resp, Err: err}
		}(i, req)
	}

	wg.Wait()

	return results
}

// RunSmart runs requests sequentially when there are few enough that
// spawning tasks would cost more than it saves, and concurrently
// (via Run) otherwise (spec.md §4.12's "smart variant").
func RunSmart(ctx context.Context, api llmprovider.Provider, requests []*canonical.Request, concurrencyLimit int) []Result {
	if len(requests) <= sequentialThreshold {
		results := make([]Result, len(requests))

		for i, req := range requests {
			resp, err := api.Chat(ctx, req)
			results[i] = Result{Response: resp, Err: err}
		}

		return results
	}

	return Run(ctx, api, requests, concurrencyLimit)
}
