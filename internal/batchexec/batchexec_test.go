package batchexec

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arrowhead-dev/llmbridge/internal/canonical"
	"github.com/arrowhead-dev/llmbridge/internal/llmprovider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	inFlight  int64
	maxInFlight int64
	failModels map[string]bool
}

func (p *countingProvider) Chat(ctx context.Context, req *canonical.Request) (*canonical.Response, error) {
	cur := atomic.AddInt64(&p.inFlight, 1)
	defer atomic.AddInt64(&p.inFlight, -1)

	for {
		max := atomic.LoadInt64(&p.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt64(&p.maxInFlight, max, cur) {
			break
		}
	}

	time.Sleep(5 * time.Millisecond)

	if p.failModels[req.Model] {
		return nil, errors.New("simulated failure for " + req.Model)
	}

	return &canonical.Response{Model: req.Model}, nil
}

func (p *countingProvider) Stream(ctx context.Context, req *canonical.Request) (llmprovider.EventStream, error) {
	return nil, nil
}

func (p *countingProvider) ListModels() []string { return nil }

func requestsFor(n int) []*canonical.Request {
	reqs := make([]*canonical.Request, n)
	for i := range reqs {
		reqs[i] = &canonical.Request{Model: fmt.Sprintf("m%d", i)}
	}

	return reqs
}

func TestRunPreservesInputOrder(t *testing.T) {
	p := &countingProvider{}
	reqs := requestsFor(10)

	results := Run(context.Background(), p, reqs, 0)

	require.Len(t, results, 10)
	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, fmt.Sprintf("m%d", i), r.Response.Model)
	}
}

func TestRunRespectsConcurrencyLimit(t *testing.T) {
	p := &countingProvider{}
	reqs := requestsFor(20)

	Run(context.Background(), p, reqs, 3)

	assert.LessOrEqual(t, atomic.LoadInt64(&p.maxInFlight), int64(3))
}

func TestRunOneFailureDoesNotAbortTheBatch(t *testing.T) {
	p := &countingProvider{failModels: map[string]bool{"m1": true}}
	reqs := requestsFor(3)

	results := Run(context.Background(), p, reqs, 0)

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
}

func TestRunSmartRunsSequentiallyAtOrBelowThreshold(t *testing.T) {
	p := &countingProvider{}
	reqs := requestsFor(3)

	results := RunSmart(context.Background(), p, reqs, 0)

	require.Len(t, results, 3)
	assert.EqualValues(t, 1, atomic.LoadInt64(&p.maxInFlight))
}

func TestRunSmartRunsConcurrentlyAboveThreshold(t *testing.T) {
	p := &countingProvider{}
	reqs := requestsFor(10)

	results := RunSmart(context.Background(), p, reqs, 0)

	require.Len(t, results, 10)
	assert.Greater(t, atomic.LoadInt64(&p.maxInFlight), int64(1))
}

func TestRunEmptyRequestsReturnsEmptyResults(t *testing.T) {
	p := &countingProvider{}

	results := Run(context.Background(), p, nil, 0)
	assert.Empty(t, results)
}
