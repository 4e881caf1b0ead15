package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/arrowhead-dev/llmbridge/internal/canonical"
	"github.com/arrowhead-dev/llmbridge/internal/llmerr"
	"github.com/arrowhead-dev/llmbridge/internal/llmprovider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name    string
	chatErr error
	models  []string
}

func (f *fakeProvider) Chat(ctx context.Context, req *canonical.Request) (*canonical.Response, error) {
	if f.chatErr != nil {
		return nil, f.chatErr
	}

	return &canonical.Response{ID: f.name}, nil
}

func (f *fakeProvider) Stream(ctx context.Context, req *canonical.Request) (llmprovider.EventStream, error) {
	if f.chatErr != nil {
		return nil, f.chatErr
	}

	return nil, nil
}

func (f *fakeProvider) ListModels() []string { return f.models }

func TestRoundRobinCyclesThroughChildrenInOrder(t *testing.T) {
	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b"}

	rr, err := NewRoundRobin([]llmprovider.Provider{a, b})
	require.NoError(t, err)

	var got []string

	for i := 0; i < 4; i++ {
		resp, err := rr.Chat(context.Background(), &canonical.Request{})
		require.NoError(t, err)
		got = append(got, resp.ID)
	}

	assert.Equal(t, []string{"a", "b", "a", "b"}, got)
}

func TestRoundRobinRequiresAtLeastOneChild(t *testing.T) {
	_, err := NewRoundRobin(nil)
	require.Error(t, err)
	assert.Equal(t, llmerr.KindConfiguration, llmerr.KindOf(err))
}

func TestFailoverAdvancesOnErrorAndReturnsFirstSuccess(t *testing.T) {
	failing := &fakeProvider{name: "failing", chatErr: errors.New("down")}
	healthy := &fakeProvider{name: "healthy"}

	fo, err := NewFailover([]llmprovider.Provider{failing, healthy})
	require.NoError(t, err)

	resp, err := fo.Chat(context.Background(), &canonical.Request{})
	require.NoError(t, err)
	assert.Equal(t, "healthy", resp.ID)
}

func TestFailoverSurfacesLastChildsErrorWhenAllFail(t *testing.T) {
	errA := errors.New("a down")
	errB := errors.New("b down")

	fo, err := NewFailover([]llmprovider.Provider{
		&fakeProvider{name: "a", chatErr: errA},
		&fakeProvider{name: "b", chatErr: errB},
	})
	require.NoError(t, err)

	_, err = fo.Chat(context.Background(), &canonical.Request{})
	assert.ErrorIs(t, err, errB)
}

func TestListModelsMergesAndDedupesChildModels(t *testing.T) {
	rr, err := NewRoundRobin([]llmprovider.Provider{
		&fakeProvider{models: []string{"gpt-x", "gpt-y"}},
		&fakeProvider{models: []string{"gpt-y", "gpt-z"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"gpt-x", "gpt-y", "gpt-z"}, rr.ListModels())
}
