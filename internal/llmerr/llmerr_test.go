package llmerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	e := New(KindProvider, "boom")
	assert.Equal(t, "provider: boom", e.Error())

	wrapped := Wrap(KindNetwork, "dial failed", errors.New("connection refused"))
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestErrorIsByKind(t *testing.T) {
	a := New(KindCircuitOpen, "open now")
	assert.True(t, errors.Is(a, ErrCircuitOpen))
	assert.False(t, errors.Is(a, ErrRequestTooLarge))
}

func TestProviderError(t *testing.T) {
	e := Provider(500, `{"error":"boom"}`)
	assert.Equal(t, KindProvider, e.Kind)
	assert.Equal(t, 500, e.Status)
}

func TestAsAndKindOf(t *testing.T) {
	wrapped := fmtWrap(New(KindTimeout, "slow"))

	got, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindTimeout, got.Kind)
	assert.Equal(t, KindTimeout, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func fmtWrap(err error) error {
	return errors.Join(err)
}
