package canonical

import (
	"testing"

	"github.com/arrowhead-dev/llmbridge/internal/llmerr"
	"github.com/stretchr/testify/assert"
)

func TestModelIsDefaultSentinel(t *testing.T) {
	assert.True(t, ModelIsDefaultSentinel(""))
	assert.True(t, ModelIsDefaultSentinel("auto"))
	assert.True(t, ModelIsDefaultSentinel("default"))
	assert.True(t, ModelIsDefaultSentinel("provider_default"))
	assert.False(t, ModelIsDefaultSentinel("gpt-4o"))
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleSystem, ParseRole("system"))
	assert.Equal(t, RoleAssistant, ParseRole("assistant"))
	assert.Equal(t, RoleAssistant, ParseRole("model"))
	assert.Equal(t, RoleTool, ParseRole("tool"))
	assert.Equal(t, RoleUser, ParseRole("unrecognised"))
}

func TestStreamingEventIsTerminal(t *testing.T) {
	assert.True(t, StreamEnd().IsTerminal())
	assert.True(t, ErrorEvent(llmerr.KindNetwork, "boom", "").IsTerminal())
	assert.True(t, StreamingEvent{Kind: EventFinalCandidate}.IsTerminal())
	assert.False(t, PartialContentDelta("hi", 0).IsTerminal())
}

func TestUsageStatusString(t *testing.T) {
	assert.Equal(t, "finalized", UsageFinalized.String())
	assert.Equal(t, "estimated", UsageEstimated.String())
}
