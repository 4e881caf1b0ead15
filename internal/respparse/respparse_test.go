package respparse

import (
	"testing"

	"github.com/arrowhead-dev/llmbridge/internal/canonical"
	"github.com/arrowhead-dev/llmbridge/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAIProvider() *manifest.Provider {
	return &manifest.Provider{
		Name: "openai",
		ResponsePaths: map[string]string{
			"content":       "choices[0].message.content",
			"finish_reason": "choices[0].finish_reason",
			"usage":         "usage",
			"tool_calls":    "choices[0].message.tool_calls",
		},
	}
}

// TestParseOpenAINonStream covers spec.md's scenario 1: a minimal
// non-streaming OpenAI-shaped body maps to one canonical choice plus
// finalized usage.
func TestParseOpenAINonStream(t *testing.T) {
	body := map[string]any{
		"id": "a",
		"choices": []any{
			map[string]any{
				"message":       map[string]any{"role": "assistant", "content": "hi"},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     float64(3),
			"completion_tokens": float64(1),
			"total_tokens":      float64(4),
		},
	}

	resp := Parse(body, openAIProvider())

	assert.Equal(t, "a", resp.ID)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, canonical.RoleAssistant, resp.Choices[0].Message.Role)
	assert.Equal(t, "hi", resp.Choices[0].Message.Content.Text)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)

	assert.Equal(t, 3, resp.Usage.PromptTokens)
	assert.Equal(t, 1, resp.Usage.CompletionTokens)
	assert.Equal(t, 4, resp.Usage.TotalTokens)
	assert.Equal(t, canonical.UsageFinalized, resp.Usage.Status)
}

func TestParseGeneratesSyntheticIDAndTimestampWhenAbsent(t *testing.T) {
	body := map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": "hi"}},
		},
	}

	resp := Parse(body, openAIProvider())

	assert.NotEmpty(t, resp.ID)
	assert.Contains(t, resp.ID, "resp_")
	assert.Greater(t, resp.Created, int64(0))
}

func TestParseToolCallsParsesJSONStringArguments(t *testing.T) {
	body := map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{
					"content": "",
					"tool_calls": []any{
						map[string]any{
							"id": "call_1",
							"function": map[string]any{
								"name":      "get_weather",
								"arguments": `{"city":"Paris"}`,
							},
						},
					},
				},
			},
		},
	}

	resp := Parse(body, openAIProvider())

	require.Len(t, resp.Choices[0].ToolCalls, 1)
	call := resp.Choices[0].ToolCalls[0]
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, "get_weather", call.Name)
	assert.Equal(t, "Paris", call.Arguments["city"])
	assert.Empty(t, call.RawArguments)
}

func TestParseToolCallsKeepsMalformedArgumentsAsRawString(t *testing.T) {
	body := map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{
					"content": "",
					"tool_calls": []any{
						map[string]any{
							"id": "call_2",
							"function": map[string]any{
								"name":      "get_weather",
								"arguments": `{not valid json`,
							},
						},
					},
				},
			},
		},
	}

	resp := Parse(body, openAIProvider())

	call := resp.Choices[0].ToolCalls[0]
	assert.Nil(t, call.Arguments)
	assert.Equal(t, "{not valid json", call.RawArguments)
}

func TestParseMissingUsageIsEstimated(t *testing.T) {
	provider := openAIProvider()
	provider.ResponsePaths = map[string]string{"content": "choices[0].message.content"}

	body := map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": "hi"}}},
	}

	resp := Parse(body, provider)
	assert.Equal(t, canonical.UsageEstimated, resp.Usage.Status)
}
