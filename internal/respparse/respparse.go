// Package respparse implements C6: extracting a canonical Response from
// a provider's JSON response body via its configured response_paths.
package respparse

import (
	"encoding/json"
	"time"

	"github.com/arrowhead-dev/llmbridge/internal/canonical"
	"github.com/arrowhead-dev/llmbridge/internal/manifest"
	"github.com/arrowhead-dev/llmbridge/internal/pathutil"
	"github.com/google/uuid"
)

// Parse extracts a canonical Response from body using provider's
// response_paths (spec.md §4.6). It always returns exactly one choice.
func Parse(body any, provider *manifest.Provider) *canonical.Response {
	paths := provider.ResponsePaths

	id, hasID := pathutil.GetString(body, "id")
	if !hasID || id == "" {
		id = "resp_" + uuid.NewString()
	}

	model, _ := pathutil.GetString(body, "model")

	resp := &canonical.Response{
		ID:      id,
		Created: int64OrNow(body),
		Model:   model,
	}

	content, _ := lookupString(body, paths["content"])
	finishReason, _ := lookupString(body, paths["finish_reason"])

	choice := canonical.Choice{
		Index: 0,
		Message: canonical.Message{
			Role:    canonical.RoleAssistant,
			Content: canonical.Content{Kind: canonical.ContentText, Text: content},
		},
		FinishReason: finishReason,
	}

	if toolCallsPath, ok := paths["tool_calls"]; ok {
		choice.ToolCalls = parseToolCalls(body, toolCallsPath)
	}

	resp.Choices = []canonical.Choice{choice}
	resp.Usage = parseUsage(body, paths["usage"])

	return resp
}

func lookupString(root any, path string) (string, bool) {
	if path == "" {
		return "", false
	}

	return pathutil.GetString(root, path)
}

func lookup(root any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	return pathutil.Get(root, path)
}

func parseToolCalls(body any, path string) []canonical.ToolCall {
	raw, ok := lookup(body, path)
	if !ok {
		return nil
	}

	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	calls := make([]canonical.ToolCall, 0, len(items))

	for _, item := range items {
		id, _ := pathutil.GetString(item, "id")
		name, _ := pathutil.GetString(item, "function.name")

		call := canonical.ToolCall{ID: id, Name: name}

		argsRaw, hasArgs := pathutil.Get(item, "function.arguments")
		if hasArgs {
			switch a := argsRaw.(type) {
			case map[string]any:
				call.Arguments = a
			case string:
				var parsed map[string]any
				if err := json.Unmarshal([]byte(a), &parsed); err == nil {
					call.Arguments = parsed
				} else {
					call.RawArguments = a
				}
			}
		}

		calls = append(calls, call)
	}

	return calls
}

func parseUsage(body any, path string) canonical.Usage {
	raw, ok := lookup(body, path)
	if !ok {
		return canonical.Usage{Status: canonical.UsageEstimated}
	}

	m, ok := raw.(map[string]any)
	if !ok {
		return canonical.Usage{Status: canonical.UsageEstimated}
	}

	return canonical.Usage{
		PromptTokens:     intField(m, "prompt_tokens"),
		CompletionTokens: intField(m, "completion_tokens"),
		TotalTokens:      intField(m, "total_tokens"),
		Status:           canonical.UsageFinalized,
	}
}

func intField(m map[string]any, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}

	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func int64OrNow(body any) int64 {
	if created, ok := pathutil.Get(body, "created"); ok {
		if n, ok := created.(float64); ok {
			return int64(n)
		}
	}

	return time.Now().UTC().Unix()
}
