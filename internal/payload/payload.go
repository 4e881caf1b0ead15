// Package payload implements C5: normalising the mapping engine's
// generic output document into one of the small set of provider wire
// shapes, then checking the shape's required fields.
package payload

import (
	"fmt"

	"github.com/arrowhead-dev/llmbridge/internal/llmerr"
	"github.com/arrowhead-dev/llmbridge/internal/manifest"
)

// Normalize post-processes payload (as produced by mapping.Build) into
// the shape named by format, per spec.md §4.5.
func Normalize(payload map[string]any, format manifest.PayloadFormat) (map[string]any, error) {
	switch format {
	case manifest.PayloadOpenAIStyle:
		return normalizeOpenAI(payload)
	case manifest.PayloadAnthropicStyle:
		return normalizeAnthropic(payload)
	case manifest.PayloadGeminiStyle:
		return normalizeGemini(payload)
	case manifest.PayloadCohereNative:
		return normalizeCohere(payload)
	default:
		return payload, nil
	}
}

func requireField(payload map[string]any, field string) error {
	if _, ok := payload[field]; !ok {
		return llmerr.New(llmerr.KindConfiguration, fmt.Sprintf("required field %q is missing from the payload", field))
	}

	return nil
}

func messagesOf(payload map[string]any) []map[string]any {
	raw, _ := payload["messages"].([]map[string]any)
	return raw
}

func normalizeOpenAI(payload map[string]any) (map[string]any, error) {
	if err := requireField(payload, "model"); err != nil {
		return nil, err
	}

	if err := requireField(payload, "messages"); err != nil {
		return nil, err
	}

	if stream, _ := payload["stream"].(bool); stream {
		payload["stream_options"] = map[string]any{"include_usage": true}
	}

	return payload, nil
}

func normalizeAnthropic(payload map[string]any) (map[string]any, error) {
	messages := messagesOf(payload)

	var (
		systemParts []string
		rest        []map[string]any
	)

	for _, msg := range messages {
		if msg["role"] == "system" {
			if text, ok := msg["content"].(string); ok {
				systemParts = append(systemParts, text)
			}

			continue
		}

		rest = append(rest, msg)
	}

	payload["messages"] = rest

	if len(systemParts) > 0 {
		system := systemParts[0]
		for _, part := range systemParts[1:] {
			system += "\n" + part
		}

		payload["system"] = system
	}

	if temp, ok := payload["temperature"].(float64); ok {
		payload["temperature"] = clamp(temp, 0.0, 1.0)
	}

	payload["anthropic_version"] = "bedrock-2023-05-31"

	if err := requireField(payload, "messages"); err != nil {
		return nil, err
	}

	if err := requireField(payload, "max_tokens"); err != nil {
		return nil, err
	}

	return payload, nil
}

func normalizeGemini(payload map[string]any) (map[string]any, error) {
	generationConfig := map[string]any{}

	if temp, ok := payload["temperature"]; ok {
		generationConfig["temperature"] = temp
		delete(payload, "temperature")
	}

	if maxTokens, ok := payload["max_tokens"]; ok {
		generationConfig["maxOutputTokens"] = maxTokens
		delete(payload, "max_tokens")
	}

	if topP, ok := payload["top_p"]; ok {
		generationConfig["topP"] = topP
		delete(payload, "top_p")
	}

	if len(generationConfig) > 0 {
		payload["generationConfig"] = generationConfig
	}

	messages := messagesOf(payload)
	contents := make([]map[string]any, 0, len(messages))

	for _, msg := range messages {
		role, _ := msg["role"].(string)
		if role == "assistant" {
			role = "model"
		}

		contents = append(contents, map[string]any{
			"role":  role,
			"parts": []map[string]any{{"text": contentText(msg["content"])}},
		})
	}

	delete(payload, "messages")
	payload["contents"] = contents

	if err := requireField(payload, "contents"); err != nil {
		return nil, err
	}

	return payload, nil
}

func normalizeCohere(payload map[string]any) (map[string]any, error) {
	messages := messagesOf(payload)

	if len(messages) == 1 {
		payload["message"] = contentText(messages[0]["content"])
		delete(payload, "messages")
	} else {
		rendered := make([]map[string]any, 0, len(messages))

		for _, msg := range messages {
			rendered = append(rendered, map[string]any{
				"role":    msg["role"],
				"message": contentText(msg["content"]),
			})
		}

		payload["messages"] = rendered
	}

	if err := requireField(payload, "model"); err != nil {
		return nil, err
	}

	return payload, nil
}

func contentText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", v)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
