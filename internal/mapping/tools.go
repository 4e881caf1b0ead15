package mapping

import (
	"github.com/arrowhead-dev/llmbridge/internal/canonical"
	"github.com/arrowhead-dev/llmbridge/internal/manifest"
)

// renderTools shapes tool definitions per the provider's payload format.
// spec.md §4.4 leaves the exact per-format tool shape unstated (unlike
// messages, which it specifies); DESIGN.md records this as a resolved
// open question, following the same per-format branching C5 uses for
// message/sampling reshaping.
func renderTools(tools []canonical.ToolDefinition, format manifest.PayloadFormat) []map[string]any {
	out := make([]map[string]any, 0, len(tools))

	for _, t := range tools {
		switch format {
		case manifest.PayloadAnthropicStyle:
			out = append(out, map[string]any{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": t.Parameters,
			})
		case manifest.PayloadGeminiStyle:
			out = append(out, map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			})
		default: // openai_style, cohere_native, custom
			out = append(out, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Parameters,
				},
			})
		}
	}

	return out
}

// renderToolChoice shapes the tool-choice policy per the provider's
// payload format.
func renderToolChoice(tc canonical.ToolChoice, format manifest.PayloadFormat) any {
	switch format {
	case manifest.PayloadAnthropicStyle:
		switch tc.Mode {
		case canonical.ToolChoiceNone:
			return map[string]any{"type": "none"}
		case canonical.ToolChoiceNamed:
			return map[string]any{"type": "tool", "name": tc.Name}
		default:
			return map[string]any{"type": "auto"}
		}
	default: // openai_style, gemini_style, cohere_native, custom
		switch tc.Mode {
		case canonical.ToolChoiceNone:
			return "none"
		case canonical.ToolChoiceNamed:
			return map[string]any{"type": "function", "function": map[string]any{"name": tc.Name}}
		default:
			return "auto"
		}
	}
}
