package mapping

import (
	"github.com/arrowhead-dev/llmbridge/internal/canonical"
	"github.com/arrowhead-dev/llmbridge/internal/manifest"
)

// PendingUploadKey is the sentinel field name C4 writes for an
// image/audio message content block that has a local file but no URL
// yet. C8's upload policy resolves it (multipart upload or inline
// base64, per the provider's UploadThresholdBytes) before dispatch.
const PendingUploadKey = "_pending_upload"

// PendingUpload describes a local file awaiting upload resolution.
type PendingUpload struct {
	Kind      string // "image" or "audio"
	LocalName string
	MIME      string
}

// renderMessages maps each canonical message to a generic
// {role, content, ...} document, per spec.md §4.4. The payload builder
// (C5) reshapes this further into the provider's exact wire shape.
func renderMessages(messages []canonical.Message, provider *manifest.Provider) []map[string]any {
	out := make([]map[string]any, 0, len(messages))

	for _, msg := range messages {
		out = append(out, renderMessage(msg, provider))
	}

	return out
}

func renderMessage(msg canonical.Message, provider *manifest.Provider) map[string]any {
	rendered := map[string]any{
		"role":    mapRole(msg.Role, provider.RoleMapping),
		"content": renderContent(msg.Content),
	}

	if msg.FunctionCall != nil {
		rendered["function_call"] = map[string]any{
			"name":      msg.FunctionCall.Name,
			"arguments": msg.FunctionCall.Arguments,
		}
	}

	if msg.ToolResult != nil {
		rendered["tool_call_id"] = msg.ToolResult.ToolCallID
		rendered["content"] = msg.ToolResult.Content
	}

	return rendered
}

func mapRole(role canonical.Role, roleMapping map[string]string) string {
	name := role.String()

	if roleMapping == nil {
		return name
	}

	if mapped, ok := roleMapping[name]; ok {
		return mapped
	}

	return name
}

func renderContent(c canonical.Content) any {
	switch c.Kind {
	case canonical.ContentText:
		return c.Text
	case canonical.ContentJSON:
		return c.JSON
	case canonical.ContentImage:
		return renderMediaContent("image", c)
	case canonical.ContentAudio:
		return renderMediaContent("audio", c)
	default:
		return c.Text
	}
}

func renderMediaContent(kind string, c canonical.Content) any {
	if c.URL == "" && c.LocalName != "" {
		return map[string]any{
			PendingUploadKey: PendingUpload{Kind: kind, LocalName: c.LocalName, MIME: c.MIME},
		}
	}

	return map[string]any{
		kind: map[string]any{"url": c.URL},
	}
}
