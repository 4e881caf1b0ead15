// Package handlers implements the reference HTTP surface fronting
// internal/client.Client: an OpenAI-compatible chat-completions endpoint
// plus a health check, replacing the teacher's hand-rolled
// Anthropic<->provider body transforms with the manifest-driven engine.
package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/arrowhead-dev/llmbridge/internal/canonical"
)

// wireMessage is the OpenAI-style {role, content} shape accepted on the
// request body and produced on the response body.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireChatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Stream      bool          `json:"stream,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type wireChoice struct {
	Index        int         `json:"index"`
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type wireUsage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Status           string `json:"status,omitempty"`
}

type wireChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   wireUsage    `json:"usage"`
}

type wireStreamChunk struct {
	ID      string            `json:"id"`
	Object  string            `json:"object"`
	Model   string            `json:"model"`
	Choices []wireStreamDelta `json:"choices"`
}

type wireStreamDelta struct {
	Index        int         `json:"index"`
	Delta        wireMessage `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

func decodeChatRequest(body []byte) (*canonical.Request, error) {
	var wire wireChatRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode chat request: %w", err)
	}

	messages := make([]canonical.Message, 0, len(wire.Messages))
	for _, m := range wire.Messages {
		messages = append(messages, canonical.Message{
			Role:    canonical.ParseRole(m.Role),
			Content: canonical.Content{Kind: canonical.ContentText, Text: m.Content},
		})
	}

	return &canonical.Request{
		Model:    wire.Model,
		Messages: messages,
		Stream:   wire.Stream,
		Sampling: canonical.SamplingParams{
			Temperature:   wire.Temperature,
			TopP:          wire.TopP,
			MaxTokens:     wire.MaxTokens,
			StopSequences: wire.Stop,
		},
	}, nil
}

func encodeChatResponse(resp *canonical.Response) wireChatResponse {
	choices := make([]wireChoice, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		choices = append(choices, wireChoice{
			Index:        c.Index,
			Message:      wireMessage{Role: c.Message.Role.String(), Content: c.Message.Content.Text},
			FinishReason: c.FinishReason,
		})
	}

	return wireChatResponse{
		ID:      resp.ID,
		Object:  "chat.completion",
		Created: resp.Created,
		Model:   resp.Model,
		Choices: choices,
		Usage: wireUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
			Status:           resp.Usage.Status.String(),
		},
	}
}

// encodeStreamEvent translates one canonical.StreamingEvent into the
// OpenAI-style SSE chunk shape, or returns ok=false for events that carry
// no wire-visible delta (e.g. EventMetadata).
func encodeStreamEvent(modelID string, ev canonical.StreamingEvent) (wireStreamChunk, bool) {
	switch ev.Kind {
	case canonical.EventPartialContentDelta:
		return wireStreamChunk{
			Object: "chat.completion.chunk",
			Model:  modelID,
			Choices: []wireStreamDelta{{
				Index: ev.ChoiceIndex,
				Delta: wireMessage{Role: "assistant", Content: ev.Delta},
			}},
		}, true
	case canonical.EventFinalCandidate:
		reason := ""
		if len(ev.Choices) > 0 {
			reason = ev.Choices[0].FinishReason
		}
		return wireStreamChunk{
			Object:  "chat.completion.chunk",
			Model:   modelID,
			Choices: []wireStreamDelta{{FinishReason: &reason}},
		}, true
	default:
		return wireStreamChunk{}, false
	}
}
