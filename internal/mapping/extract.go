package mapping

import (
	"github.com/arrowhead-dev/llmbridge/internal/canonical"
	"github.com/arrowhead-dev/llmbridge/internal/manifest"
)

// extractCanonicalValue resolves the raw value a mapping rule targets,
// special-casing the fields spec.md §4.4 calls out by name (model,
// messages, stream, functions, function_call, the sampling fields) and
// falling back to the request's extension map for anything else.
func extractCanonicalValue(req *canonical.Request, name string, provider *manifest.Provider) (any, bool) {
	switch name {
	case "model":
		if req.Model == "" {
			return nil, false
		}

		return req.Model, true
	case "messages":
		return renderMessages(req.Messages, provider), true
	case "stream":
		return req.Stream, true
	case "functions", "tools":
		if len(req.Tools) == 0 {
			return nil, false
		}

		return renderTools(req.Tools, provider.PayloadFormat), true
	case "function_call", "tool_choice":
		if req.ToolChoice == nil {
			return nil, false
		}

		return renderToolChoice(*req.ToolChoice, provider.PayloadFormat), true
	case "temperature":
		return float64Ptr(req.Sampling.Temperature)
	case "top_p":
		return float64Ptr(req.Sampling.TopP)
	case "top_k":
		return intPtr(req.Sampling.TopK)
	case "max_tokens":
		return intPtr(req.Sampling.MaxTokens)
	case "stop_sequences", "stop":
		if len(req.Sampling.StopSequences) == 0 {
			return nil, false
		}

		return req.Sampling.StopSequences, true
	case "seed":
		return int64Ptr(req.Sampling.Seed)
	case "logit_bias":
		if len(req.Sampling.LogitBias) == 0 {
			return nil, false
		}

		return req.Sampling.LogitBias, true
	case "presence_penalty":
		return float64Ptr(req.Sampling.PresencePenalty)
	case "frequency_penalty":
		return float64Ptr(req.Sampling.FrequencyPenalty)
	default:
		if req.Extensions == nil {
			return nil, false
		}

		v, ok := req.Extensions[name]

		return v, ok
	}
}

func float64Ptr(p *float64) (any, bool) {
	if p == nil {
		return nil, false
	}

	return *p, true
}

func intPtr(p *int) (any, bool) {
	if p == nil {
		return nil, false
	}

	return *p, true
}

func int64Ptr(p *int64) (any, bool) {
	if p == nil {
		return nil, false
	}

	return *p, true
}
