// Package canonical defines the provider-independent request/response/
// event vocabulary at the library's upper boundary (spec.md §3). Every
// mapping, parsing, and streaming component reads or produces these
// types; its only internal dependency is internal/llmerr (the error kind
// carried by error events), keeping it safe to import from anywhere.
package canonical

// ToolChoiceMode is a closed enum: none, auto, or a named tool.
type ToolChoiceMode int

const (
	ToolChoiceAuto ToolChoiceMode = iota
	ToolChoiceNone
	ToolChoiceNamed
)

// ToolChoice is the request's tool-selection policy.
type ToolChoice struct {
	Mode ToolChoiceMode
	// Name is set only when Mode == ToolChoiceNamed.
	Name string
}

// ToolDefinition describes one callable tool/function available to the
// model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
}

// SamplingParams holds the optional generation-control knobs. Pointer
// fields distinguish "unset" from the zero value, since 0 is a valid
// temperature or seed.
type SamplingParams struct {
	Temperature       *float64
	TopP              *float64
	TopK              *int
	MaxTokens         *int
	StopSequences     []string
	Seed              *int64
	LogitBias         map[string]float64
	PresencePenalty   *float64
	FrequencyPenalty  *float64
}

// Request is the canonical chat request. Extensions carries
// provider-specific parameters that have no canonical equivalent; the
// mapping engine (C4) passes them through verbatim when a manifest rule
// names them.
type Request struct {
	Model          string
	Messages       []Message
	Sampling       SamplingParams
	Tools          []ToolDefinition
	ToolChoice     *ToolChoice
	Stream         bool
	Extensions     map[string]any
}

// ModelIsDefaultSentinel reports whether model names one of the façade's
// recognised "use the resolver's default" sentinels (spec.md §4.14).
func ModelIsDefaultSentinel(model string) bool {
	switch model {
	case "", "auto", "default", "provider_default":
		return true
	default:
		return false
	}
}
