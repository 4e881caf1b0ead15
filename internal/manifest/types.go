// Package manifest implements C15: the declarative provider/model
// configuration (spec.md §3) plus its loader and validator. Once loaded
// and validated, a *Manifest is shared immutably — no component here or
// downstream (C4–C8) ever mutates it.
package manifest

import (
	"net/url"
	"strings"
)

// AuthKind is the closed set of provider authentication variants.
type AuthKind int

const (
	AuthBearerEnvVar AuthKind = iota
	AuthAPIKeyHeader
	AuthQueryParam
	AuthOAuth2
	AuthPlatformCredentials
)

// AuthConfig describes how the adapter authenticates outbound requests.
type AuthConfig struct {
	Kind AuthKind

	// EnvVar names the environment variable holding the bearer token
	// (AuthBearerEnvVar) or API key (AuthAPIKeyHeader/AuthQueryParam).
	EnvVar string
	// Header is the HTTP header name for AuthAPIKeyHeader.
	Header string
	// QueryParam is the URL query parameter name for AuthQueryParam.
	QueryParam string
	// Extra holds provider-specific fields for AuthOAuth2 /
	// AuthPlatformCredentials (token URL, scope, credential path, ...).
	Extra map[string]string
}

// BaseURLConfig is the provider's base URL: either Static, or Template
// with variables substituted from ConnectionVars.
type BaseURLConfig struct {
	Static         string
	Template       string
	ConnectionVars map[string]string
}

// PayloadFormat is the closed set of target wire shapes the payload
// builder (C5) normalises into.
type PayloadFormat int

const (
	PayloadOpenAIStyle PayloadFormat = iota
	PayloadAnthropicStyle
	PayloadGeminiStyle
	PayloadCohereNative
	PayloadCustom
)

func (f PayloadFormat) String() string {
	switch f {
	case PayloadOpenAIStyle:
		return "openai_style"
	case PayloadAnthropicStyle:
		return "anthropic_style"
	case PayloadGeminiStyle:
		return "gemini_style"
	case PayloadCohereNative:
		return "cohere_native"
	default:
		return "custom"
	}
}

// ResponseFormat tags how a provider's response body should be walked.
// It shares PayloadFormat's vocabulary (spec.md §3) but is tracked
// separately since a provider may accept one wire shape and answer with
// another (e.g. a gateway that normalises requests but passes through
// the upstream's native response body).
type ResponseFormat = PayloadFormat

// RuleKind is the closed tag of MappingRule's variant.
type RuleKind int

const (
	RuleDirect RuleKind = iota
	RuleConditional
	RuleTransform
)

// TransformKind is the closed set of Transform mapping-rule operations.
type TransformKind int

const (
	TransformScale TransformKind = iota
	TransformFormat
	TransformEnumMap
	TransformTypeCast
)

// TransformSpec names a transform and its parameters. Params' keys are
// transform-specific: "factor" (Scale), "template" (Format), "mappings"
// (EnumMap, a string->string table), "target_type" (TypeCast, "string"
// or "number").
type TransformSpec struct {
	Kind   TransformKind
	Params map[string]any
}

// ConditionalClause is one arm of a Conditional mapping rule: the first
// clause whose Condition predicate is true wins.
type ConditionalClause struct {
	Condition  string
	TargetPath string
	Transform  *TransformSpec
}

// MappingRule is the tagged variant describing how one canonical
// request field becomes provider JSON (spec.md §3: Direct / Conditional
// / Transform).
type MappingRule struct {
	Kind RuleKind

	// TargetPath is used by RuleDirect and RuleTransform.
	TargetPath string

	// Conditions is used by RuleConditional.
	Conditions []ConditionalClause

	// Transform is used by RuleTransform.
	Transform TransformSpec
}

// AccumulatorConfig buffers fragmented streaming values (e.g. tool-call
// arguments split across frames) keyed by a JSON path, flushed when
// FlushOn evaluates true.
type AccumulatorConfig struct {
	KeyPath string
	FlushOn string
}

// CandidateConfig resolves a fan-out index for providers that return
// multiple parallel candidates in one frame.
type CandidateConfig struct {
	CandidateIDPath string
	FanOut          bool
}

// EmitKind is the closed set of StreamingEvent kinds an event_map rule
// may synthesise.
type EmitKind int

const (
	EmitPartialContentDelta EmitKind = iota
	EmitPartialToolCall
	EmitToolCallStarted
	EmitToolCallEnded
	EmitThinkingDelta
	EmitMetadata
	EmitFinish
	EmitStreamEnd
)

// EventMapRule is one ordered entry of a StreamingConfig's event_map:
// when Match evaluates true against a frame, Emit synthesises a
// StreamingEvent whose fields are read from Fields, a map from a
// semantic field name (e.g. "content", "finish_reason", "arguments",
// "tool_call_id") to a JSON path into the frame.
type EventMapRule struct {
	Match  string
	Emit   EmitKind
	Fields map[string]string
}

// StreamingConfig is a provider's streaming wire description (spec.md
// §4.3/§4.7): how frames are framed, filtered, accumulated, mapped to
// events, and terminated.
type StreamingConfig struct {
	EventFormat       string
	FrameSelector      string
	Accumulator        *AccumulatorConfig
	Candidate          *CandidateConfig
	EventMap           []EventMapRule
	StopCondition      string
	ExtraMetadataPath  string
	// ContentPath/ToolCallPath are the legacy single-path configuration
	// predating event_map (spec.md §9 open question: event_map wins when
	// both are present — see DESIGN.md).
	ContentPath  string
	ToolCallPath string
	// Delimiter overrides the SSE decoder's default blank-line framing.
	Delimiter string
	// Terminator overrides the SSE decoder's default "[DONE]" sentinel.
	Terminator string
}

// ProviderFeatures holds optional provider behaviour flags.
type ProviderFeatures struct {
	ErrorPaths            map[string]string
	MultiCandidatePolicy  string
	// UploadThresholdBytes gates C8's local-file upload policy: files at
	// or above this size are multipart-uploaded rather than inlined as
	// base64. Defaults to 1 MiB when unset (see DESIGN.md Open Question).
	UploadThresholdBytes int64
}

// Provider is one named provider definition.
type Provider struct {
	Name             string
	Auth             AuthConfig
	BaseURL          BaseURLConfig
	PayloadFormat    PayloadFormat
	ResponseFormat   ResponseFormat
	ParameterMapping map[string]MappingRule
	ResponsePaths    map[string]string
	RoleMapping      map[string]string
	Streaming        StreamingConfig
	Features         ProviderFeatures
	Capabilities     []string
}

// Pricing is optional per-model cost metadata; never consulted by the
// core components, carried only for callers that want it.
type Pricing struct {
	PromptPerMillion     float64
	CompletionPerMillion float64
}

// Model binds a provider-specific model id to a provider, with its own
// capability/context-window metadata and overrides.
type Model struct {
	Provider        string
	ProviderModelID string
	ContextWindow   int
	Capabilities    []string
	Pricing         *Pricing
	Overrides       map[string]any
}

// StandardSchema declares the canonical parameter set and capability
// vocabulary this manifest's providers may reference.
type StandardSchema struct {
	Parameters   []string
	Capabilities []string
}

// Manifest is the declarative configuration root (spec.md §3).
type Manifest struct {
	Version        string
	Metadata       map[string]any
	StandardSchema StandardSchema
	Providers      map[string]Provider
	Models         map[string]Model
}

// ModelsForProvider returns every model id bound to the provider named
// name, a plain equality lookup against Model.Provider. Use this for
// "what can the active provider serve" queries; use ResolveByDomain only
// when the caller actually has a host/URL, not a provider name.
func (m *Manifest) ModelsForProvider(name string) []string {
	var ids []string

	for id, model := range m.Models {
		if model.Provider == name {
			ids = append(ids, id)
		}
	}

	return ids
}

// ResolveByDomain returns every model id bound to a provider whose
// base_url host matches domain, the way the teacher's
// Registry.GetByDomain (internal/providers/registry.go) parses the
// provider's API base with url.Parse and compares Hostname() rather than
// the provider's own name. Providers with a templated base_url (unresolved
// ConnectionVars) have no concrete host to compare and are skipped.
func (m *Manifest) ResolveByDomain(domain string) []string {
	domain = strings.ToLower(domain)

	var providerNames []string

	for name, p := range m.Providers {
		if p.BaseURL.Static == "" {
			continue
		}

		u, err := url.Parse(p.BaseURL.Static)
		if err != nil {
			continue
		}

		if strings.ToLower(u.Hostname()) == domain {
			providerNames = append(providerNames, name)
		}
	}

	if len(providerNames) == 0 {
		return nil
	}

	var ids []string

	for id, model := range m.Models {
		for _, name := range providerNames {
			if model.Provider == name {
				ids = append(ids, id)
				break
			}
		}
	}

	return ids
}
