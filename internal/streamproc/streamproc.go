// Package streamproc implements C7: the per-frame state machine that
// turns a provider's streaming JSON frames into canonical StreamingEvents,
// per spec.md §4.7.
package streamproc

import (
	"github.com/arrowhead-dev/llmbridge/internal/canonical"
	"github.com/arrowhead-dev/llmbridge/internal/manifest"
	"github.com/arrowhead-dev/llmbridge/internal/matchexpr"
	"github.com/arrowhead-dev/llmbridge/internal/pathutil"
	"github.com/google/uuid"
)

// generateUUIDSentinel is the literal event_map field value that
// triggers synthetic tool-call ID generation (spec.md §4.7 step 3).
const generateUUIDSentinel = "_generate_uuid"

// Processor is the stream processor for a single provider/model
// binding. It owns its StreamingConfig, a rolling accumulator buffer,
// and compiled matchexpr programs for its configured predicates — no
// other mutable state.
type Processor struct {
	cfg manifest.StreamingConfig

	frameSelector *matchexpr.Expr
	stopCondition *matchexpr.Expr
	flushOn       *matchexpr.Expr
	eventMap      []compiledRule

	buffer string
}

type compiledRule struct {
	match manifest.EventMapRule
	expr  *matchexpr.Expr
}

// New compiles cfg's predicates once, up front, so per-frame processing
// never re-parses a matchexpr string.
func New(cfg manifest.StreamingConfig) *Processor {
	p := &Processor{cfg: cfg}

	if cfg.FrameSelector != "" {
		p.frameSelector = matchexpr.Parse(cfg.FrameSelector)
	}

	if cfg.StopCondition != "" {
		p.stopCondition = matchexpr.Parse(cfg.StopCondition)
	}

	if cfg.Accumulator != nil && cfg.Accumulator.FlushOn != "" {
		p.flushOn = matchexpr.Parse(cfg.Accumulator.FlushOn)
	}

	p.eventMap = make([]compiledRule, 0, len(cfg.EventMap))
	for _, rule := range cfg.EventMap {
		p.eventMap = append(p.eventMap, compiledRule{match: rule, expr: matchexpr.Parse(rule.Match)})
	}

	return p
}

// Process runs root through the pipeline of spec.md §4.7 and returns at
// most one event per frame, short-circuiting across steps in order:
// frame_selector, accumulator (side effect only), event_map, stop_condition,
// flush_on, extra_metadata_path. A frame that already produced an event_map
// event never also contributes a stop_condition/flush_on/metadata event —
// matching the ground-truth StreamProcessor::process, which returns
// Option<StreamingEvent> and returns eagerly the moment any step produces
// one (original_source/src/streaming/pipeline.rs).
func (p *Processor) Process(root any) (canonical.StreamingEvent, bool) {
	if p.frameSelector != nil && !p.frameSelector.Eval(root) {
		return canonical.StreamingEvent{}, false
	}

	candidateIndex := p.resolveCandidateIndex(root)

	if p.cfg.Accumulator != nil {
		if frag, ok := pathutil.GetString(root, p.cfg.Accumulator.KeyPath); ok {
			p.buffer += frag
		}
	}

	for _, rule := range p.eventMap {
		if !rule.expr.Eval(root) {
			continue
		}

		if ev, ok := p.synthesize(rule.match, root); ok {
			applyCandidateIndex(&ev, candidateIndex)
			return ev, true
		}
	}

	if p.stopCondition != nil && p.stopCondition.Eval(root) {
		ev := canonical.StreamEnd()
		applyCandidateIndex(&ev, candidateIndex)
		return ev, true
	}

	if p.flushOn != nil && p.flushOn.Eval(root) && p.buffer != "" {
		ev := canonical.StreamingEvent{Kind: canonical.EventPartialToolCall, ArgumentsDelta: p.buffer}
		applyCandidateIndex(&ev, candidateIndex)
		p.buffer = ""

		return ev, true
	}

	if p.cfg.ExtraMetadataPath != "" {
		if data, ok := pathutil.Get(root, p.cfg.ExtraMetadataPath); ok {
			ev := canonical.StreamingEvent{Kind: canonical.EventMetadata, Data: data}
			applyCandidateIndex(&ev, candidateIndex)

			return ev, true
		}
	}

	return canonical.StreamingEvent{}, false
}

func applyCandidateIndex(ev *canonical.StreamingEvent, idx *int) {
	if idx != nil {
		ev.CandidateIndex = idx
	}
}

func (p *Processor) resolveCandidateIndex(root any) *int {
	if p.cfg.Candidate == nil || p.cfg.Candidate.CandidateIDPath == "" {
		return nil
	}

	v, ok := pathutil.Get(root, p.cfg.Candidate.CandidateIDPath)
	if !ok {
		return nil
	}

	switch n := v.(type) {
	case float64:
		idx := int(n)
		return &idx
	case int:
		return &n
	default:
		return nil
	}
}

// synthesize builds the StreamingEvent named by rule.Emit, reading its
// field paths out of root via rule.Fields.
func (p *Processor) synthesize(rule manifest.EventMapRule, root any) (canonical.StreamingEvent, bool) {
	switch rule.Emit {
	case manifest.EmitPartialContentDelta:
		return p.emitPartialContentDelta(rule, root)
	case manifest.EmitPartialToolCall:
		return p.emitPartialToolCall(rule, root)
	case manifest.EmitToolCallStarted:
		return p.emitToolCallEvent(rule, root, canonical.EventToolCallStarted)
	case manifest.EmitToolCallEnded:
		return p.emitToolCallEvent(rule, root, canonical.EventToolCallEnded)
	case manifest.EmitThinkingDelta:
		return p.emitThinkingDelta(rule, root)
	case manifest.EmitMetadata:
		return p.emitMetadata(rule, root)
	case manifest.EmitFinish:
		return p.emitFinish(rule, root)
	case manifest.EmitStreamEnd:
		return canonical.StreamEnd(), true
	default:
		return canonical.StreamingEvent{}, false
	}
}

func (p *Processor) emitPartialContentDelta(rule manifest.EventMapRule, root any) (canonical.StreamingEvent, bool) {
	content, ok := pathutil.GetString(root, rule.Fields["content"])
	if !ok {
		return canonical.StreamingEvent{}, false
	}

	ev := canonical.StreamingEvent{Kind: canonical.EventPartialContentDelta, Delta: content}

	if fr, ok := pathutil.GetString(root, rule.Fields["finish_reason"]); ok {
		ev.FinishReason = fr
	}

	if idxPath, ok := rule.Fields["choice_index"]; ok {
		if v, ok := pathutil.Get(root, idxPath); ok {
			if n, ok := v.(float64); ok {
				ev.ChoiceIndex = int(n)
			}
		}
	}

	return ev, true
}

func (p *Processor) emitPartialToolCall(rule manifest.EventMapRule, root any) (canonical.StreamingEvent, bool) {
	ev := canonical.StreamingEvent{Kind: canonical.EventPartialToolCall}

	found := false

	for _, key := range []string{"arguments", "args", "partial_json"} {
		path, ok := rule.Fields[key]
		if !ok {
			continue
		}

		if s, ok := pathutil.GetString(root, path); ok {
			ev.ArgumentsDelta = s
			found = true

			break
		}
	}

	if !found {
		ev.ArgumentsDelta = p.buffer
		p.buffer = ""
	}

	if idPath, ok := rule.Fields["tool_call_id"]; ok {
		if idPath == generateUUIDSentinel {
			ev.ToolCallID = uuid.NewString()
		} else if id, ok := pathutil.GetString(root, idPath); ok {
			ev.ToolCallID = id
		}
	}

	if namePath, ok := rule.Fields["function_name"]; ok {
		if name, ok := pathutil.GetString(root, namePath); ok {
			ev.FunctionNameDelta = name
		}
	}

	return ev, true
}

func (p *Processor) emitToolCallEvent(rule manifest.EventMapRule, root any, kind canonical.EventKind) (canonical.StreamingEvent, bool) {
	ev := canonical.StreamingEvent{Kind: kind}

	if idPath, ok := rule.Fields["tool_call_id"]; ok {
		if id, ok := pathutil.GetString(root, idPath); ok {
			ev.ToolCallID = id
		}
	}

	if namePath, ok := rule.Fields["tool_name"]; ok {
		if name, ok := pathutil.GetString(root, namePath); ok {
			ev.ToolName = name
		}
	}

	if resultPath, ok := rule.Fields["result"]; ok {
		if result, ok := pathutil.GetString(root, resultPath); ok {
			ev.Result = result
		}
	}

	return ev, true
}

func (p *Processor) emitThinkingDelta(rule manifest.EventMapRule, root any) (canonical.StreamingEvent, bool) {
	thinking, ok := pathutil.GetString(root, rule.Fields["thinking"])
	if !ok {
		return canonical.StreamingEvent{}, false
	}

	return canonical.ThinkingDelta(thinking), true
}

func (p *Processor) emitMetadata(rule manifest.EventMapRule, root any) (canonical.StreamingEvent, bool) {
	data, ok := pathutil.Get(root, rule.Fields["data"])
	if !ok {
		return canonical.StreamingEvent{}, false
	}

	return canonical.StreamingEvent{Kind: canonical.EventMetadata, Data: data}, true
}

func (p *Processor) emitFinish(rule manifest.EventMapRule, root any) (canonical.StreamingEvent, bool) {
	ev := canonical.StreamingEvent{Kind: canonical.EventFinalCandidate}

	if fr, ok := pathutil.GetString(root, rule.Fields["finish_reason"]); ok {
		ev.FinishReason = fr
	}

	if usagePath, ok := rule.Fields["usage"]; ok {
		if raw, ok := pathutil.Get(root, usagePath); ok {
			if m, ok := raw.(map[string]any); ok {
				ev.Usage = &canonical.Usage{
					PromptTokens:     intField(m, "prompt_tokens"),
					CompletionTokens: intField(m, "completion_tokens"),
					TotalTokens:      intField(m, "total_tokens"),
					Status:           canonical.UsageFinalized,
				}
			}
		}
	}

	return ev, true
}

func intField(m map[string]any, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}

	if n, ok := v.(float64); ok {
		return int(n)
	}

	return 0
}
