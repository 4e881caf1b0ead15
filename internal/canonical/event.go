package canonical

import "github.com/arrowhead-dev/llmbridge/internal/llmerr"

// EventKind is the closed tag of the StreamingEvent sum type (spec.md
// §3). Only the fields relevant to a given Kind are populated — the
// same "Type string + flat optional fields" shape the teacher uses for
// its ContentBlockState.
type EventKind int

const (
	EventPartialContentDelta EventKind = iota
	EventThinkingDelta
	EventPartialToolCall
	EventToolCallStarted
	EventToolCallEnded
	EventMetadata
	EventCitationChunk
	EventFinalCandidate
	EventError
	EventStreamEnd
)

func (k EventKind) String() string {
	switch k {
	case EventPartialContentDelta:
		return "partial_content_delta"
	case EventThinkingDelta:
		return "thinking_delta"
	case EventPartialToolCall:
		return "partial_tool_call"
	case EventToolCallStarted:
		return "tool_call_started"
	case EventToolCallEnded:
		return "tool_call_ended"
	case EventMetadata:
		return "metadata"
	case EventCitationChunk:
		return "citation_chunk"
	case EventFinalCandidate:
		return "final_candidate"
	case EventError:
		return "error"
	case EventStreamEnd:
		return "stream_end"
	default:
		return "unknown"
	}
}

// StreamingEvent is the unified event type emitted from the stream
// processor (C7) to callers.
type StreamingEvent struct {
	Kind EventKind

	// EventPartialContentDelta
	Delta          string
	ChoiceIndex    int
	FinishReason   string
	CandidateIndex *int

	// EventThinkingDelta
	Thinking  string
	Signature string

	// EventPartialToolCall
	ToolCallID        string
	FunctionNameDelta string
	ArgumentsDelta    string

	// EventToolCallStarted / EventToolCallEnded
	ToolName string
	Result   string

	// EventMetadata / EventCitationChunk
	Data any

	// EventFinalCandidate
	Choices []Choice
	Usage   *Usage
	Model   string

	// EventError
	Message string
	ErrKind llmerr.Kind
	Code    string
}

// IsTerminal reports whether Kind ends a stream (spec.md P9): exactly
// one of StreamEnd, FinalCandidate, or Error terminates any given run.
func (e StreamingEvent) IsTerminal() bool {
	switch e.Kind {
	case EventStreamEnd, EventFinalCandidate, EventError:
		return true
	default:
		return false
	}
}

func PartialContentDelta(delta string, choiceIndex int) StreamingEvent {
	return StreamingEvent{Kind: EventPartialContentDelta, Delta: delta, ChoiceIndex: choiceIndex}
}

func ThinkingDelta(text string) StreamingEvent {
	return StreamingEvent{Kind: EventThinkingDelta, Thinking: text}
}

func StreamEnd() StreamingEvent {
	return StreamingEvent{Kind: EventStreamEnd}
}

func ErrorEvent(kind llmerr.Kind, message string, code string) StreamingEvent {
	return StreamingEvent{Kind: EventError, ErrKind: kind, Message: message, Code: code}
}
