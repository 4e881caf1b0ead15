// Package sse implements the SSE/JSONL framing decoder (spec component
// C3): finding event boundaries in a growing byte buffer and parsing
// individual frames. The decoder holds only immutable configuration — it
// is stateless across calls, exactly as the frames it decodes are handed
// to it fresh by the caller (internal/adapter's streaming loop).
package sse

import (
	"bytes"
	"encoding/json"
	"strings"
)

const defaultTerminator = "[DONE]"

// Decoder configuration. A zero-value Decoder is ready to use and applies
// the OpenAI/Cohere defaults (blank-line framing, "[DONE]" terminator).
type Decoder struct {
	// Delimiter overrides the default blank-line frame boundary when set.
	Delimiter []byte
	// Terminator overrides the default "[DONE]" sentinel when set.
	Terminator string
}

func (d *Decoder) terminator() string {
	if d.Terminator == "" {
		return defaultTerminator
	}

	return d.Terminator
}

// FindEventBoundary locates the next frame boundary in buf. It returns the
// offset where the frame's content ends (frameEnd) and the offset where
// the next frame begins (next, i.e. past the delimiter). found is false if
// no complete frame is yet available — the caller should read more bytes.
func (d *Decoder) FindEventBoundary(buf []byte) (frameEnd, next int, found bool) {
	if len(d.Delimiter) > 0 {
		idx := bytes.Index(buf, d.Delimiter)
		if idx == -1 {
			return 0, 0, false
		}

		return idx, idx + len(d.Delimiter), true
	}

	idxLF := bytes.Index(buf, []byte("\n\n"))
	idxCRLF := bytes.Index(buf, []byte("\r\n\r\n"))

	switch {
	case idxLF == -1 && idxCRLF == -1:
		return 0, 0, false
	case idxCRLF != -1 && (idxLF == -1 || idxCRLF <= idxLF):
		return idxCRLF, idxCRLF + 4, true
	default:
		return idxLF, idxLF + 2, true
	}
}

// Event is the result of parsing one SSE frame's lines, before JSON
// decoding. Present is false when the frame carried no "data:" line at
// all (a bare comment or "event:"-only frame) — the caller should ignore
// such frames.
type Event struct {
	EventType string
	Data      string
	Present   bool
}

// ParseRawEvent walks the lines of one frame, stripping "data:"/"event:"
// prefixes. Multiple "data:" lines within one frame are joined with "\n",
// per the SSE specification.
func ParseRawEvent(text string) Event {
	var (
		dataLines []string
		eventType string
		present   bool
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")

		switch {
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			present = true
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimPrefix(strings.TrimPrefix(line, "event:"), " ")
		default:
			// comments (":") and other SSE fields (id:, retry:) are
			// ignored — this decoder only surfaces data/event.
		}
	}

	return Event{EventType: eventType, Data: strings.Join(dataLines, "\n"), Present: present}
}

// ParsedChunk is the outcome of decoding one frame's data payload: the
// spec's `option<result<option<chunk>>>`. Present mirrors Event.Present.
// Done is true when the payload was the terminator sentinel — no Value or
// Err is meaningful in that case. Err is set when the payload failed to
// parse as JSON.
type ParsedChunk struct {
	Present bool
	Done    bool
	Value   any
	Err     error
}

// ParseSSEEvent parses one full frame: extracts the data payload and, if
// present and not the terminator, JSON-decodes it.
func (d *Decoder) ParseSSEEvent(text string) ParsedChunk {
	ev := ParseRawEvent(text)
	if !ev.Present {
		return ParsedChunk{Present: false}
	}

	if d.IsDone(ev.Data) {
		return ParsedChunk{Present: true, Done: true}
	}

	var value any
	if err := json.Unmarshal([]byte(ev.Data), &value); err != nil {
		return ParsedChunk{Present: true, Err: err}
	}

	return ParsedChunk{Present: true, Value: value}
}

// IsDone reports whether a raw data payload equals the terminator
// sentinel (trimmed of surrounding whitespace).
func (d *Decoder) IsDone(data string) bool {
	return strings.TrimSpace(data) == d.terminator()
}
