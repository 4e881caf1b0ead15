// Package tokencount estimates token counts for canonical requests and
// responses when a provider's own usage figures are unavailable,
// wrapping github.com/pkoukk/tiktoken-go exactly as the teacher's
// countInputTokens does (internal/handlers/proxy.go).
package tokencount

import (
	"sync"

	"github.com/arrowhead-dev/llmbridge/internal/canonical"
	"github.com/pkoukk/tiktoken-go"
)

// encodingName mirrors the teacher's hardcoded choice: cl100k_base is
// the BPE every OpenAI-family chat model in the example pack uses, and
// is a reasonable universal estimator for non-OpenAI providers too
// (spec.md's estimate is advisory, not billed).
const encodingName = "cl100k_base"

// messageOverheadTokens approximates the per-message role/formatting
// tokens OpenAI's chat encoding adds beyond the raw content text.
const messageOverheadTokens = 4

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding(encodingName)
	})

	return enc, encErr
}

// CountText estimates the token count of a single string. Returns 0 and
// the encoding error if the BPE could not be loaded; callers treat that
// as "no estimate available" rather than propagating a hard failure.
func CountText(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	tke, err := encoding()
	if err != nil {
		return 0, err
	}

	return len(tke.Encode(text, nil, nil)), nil
}

// CountMessages estimates the prompt token count of a full message
// list: each message's text content plus a small fixed overhead per
// message for its role/formatting tokens.
func CountMessages(messages []canonical.Message) (int, error) {
	tke, err := encoding()
	if err != nil {
		return 0, err
	}

	total := 0

	for _, msg := range messages {
		total += messageOverheadTokens
		total += len(tke.Encode(msg.Content.Text, nil, nil))
	}

	return total, nil
}
