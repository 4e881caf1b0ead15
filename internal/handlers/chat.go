package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/arrowhead-dev/llmbridge/internal/canonical"
	"github.com/arrowhead-dev/llmbridge/internal/client"
	"github.com/arrowhead-dev/llmbridge/internal/llmerr"
)

// ChatHandler fronts internal/client.Client with an OpenAI-compatible
// chat-completions endpoint: request translation, dispatch, and response
// or SSE-stream translation back are all delegated to the client — this
// handler's job is wire framing only.
type ChatHandler struct {
	client *client.Client
	logger *slog.Logger
}

func NewChatHandler(c *client.Client, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{client: c, logger: logger}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.httpError(w, http.StatusBadRequest, "failed to read request body: %v", err)
		return
	}

	req, err := decodeChatRequest(body)
	if err != nil {
		h.httpError(w, http.StatusBadRequest, "%v", err)
		return
	}

	if req.Stream {
		h.serveStream(w, r, req)
		return
	}

	resp, err := h.client.ChatCompletion(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(encodeChatResponse(resp)); err != nil {
		h.logger.Error("failed to encode chat response", "error", err)
	}
}

func (h *ChatHandler) serveStream(w http.ResponseWriter, r *http.Request, req *canonical.Request) {
	stream, err := h.client.ChatCompletionStream(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)

	for {
		ev, ok := stream.Next()
		if !ok {
			break
		}

		if chunk, visible := encodeStreamEvent(req.Model, ev); visible {
			data, err := json.Marshal(chunk)
			if err != nil {
				h.logger.Error("failed to encode stream chunk", "error", err)
				continue
			}

			fmt.Fprintf(w, "data: %s\n\n", data)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}

	if err := stream.Err(); err != nil {
		h.logger.Error("stream ended with error", "error", err)
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

func (h *ChatHandler) writeError(w http.ResponseWriter, err error) {
	status := httpStatusForKind(llmerr.KindOf(err))
	h.logger.Error("chat completion failed", "error", err, "status", status)
	h.httpError(w, status, "%v", err)
}

func (h *ChatHandler) httpError(w http.ResponseWriter, code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	http.Error(w, msg, code)
}

// httpStatusForKind maps the closed llmerr.Kind taxonomy onto HTTP status
// codes a client expects from an OpenAI-compatible endpoint.
func httpStatusForKind(kind llmerr.Kind) int {
	switch kind {
	case llmerr.KindAuthentication:
		return http.StatusUnauthorized
	case llmerr.KindInvalidRequest, llmerr.KindValidation, llmerr.KindParse,
		llmerr.KindSerialization, llmerr.KindDeserialization:
		return http.StatusBadRequest
	case llmerr.KindModelNotFound:
		return http.StatusNotFound
	case llmerr.KindContextLengthExceeded, llmerr.KindRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case llmerr.KindUnsupportedFeature:
		return http.StatusNotImplemented
	case llmerr.KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case llmerr.KindTimeout:
		return http.StatusGatewayTimeout
	case llmerr.KindCircuitOpen:
		return http.StatusServiceUnavailable
	case llmerr.KindProvider, llmerr.KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
