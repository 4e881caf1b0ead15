// Package adapter implements C8: the manifest-driven adapter binding one
// (provider, model) pair to concrete HTTP chat/stream operations, built
// from the C4-C7 pipeline plus an injected transport.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/arrowhead-dev/llmbridge/internal/canonical"
	"github.com/arrowhead-dev/llmbridge/internal/llmerr"
	"github.com/arrowhead-dev/llmbridge/internal/llmprovider"
	"github.com/arrowhead-dev/llmbridge/internal/manifest"
	"github.com/arrowhead-dev/llmbridge/internal/mapping"
	"github.com/arrowhead-dev/llmbridge/internal/pathutil"
	"github.com/arrowhead-dev/llmbridge/internal/payload"
	"github.com/arrowhead-dev/llmbridge/internal/respparse"
	"github.com/arrowhead-dev/llmbridge/internal/sse"
	"github.com/arrowhead-dev/llmbridge/internal/streamproc"
	"github.com/arrowhead-dev/llmbridge/internal/upload"
)

// Transport is the seam between the adapter and the wire. *http.Client
// satisfies it directly; tests inject a fake.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

var _ llmprovider.Provider = (*Adapter)(nil)

// Adapter dispatches chat/stream calls for one (provider, model)
// binding, per spec.md §4.8.
type Adapter struct {
	providerName string
	modelID      string
	provider     *manifest.Provider
	model        manifest.Model
	baseURL      string
	transport    Transport
}

// New validates that model.Provider matches provider.Name, resolves the
// provider's base URL (static, or via template substitution against
// BaseURL.ConnectionVars), and returns a ready-to-use Adapter.
func New(providerName string, provider *manifest.Provider, modelID string, model manifest.Model, transport Transport) (*Adapter, error) {
	if model.Provider != providerName {
		return nil, llmerr.New(llmerr.KindConfiguration,
			fmt.Sprintf("model %q is bound to provider %q, not %q", modelID, model.Provider, providerName))
	}

	baseURL, err := resolveBaseURL(provider.BaseURL)
	if err != nil {
		return nil, err
	}

	if transport == nil {
		transport = http.DefaultClient
	}

	return &Adapter{
		providerName: providerName,
		modelID:      modelID,
		provider:     provider,
		model:        model,
		baseURL:      baseURL,
		transport:    transport,
	}, nil
}

func resolveBaseURL(cfg manifest.BaseURLConfig) (string, error) {
	if cfg.Template == "" {
		return cfg.Static, nil
	}

	rendered, err := pathutil.RenderTemplate(cfg.Template, cfg.ConnectionVars)
	if err != nil {
		return "", llmerr.Wrap(llmerr.KindConfiguration, "failed to resolve base URL template", err)
	}

	return rendered, nil
}

// ListModels returns the model id(s) bound to this adapter.
func (a *Adapter) ListModels() []string {
	return []string{a.modelID}
}

// Chat builds, dispatches, and parses a single non-streaming request.
func (a *Adapter) Chat(ctx context.Context, req *canonical.Request) (*canonical.Response, error) {
	body, err := a.buildBody(req, false)
	if err != nil {
		return nil, err
	}

	httpReq, err := a.newRequest(ctx, body, false)
	if err != nil {
		return nil, err
	}

	resp, err := a.transport.Do(httpReq)
	if err != nil {
		return nil, llmerr.Wrap(llmerr.KindNetwork, "chat request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llmerr.Wrap(llmerr.KindNetwork, "failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, llmerr.Provider(resp.StatusCode, string(respBody))
	}

	var decoded any
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, llmerr.Wrap(llmerr.KindParse, "failed to parse provider response body", err)
	}

	return respparse.Parse(decoded, a.provider), nil
}

// EventStream is the lazy sequence of StreamingEvents a Stream call
// returns. Next blocks until another event is available, the stream
// ends, or the transport fails; callers must Close when done.
type EventStream struct {
	body      io.ReadCloser
	decoder   sse.Decoder
	processor *streamproc.Processor
	buf       []byte
	pending   []canonical.StreamingEvent
	done      bool
	err       error
}

// Next advances the stream. ok is false once the stream has ended
// (either cleanly or via s.Err()).
func (s *EventStream) Next() (canonical.StreamingEvent, bool) {
	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]

			return ev, true
		}

		if s.done {
			return canonical.StreamingEvent{}, false
		}

		if !s.fill() {
			return canonical.StreamingEvent{}, false
		}
	}
}

// fill reads and processes frames until one yields an event, appending
// that event to s.pending; frames that yield no event are skipped. Returns false once no more frames can be
// produced (stream ended, decoder sentinel, or a transport error).
func (s *EventStream) fill() bool {
	for {
		frameEnd, next, found := s.decoder.FindEventBoundary(s.buf)
		if found {
			frame := string(s.buf[:frameEnd])
			s.buf = s.buf[next:]

			chunk := s.decoder.ParseSSEEvent(frame)
			if !chunk.Present {
				continue
			}

			if chunk.Done {
				s.done = true
				return false
			}

			if chunk.Err != nil {
				s.err = llmerr.Wrap(llmerr.KindParse, "failed to parse stream frame", chunk.Err)
				s.done = true

				return false
			}

			if ev, ok := s.processor.Process(chunk.Value); ok {
				s.pending = append(s.pending, ev)
				return true
			}

			continue
		}

		readBuf := make([]byte, 4096)

		n, readErr := s.body.Read(readBuf)
		if n > 0 {
			s.buf = append(s.buf, readBuf[:n]...)
		}

		if readErr != nil {
			s.done = true

			if readErr != io.EOF {
				s.err = llmerr.Wrap(llmerr.KindNetwork, "stream read failed", readErr)
			}

			return len(s.pending) > 0
		}
	}
}

// Err returns the error that ended the stream, if any.
func (s *EventStream) Err() error { return s.err }

// Close releases the underlying HTTP response body.
func (s *EventStream) Close() error { return s.body.Close() }

// Stream builds and dispatches a streaming request, returning a lazy
// EventStream of canonical StreamingEvents. The return type is the
// llmprovider.EventStream interface so callers (internal/routing,
// internal/batchexec, internal/client) depend on the contract, not this
// package's concrete type.
func (a *Adapter) Stream(ctx context.Context, req *canonical.Request) (llmprovider.EventStream, error) {
	body, err := a.buildBody(req, true)
	if err != nil {
		return nil, err
	}

	httpReq, err := a.newRequest(ctx, body, true)
	if err != nil {
		return nil, err
	}

	resp, err := a.transport.Do(httpReq)
	if err != nil {
		return nil, llmerr.Wrap(llmerr.KindNetwork, "stream request failed", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		return nil, llmerr.Provider(resp.StatusCode, string(respBody))
	}

	dec := sse.Decoder{}
	if a.provider.Streaming.Delimiter != "" {
		dec.Delimiter = []byte(a.provider.Streaming.Delimiter)
	}

	if a.provider.Streaming.Terminator != "" {
		dec.Terminator = a.provider.Streaming.Terminator
	}

	return &EventStream{
		body:      resp.Body,
		decoder:   dec,
		processor: streamproc.New(a.provider.Streaming),
	}, nil
}

func (a *Adapter) buildBody(req *canonical.Request, stream bool) ([]byte, error) {
	effective := *req
	effective.Model = a.model.ProviderModelID
	effective.Stream = stream

	built, err := mapping.Build(&effective, a.provider)
	if err != nil {
		return nil, err
	}

	if err := a.resolvePendingUploads(built); err != nil {
		return nil, err
	}

	normalized, err := payload.Normalize(built, a.provider.PayloadFormat)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(normalized)
	if err != nil {
		return nil, llmerr.Wrap(llmerr.KindSerialization, "failed to marshal request payload", err)
	}

	return body, nil
}

// resolvePendingUploads walks the mapped messages for content blocks C4
// left as mapping.PendingUpload sentinels and inlines them as base64,
// per the provider's UploadThresholdBytes (spec.md §4.8 upload
// policy). A file at or above the threshold has no provider-specific
// upload endpoint to resolve it against automatically, so it is
// rejected with KindRequestTooLarge: callers pre-upload via the
// client façade's UploadFile and pass the resulting URL instead.
func (a *Adapter) resolvePendingUploads(built map[string]any) error {
	messages, _ := built["messages"].([]map[string]any)

	threshold := a.provider.Features.UploadThresholdBytes
	if threshold <= 0 {
		threshold = 1 << 20
	}

	for _, msg := range messages {
		content, ok := msg["content"].(map[string]any)
		if !ok {
			continue
		}

		pending, ok := content[mapping.PendingUploadKey].(mapping.PendingUpload)
		if !ok {
			continue
		}

		data, err := os.ReadFile(pending.LocalName)
		if err != nil {
			return llmerr.Wrap(llmerr.KindFile, fmt.Sprintf("failed to read local file %q", pending.LocalName), err)
		}

		if int64(len(data)) >= threshold {
			return upload.TooLargeError(pending.LocalName, int64(len(data)), threshold)
		}

		msg["content"] = map[string]any{pending.Kind: upload.InlineBase64(pending.MIME, data)}
	}

	return nil
}

func (a *Adapter) newRequest(ctx context.Context, body []byte, stream bool) (*http.Request, error) {
	endpoint, err := a.endpointURL()
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, llmerr.Wrap(llmerr.KindConfiguration, "failed to build upstream request", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	if err := a.applyAuth(httpReq); err != nil {
		return nil, err
	}

	return httpReq, nil
}

// endpointURL composes the request URL by wire-format convention (spec.md
// §4.8 step 2), matching the teacher's per-provider buildEndpointURL
// special-casing.
func (a *Adapter) endpointURL() (string, error) {
	base := strings.TrimSuffix(a.baseURL, "/")

	switch a.provider.PayloadFormat {
	case manifest.PayloadGeminiStyle:
		return fmt.Sprintf("%s/models/%s:generateContent", base, a.model.ProviderModelID), nil
	case manifest.PayloadAnthropicStyle:
		return base + "/messages", nil
	default:
		return base + "/chat/completions", nil
	}
}

// applyAuth attaches credentials per the provider's AuthConfig (spec.md
// §4.8 step 3).
func (a *Adapter) applyAuth(req *http.Request) error {
	auth := a.provider.Auth

	switch auth.Kind {
	case manifest.AuthBearerEnvVar:
		token := os.Getenv(auth.EnvVar)
		if token == "" {
			return llmerr.New(llmerr.KindAuthentication, fmt.Sprintf("environment variable %q is not set", auth.EnvVar))
		}

		req.Header.Set("Authorization", "Bearer "+token)

		return nil
	case manifest.AuthAPIKeyHeader:
		key := os.Getenv(auth.EnvVar)
		if key == "" {
			return llmerr.New(llmerr.KindAuthentication, fmt.Sprintf("environment variable %q is not set", auth.EnvVar))
		}

		header := auth.Header
		if header == "" {
			header = "Authorization"
		}

		req.Header.Set(header, key)

		return nil
	case manifest.AuthQueryParam:
		key := os.Getenv(auth.EnvVar)
		if key == "" {
			return llmerr.New(llmerr.KindAuthentication, fmt.Sprintf("environment variable %q is not set", auth.EnvVar))
		}

		q := req.URL.Query()
		q.Set(auth.QueryParam, key)
		req.URL.RawQuery = q.Encode()

		return nil
	default:
		return llmerr.New(llmerr.KindUnsupportedFeature,
			fmt.Sprintf("auth kind %d is not supported by this adapter", auth.Kind))
	}
}
