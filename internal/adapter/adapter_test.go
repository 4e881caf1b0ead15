package adapter

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/arrowhead-dev/llmbridge/internal/canonical"
	"github.com/arrowhead-dev/llmbridge/internal/llmerr"
	"github.com/arrowhead-dev/llmbridge/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport lets tests script a canned response and inspect the
// outgoing request without touching the network.
type fakeTransport struct {
	lastRequest *http.Request
	response    *http.Response
	err         error
}

func (f *fakeTransport) Do(req *http.Request) (*http.Response, error) {
	f.lastRequest = req
	return f.response, f.err
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func openAIProvider() *manifest.Provider {
	return &manifest.Provider{
		Name:          "openai",
		BaseURL:       manifest.BaseURLConfig{Static: "https://api.openai.com/v1"},
		PayloadFormat: manifest.PayloadOpenAIStyle,
		Auth:          manifest.AuthConfig{Kind: manifest.AuthBearerEnvVar, EnvVar: "TEST_OPENAI_KEY"},
		ParameterMapping: map[string]manifest.MappingRule{
			"model":    {Kind: manifest.RuleDirect, TargetPath: "model"},
			"messages": {Kind: manifest.RuleDirect, TargetPath: "messages"},
		},
		ResponsePaths: map[string]string{
			"content":       "choices[0].message.content",
			"finish_reason": "choices[0].finish_reason",
			"usage":         "usage",
		},
	}
}

func openAIModel() manifest.Model {
	return manifest.Model{Provider: "openai", ProviderModelID: "gpt-x"}
}

func TestNewRejectsModelProviderMismatch(t *testing.T) {
	model := openAIModel()
	model.Provider = "anthropic"

	_, err := New("openai", openAIProvider(), "m1", model, nil)
	require.Error(t, err)
	assert.Equal(t, llmerr.KindConfiguration, llmerr.KindOf(err))
}

func TestChatBuildsRequestAndParsesResponse(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")

	transport := &fakeTransport{
		response: jsonResponse(200, `{"id":"a","choices":[{"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`),
	}

	a, err := New("openai", openAIProvider(), "gpt-x", openAIModel(), transport)
	require.NoError(t, err)

	req := &canonical.Request{
		Model:    "gpt-x",
		Messages: []canonical.Message{{Role: canonical.RoleUser, Content: canonical.Content{Kind: canonical.ContentText, Text: "hello"}}},
	}

	resp, err := a.Chat(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "a", resp.ID)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hi", resp.Choices[0].Message.Content.Text)
	assert.Equal(t, 4, resp.Usage.TotalTokens)

	require.NotNil(t, transport.lastRequest)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", transport.lastRequest.URL.String())
	assert.Equal(t, "Bearer sk-test", transport.lastRequest.Header.Get("Authorization"))
	assert.Equal(t, "application/json", transport.lastRequest.Header.Get("Content-Type"))
}

func TestChatMapsNonSuccessStatusToProviderError(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")

	transport := &fakeTransport{response: jsonResponse(429, `{"error":"rate limited"}`)}

	a, err := New("openai", openAIProvider(), "gpt-x", openAIModel(), transport)
	require.NoError(t, err)

	_, err = a.Chat(context.Background(), &canonical.Request{Model: "gpt-x"})
	require.Error(t, err)

	le, ok := llmerr.As(err)
	require.True(t, ok)
	assert.Equal(t, llmerr.KindProvider, le.Kind)
	assert.Equal(t, 429, le.Status)
}

func TestChatMissingAuthEnvVarIsAuthenticationError(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "")

	a, err := New("openai", openAIProvider(), "gpt-x", openAIModel(), &fakeTransport{})
	require.NoError(t, err)

	_, err = a.Chat(context.Background(), &canonical.Request{Model: "gpt-x"})
	require.Error(t, err)
	assert.Equal(t, llmerr.KindAuthentication, llmerr.KindOf(err))
}

func TestEndpointURLGeminiIncludesModelInPath(t *testing.T) {
	provider := openAIProvider()
	provider.PayloadFormat = manifest.PayloadGeminiStyle
	provider.BaseURL = manifest.BaseURLConfig{Static: "https://generativelanguage.googleapis.com/v1beta"}

	a, err := New("gemini", provider, "gemini-pro", manifest.Model{Provider: "gemini", ProviderModelID: "gemini-pro"}, &fakeTransport{})
	require.NoError(t, err)

	url, err := a.endpointURL()
	require.NoError(t, err)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent", url)
}

func TestEndpointURLAnthropicUsesMessagesPath(t *testing.T) {
	provider := openAIProvider()
	provider.PayloadFormat = manifest.PayloadAnthropicStyle

	a, err := New("openai", provider, "gpt-x", openAIModel(), &fakeTransport{})
	require.NoError(t, err)

	url, err := a.endpointURL()
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1/messages", url)
}

func TestStreamEmitsEventsAcrossFrames(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")

	provider := openAIProvider()
	provider.Streaming = manifest.StreamingConfig{
		EventMap: []manifest.EventMapRule{
			{Match: "exists(choices[0].delta.content)", Emit: manifest.EmitPartialContentDelta, Fields: map[string]string{"content": "choices[0].delta.content"}},
		},
	}

	body := "data: {\"choices\":[{\"delta\":{\"content\":\"hel\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
		"data: [DONE]\n\n"

	transport := &fakeTransport{response: jsonResponse(200, body)}

	a, err := New("openai", provider, "gpt-x", openAIModel(), transport)
	require.NoError(t, err)

	stream, err := a.Stream(context.Background(), &canonical.Request{Model: "gpt-x"})
	require.NoError(t, err)

	var deltas []string

	for {
		ev, ok := stream.Next()
		if !ok {
			break
		}

		deltas = append(deltas, ev.Delta)
	}

	require.NoError(t, stream.Err())
	assert.Equal(t, []string{"hel", "lo"}, deltas)
}

func TestListModelsReturnsBoundModel(t *testing.T) {
	a, err := New("openai", openAIProvider(), "gpt-x", openAIModel(), &fakeTransport{})
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-x"}, a.ListModels())
}

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "upload.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func TestChatInlinesSmallLocalImageAsBase64(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")

	provider := openAIProvider()
	provider.Features.UploadThresholdBytes = 1024

	transport := &fakeTransport{
		response: jsonResponse(200, `{"id":"a","choices":[{"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`),
	}

	a, err := New("openai", provider, "gpt-x", openAIModel(), transport)
	require.NoError(t, err)

	localName := writeTempFile(t, []byte("tiny image bytes"))

	req := &canonical.Request{
		Model: "gpt-x",
		Messages: []canonical.Message{
			{Role: canonical.RoleUser, Content: canonical.Content{Kind: canonical.ContentImage, MIME: "image/png", LocalName: localName}},
		},
	}

	_, err = a.Chat(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, transport.lastRequest)

	sentBody, err := io.ReadAll(transport.lastRequest.Body)
	require.NoError(t, err)
	assert.Contains(t, string(sentBody), "image/png")
	assert.NotContains(t, string(sentBody), "_pending_upload")
}

func TestChatRejectsLocalFileAtOrAboveThreshold(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")

	provider := openAIProvider()
	provider.Features.UploadThresholdBytes = 4

	a, err := New("openai", provider, "gpt-x", openAIModel(), &fakeTransport{})
	require.NoError(t, err)

	localName := writeTempFile(t, []byte("this is definitely over four bytes"))

	req := &canonical.Request{
		Model: "gpt-x",
		Messages: []canonical.Message{
			{Role: canonical.RoleUser, Content: canonical.Content{Kind: canonical.ContentImage, MIME: "image/png", LocalName: localName}},
		},
	}

	_, err = a.Chat(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, llmerr.KindRequestTooLarge, llmerr.KindOf(err))
}
