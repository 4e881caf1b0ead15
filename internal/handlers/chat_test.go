package handlers

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arrowhead-dev/llmbridge/internal/client"
	"github.com/arrowhead-dev/llmbridge/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	response *http.Response
}

func (f *fakeTransport) Do(req *http.Request) (*http.Response, error) {
	return f.response, nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func testManifest() *manifest.Manifest {
	provider := manifest.Provider{
		Name:          "openai",
		BaseURL:       manifest.BaseURLConfig{Static: "https://api.openai.com/v1"},
		PayloadFormat: manifest.PayloadOpenAIStyle,
		Auth:          manifest.AuthConfig{Kind: manifest.AuthBearerEnvVar, EnvVar: "TEST_HANDLERS_OPENAI_KEY"},
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

	return &manifest.Manifest{
		Providers: map[string]manifest.Provider{"openai": provider},
		Models: map[string]manifest.Model{
			"gpt-x": {Provider: "openai", ProviderModelID: "gpt-x", ContextWindow: 8192},
		},
	}
}

func TestChatHandlerServesNonStreamingCompletion(t *testing.T) {
	t.Setenv("TEST_HANDLERS_OPENAI_KEY", "sk-test")

	transport := &fakeTransport{response: jsonResponse(200, `{"id":"a","choices":[{"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`)}

	c, err := client.New(client.Config{Manifest: testManifest(), ProviderName: "openai", ModelID: "gpt-x", Transport: transport})
	require.NoError(t, err)

	handler := NewChatHandler(c, slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"gpt-x","messages":[{"role":"user","content":"hello"}]}`))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hi"`)
}

func TestChatHandlerMapsModelNotFoundToNotFound(t *testing.T) {
	t.Setenv("TEST_HANDLERS_OPENAI_KEY", "sk-test")

	c, err := client.New(client.Config{Manifest: testManifest(), ProviderName: "openai", ModelID: "gpt-x", Transport: &fakeTransport{}})
	require.NoError(t, err)

	handler := NewChatHandler(c, slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{"model":"no-such-model","messages":[{"role":"user","content":"hello"}]}`))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatHandlerRejectsMalformedBody(t *testing.T) {
	t.Setenv("TEST_HANDLERS_OPENAI_KEY", "sk-test")

	c, err := client.New(client.Config{Manifest: testManifest(), ProviderName: "openai", ModelID: "gpt-x", Transport: &fakeTransport{}})
	require.NoError(t, err)

	handler := NewChatHandler(c, slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
