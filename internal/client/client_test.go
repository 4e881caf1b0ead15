package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/arrowhead-dev/llmbridge/internal/canonical"
	"github.com/arrowhead-dev/llmbridge/internal/llmerr"
	"github.com/arrowhead-dev/llmbridge/internal/llmprovider"
	"github.com/arrowhead-dev/llmbridge/internal/manifest"
	"github.com/arrowhead-dev/llmbridge/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	requests []*http.Request
	response *http.Response
	err      error
	upload   map[string]any
}

func (f *fakeTransport) Do(req *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, req)
	return f.response, f.err
}

func (f *fakeTransport) UploadMultipart(ctx context.Context, url string, headers map[string]string, field, filename string, data []byte) (map[string]any, error) {
	return f.upload, nil
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
		Auth:          manifest.AuthConfig{Kind: manifest.AuthBearerEnvVar, EnvVar: "TEST_CLIENT_OPENAI_KEY"},
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

func chatRequest(model, text string) *canonical.Request {
	return &canonical.Request{
		Model:    model,
		Messages: []canonical.Message{{Role: canonical.RoleUser, Content: canonical.Content{Kind: canonical.ContentText, Text: text}}},
	}
}

func TestNewRequiresProviderOrManifest(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.Equal(t, llmerr.KindConfiguration, llmerr.KindOf(err))
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(Config{Manifest: testManifest(), ProviderName: "missing", ModelID: "gpt-x"})
	require.Error(t, err)
	assert.Equal(t, llmerr.KindConfiguration, llmerr.KindOf(err))
}

func TestChatCompletionManifestModeHappyPath(t *testing.T) {
	t.Setenv("TEST_CLIENT_OPENAI_KEY", "sk-test")

	transport := &fakeTransport{
		response: jsonResponse(200, `{"id":"a","choices":[{"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`),
	}

	c, err := New(Config{Manifest: testManifest(), ProviderName: "openai", ModelID: "gpt-x", Transport: transport})
	require.NoError(t, err)

	resp, err := c.ChatCompletion(context.Background(), chatRequest("gpt-x", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "a", resp.ID)
	assert.Equal(t, canonical.UsageFinalized, resp.Usage.Status)
}

func TestChatCompletionSubstitutesDefaultModelSentinel(t *testing.T) {
	t.Setenv("TEST_CLIENT_OPENAI_KEY", "sk-test")

	transport := &fakeTransport{
		response: jsonResponse(200, `{"id":"a","choices":[{"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}]}`),
	}

	c, err := New(Config{
		Manifest: testManifest(), ProviderName: "openai", ModelID: "gpt-x", Transport: transport,
		Resolver: StaticResolver{Default: "gpt-x"},
	})
	require.NoError(t, err)

	_, err = c.ChatCompletion(context.Background(), chatRequest("auto", "hello"))
	require.NoError(t, err)
}

func TestChatCompletionFillsEstimatedUsageWhenProviderOmitsIt(t *testing.T) {
	t.Setenv("TEST_CLIENT_OPENAI_KEY", "sk-test")

	transport := &fakeTransport{
		response: jsonResponse(200, `{"id":"a","choices":[{"message":{"role":"assistant","content":"hi there"},"finish_reason":"stop"}]}`),
	}

	c, err := New(Config{Manifest: testManifest(), ProviderName: "openai", ModelID: "gpt-x", Transport: transport})
	require.NoError(t, err)

	resp, err := c.ChatCompletion(context.Background(), chatRequest("gpt-x", "hello there"))
	require.NoError(t, err)
	assert.Equal(t, canonical.UsageEstimated, resp.Usage.Status)
	assert.Greater(t, resp.Usage.TotalTokens, 0)
}

func TestChatCompletionRetriesOnceWithFallbackModel(t *testing.T) {
	t.Setenv("TEST_CLIENT_OPENAI_KEY", "sk-test")

	transport := &fakeTransport{
		response: jsonResponse(200, `{"id":"a","choices":[{"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}]}`),
	}

	c, err := New(Config{
		Manifest: testManifest(), ProviderName: "openai", ModelID: "gpt-x", Transport: transport,
		Resolver: StaticResolver{Default: "gpt-x", Fallbacks: map[string]string{"retired-model": "gpt-x"}},
	})
	require.NoError(t, err)

	resp, err := c.ChatCompletion(context.Background(), chatRequest("retired-model", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "a", resp.ID)
}

func TestChatCompletionModelNotFoundWithoutFallbackPropagatesError(t *testing.T) {
	t.Setenv("TEST_CLIENT_OPENAI_KEY", "sk-test")

	c, err := New(Config{Manifest: testManifest(), ProviderName: "openai", ModelID: "gpt-x", Transport: &fakeTransport{}})
	require.NoError(t, err)

	_, err = c.ChatCompletion(context.Background(), chatRequest("no-such-model", "hello"))
	require.Error(t, err)
	assert.Equal(t, llmerr.KindModelNotFound, llmerr.KindOf(err))
}

func TestChatCompletionRejectsPromptAtOrAboveContextWindow(t *testing.T) {
	t.Setenv("TEST_CLIENT_OPENAI_KEY", "sk-test")

	m := testManifest()
	tiny := m.Models["gpt-x"]
	tiny.ContextWindow = 1
	m.Models["gpt-x"] = tiny

	c, err := New(Config{Manifest: m, ProviderName: "openai", ModelID: "gpt-x", Transport: &fakeTransport{}})
	require.NoError(t, err)

	_, err = c.ChatCompletion(context.Background(), chatRequest("gpt-x", "more than one token of text here"))
	require.Error(t, err)
	assert.Equal(t, llmerr.KindContextLengthExceeded, llmerr.KindOf(err))
}

func TestListModelsManifestModeReturnsProviderModels(t *testing.T) {
	c, err := New(Config{Manifest: testManifest(), ProviderName: "openai", ModelID: "gpt-x", Transport: &fakeTransport{}})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"gpt-x"}, c.ListModels())
}

func TestSwitchProviderRejectsUnknownProviderAndPreservesExistingBinding(t *testing.T) {
	c, err := New(Config{Manifest: testManifest(), ProviderName: "openai", ModelID: "gpt-x", Transport: &fakeTransport{}})
	require.NoError(t, err)

	err = c.SwitchProvider(testManifest(), "missing", "gpt-x")
	require.Error(t, err)

	assert.ElementsMatch(t, []string{"gpt-x"}, c.ListModels())
}

type fakeCompositeProvider struct {
	calls int
}

func (f *fakeCompositeProvider) Chat(ctx context.Context, req *canonical.Request) (*canonical.Response, error) {
	f.calls++
	return &canonical.Response{ID: "composite", Usage: canonical.Usage{TotalTokens: 1}}, nil
}

func (f *fakeCompositeProvider) Stream(ctx context.Context, req *canonical.Request) (llmprovider.EventStream, error) {
	return nil, nil
}

func (f *fakeCompositeProvider) ListModels() []string { return []string{"composite-model"} }

func TestChatCompletionCompositeModeDispatchesToProvider(t *testing.T) {
	composite := &fakeCompositeProvider{}

	c, err := New(Config{Provider: composite})
	require.NoError(t, err)

	resp, err := c.ChatCompletion(context.Background(), chatRequest("composite-model", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "composite", resp.ID)
	assert.Equal(t, 1, composite.calls)
	assert.Equal(t, []string{"composite-model"}, c.ListModels())
}

func TestUploadFileRequiresUploaderCapableTransport(t *testing.T) {
	c, err := New(Config{Provider: &fakeCompositeProvider{}, Transport: nonUploadingTransport{}})
	require.NoError(t, err)

	_, err = c.UploadFile(context.Background(), "https://x", nil, "file", "a.png", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, llmerr.KindUnsupportedFeature, llmerr.KindOf(err))
}

type nonUploadingTransport struct{}

func (nonUploadingTransport) Do(req *http.Request) (*http.Response, error) {
	return jsonResponse(200, "{}"), nil
}

func TestUploadFileDelegatesToTransportUploader(t *testing.T) {
	transport := &fakeTransport{upload: map[string]any{"file_id": "f-1"}}

	c, err := New(Config{Provider: &fakeCompositeProvider{}, Transport: transport})
	require.NoError(t, err)

	result, err := c.UploadFile(context.Background(), "https://x", nil, "file", "a.png", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "f-1", result["file_id"])
}

func TestChatCompletionBackpressureRejectsWhenContextAlreadyCancelled(t *testing.T) {
	c, err := New(Config{Provider: &fakeCompositeProvider{}, MaxConcurrentRequests: 1})
	require.NoError(t, err)

	// Fill the one backpressure slot with a direct channel send, then try
	// a call against an already-cancelled context so it can't wait.
	c.sem <- struct{}{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.ChatCompletion(ctx, chatRequest("composite-model", "hi"))
	require.Error(t, err)
	assert.Equal(t, llmerr.KindTimeout, llmerr.KindOf(err))
}

func TestClientSatisfiesMetricsSinkDefaultsToNoop(t *testing.T) {
	var s metrics.Sink = metrics.Noop{}
	s.IncrCounter("x", 1)

	c, err := New(Config{Provider: &fakeCompositeProvider{}})
	require.NoError(t, err)
	assert.Equal(t, metrics.Noop{}, c.sink)
}
