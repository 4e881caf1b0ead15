// Package client implements C14: the composition root a caller actually
// imports. It aggregates a provider (a single manifest-bound adapter, a
// routing strategy, or any other llmprovider.Provider), a metrics sink,
// a model resolver, an optional backpressure semaphore, and an optional
// interceptor pipeline, exposing the operations spec.md §4.14 names:
// ChatCompletion, ChatCompletionStream (with and without a cancel
// handle), ChatCompletionBatch, ListModels, SwitchProvider, UploadFile.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/arrowhead-dev/llmbridge/internal/adapter"
	"github.com/arrowhead-dev/llmbridge/internal/batchexec"
	"github.com/arrowhead-dev/llmbridge/internal/breaker"
	"github.com/arrowhead-dev/llmbridge/internal/canonical"
	"github.com/arrowhead-dev/llmbridge/internal/httptransport"
	"github.com/arrowhead-dev/llmbridge/internal/llmerr"
	"github.com/arrowhead-dev/llmbridge/internal/llmprovider"
	"github.com/arrowhead-dev/llmbridge/internal/manifest"
	"github.com/arrowhead-dev/llmbridge/internal/metrics"
	"github.com/arrowhead-dev/llmbridge/internal/ratelimit"
	"github.com/arrowhead-dev/llmbridge/internal/tokencount"
)

// uploader is the optional capability internal/httptransport.Client (and
// any other Transport) may offer; UploadFile requires it.
type uploader interface {
	UploadMultipart(ctx context.Context, url string, headers map[string]string, field, filename string, data []byte) (map[string]any, error)
}

// Config wires a Client's dependencies. Either Provider (a pre-built
// composite, e.g. a routing.Failover) or Manifest+initial provider/model
// must be supplied; Provider takes precedence when both are set.
type Config struct {
	// Provider, when set, is dispatched through directly: the façade
	// treats it as an opaque llmprovider.Provider ("possibly a routing
	// strategy", spec.md §4.14) and does not build per-model adapters.
	Provider llmprovider.Provider

	// Manifest + initial ProviderName/ModelID select the "manifest
	// mode": the façade builds one internal/adapter.Adapter per model
	// id on first use and caches it.
	Manifest     *manifest.Manifest
	ProviderName string
	ModelID      string

	Transport adapter.Transport
	Metrics   metrics.Sink
	Resolver  ModelResolver

	MaxConcurrentRequests int
	Interceptors          []Interceptor

	Breaker   breaker.Config
	RateLimit ratelimit.Config
}

// Client is the library's composition root (C14).
type Client struct {
	mu sync.Mutex

	composite    llmprovider.Provider
	manifestDoc  *manifest.Manifest
	providerName string
	provider     *manifest.Provider
	adapters     map[string]llmprovider.Provider

	transport adapter.Transport
	sink      metrics.Sink
	resolver  ModelResolver
	custom    string

	sem          chan struct{}
	interceptors []Interceptor

	breaker   *breaker.Breaker
	ratelimit *ratelimit.Bucket
}

var _ llmprovider.Provider = (*Client)(nil)

// defaultedBreakerConfig disables the breaker when cfg is the exact
// zero value: otherwise breaker.New's "zero threshold means 1" misconfig
// guard would make a caller who never mentioned resilience at all trip
// the circuit on the very first failed call.
func defaultedBreakerConfig(cfg breaker.Config) breaker.Config {
	if cfg == (breaker.Config{}) {
		cfg.Disabled = true
	}

	return cfg
}

// defaultedRateLimitConfig disables the limiter when cfg is the exact
// zero value, for the same reason: a zero RequestsPerSecond/BurstCapacity
// would otherwise reject every Acquire as too-large.
func defaultedRateLimitConfig(cfg ratelimit.Config) ratelimit.Config {
	if cfg == (ratelimit.Config{}) {
		cfg.Disabled = true
	}

	return cfg
}

// New builds a Client from cfg, resolving the initial provider binding
// (manifest mode only; composite mode has nothing to resolve up front).
func New(cfg Config) (*Client, error) {
	transport := cfg.Transport
	if transport == nil {
		transport = httptransport.New(nil)
	}

	sink := cfg.Metrics
	if sink == nil {
		sink = metrics.Noop{}
	}

	resolver := cfg.Resolver
	if resolver == nil {
		resolver = StaticResolver{}
	}

	var sem chan struct{}
	if cfg.MaxConcurrentRequests > 0 {
		sem = make(chan struct{}, cfg.MaxConcurrentRequests)
	}

	c := &Client{
		transport:    transport,
		sink:         sink,
		resolver:     resolver,
		sem:          sem,
		interceptors: cfg.Interceptors,
		breaker:      breaker.New(defaultedBreakerConfig(cfg.Breaker)),
		ratelimit:    ratelimit.New(defaultedRateLimitConfig(cfg.RateLimit)),
	}

	if cfg.Provider != nil {
		c.composite = cfg.Provider
		return c, nil
	}

	if cfg.Manifest == nil {
		return nil, llmerr.New(llmerr.KindConfiguration, "client.Config requires either Provider or Manifest+ProviderName+ModelID")
	}

	if err := c.SwitchProvider(cfg.Manifest, cfg.ProviderName, cfg.ModelID); err != nil {
		return nil, err
	}

	return c, nil
}

// SwitchProvider rebuilds the manifest-mode binding to a new provider
// and default model, preserving metrics, transport, backpressure,
// and interceptors (spec.md §4.14). A non-empty modelID replaces the
// custom default model; an empty modelID keeps the current one. It is
// infallible iff the new provider/model pair resolves against m. The
// breaker is reset, since its state describes the health of the
// *previous* backend; the rate limiter keeps its current state.
func (c *Client) SwitchProvider(m *manifest.Manifest, providerName, modelID string) error {
	provider, ok := m.Providers[providerName]
	if !ok {
		return llmerr.New(llmerr.KindConfiguration, fmt.Sprintf("manifest has no provider %q", providerName))
	}

	if modelID != "" {
		if _, ok := m.Models[modelID]; !ok {
			return llmerr.New(llmerr.KindConfiguration, fmt.Sprintf("manifest has no model %q", modelID))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.composite = nil
	c.manifestDoc = m
	c.providerName = providerName
	c.provider = &provider
	c.adapters = make(map[string]llmprovider.Provider)
	c.breaker.Reset()

	if modelID != "" {
		c.custom = modelID
	}

	return nil
}

// SetDefaultModel installs a façade-level override of the resolver's
// default model id. A later SwitchProvider call with a non-empty
// modelID replaces it; one with an empty modelID keeps it.
func (c *Client) SetDefaultModel(modelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.custom = modelID
}

// resolveModel substitutes the resolver/custom default when modelID
// names one of canonical.ModelIsDefaultSentinel's sentinels.
func (c *Client) resolveModel(modelID string) string {
	if !canonical.ModelIsDefaultSentinel(modelID) {
		return modelID
	}

	c.mu.Lock()
	custom := c.custom
	c.mu.Unlock()

	if custom != "" {
		return custom
	}

	return c.resolver.DefaultModelID()
}

// adapterFor returns (building and caching on first use) the adapter
// bound to modelID, in manifest mode.
func (c *Client) adapterFor(modelID string) (llmprovider.Provider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if a, ok := c.adapters[modelID]; ok {
		return a, nil
	}

	model, ok := c.manifestDoc.Models[modelID]
	if !ok {
		return nil, llmerr.New(llmerr.KindModelNotFound, fmt.Sprintf("model %q is not defined in the manifest", modelID))
	}

	if model.Provider != c.providerName {
		return nil, llmerr.New(llmerr.KindModelNotFound, fmt.Sprintf("model %q is bound to provider %q, not the active provider %q", modelID, model.Provider, c.providerName))
	}

	a, err := adapter.New(c.providerName, c.provider, modelID, model, c.transport)
	if err != nil {
		return nil, err
	}

	c.adapters[modelID] = a

	return a, nil
}

// providerFor resolves the llmprovider.Provider a prepared request
// should dispatch through: the composite provider in composite mode, or
// the per-model adapter in manifest mode.
func (c *Client) providerFor(modelID string) (llmprovider.Provider, error) {
	c.mu.Lock()
	composite := c.composite
	c.mu.Unlock()

	if composite != nil {
		return composite, nil
	}

	return c.adapterFor(modelID)
}

func (c *Client) prepare(req *canonical.Request) *canonical.Request {
	prepared := *req
	prepared.Model = c.resolveModel(req.Model)

	return &prepared
}

// Chat implements llmprovider.Provider, so Client itself can be handed
// to internal/batchexec and internal/routing as a composable provider.
// It also backs ChatCompletion, with metrics, backpressure, the
// interceptor pipeline, breaker/rate-limit gating, and the one-shot
// ModelNotFound fallback retry spec.md §4.14 describes.
func (c *Client) Chat(ctx context.Context, req *canonical.Request) (*canonical.Response, error) {
	prepared := c.prepare(req)

	handler := chain(c.interceptors, c.dispatch)

	c.sink.IncrCounter("chat_completion.attempts", 1)
	timer := c.sink.StartTimer("chat_completion.duration_ms")

	resp, err := handler(ctx, prepared)

	timer.Stop()

	if err != nil && llmerr.KindOf(err) == llmerr.KindModelNotFound {
		if fallback, ok := c.resolver.FallbackModelID(prepared.Model); ok {
			c.sink.IncrCounter("chat_completion.fallback_retries", 1)

			retry := *prepared
			retry.Model = fallback

			resp, err = handler(ctx, &retry)
		}
	}

	if err != nil {
		c.sink.IncrCounter("chat_completion.errors", 1)
		return resp, err
	}

	EstimateUsage(prepared, resp)

	return resp, nil
}

// checkContextWindow short-circuits with KindContextLengthExceeded when
// a manifest-mode model's context window is known and the request's
// estimated prompt token count has already reached it, sparing a
// doomed round trip (spec.md §4.14, via internal/tokencount).
func (c *Client) checkContextWindow(req *canonical.Request) error {
	c.mu.Lock()
	manifestDoc := c.manifestDoc
	c.mu.Unlock()

	if manifestDoc == nil {
		return nil
	}

	model, ok := manifestDoc.Models[req.Model]
	if !ok || model.ContextWindow <= 0 {
		return nil
	}

	promptTokens, err := tokencount.CountMessages(req.Messages)
	if err != nil {
		return nil
	}

	if promptTokens >= model.ContextWindow {
		return llmerr.New(llmerr.KindContextLengthExceeded,
			fmt.Sprintf("prompt is an estimated %d tokens, at or above model %q's %d token context window", promptTokens, req.Model, model.ContextWindow))
	}

	return nil
}

// dispatch resolves the provider for the prepared request's model and
// runs the call through the rate limiter and circuit breaker.
func (c *Client) dispatch(ctx context.Context, req *canonical.Request) (*canonical.Response, error) {
	if err := c.checkContextWindow(req); err != nil {
		return nil, err
	}

	p, err := c.providerFor(req.Model)
	if err != nil {
		return nil, err
	}

	if err := c.ratelimit.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	var resp *canonical.Response

	callErr := c.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = p.Chat(ctx, req)

		return err
	})

	c.ratelimit.AdjustRate(callErr == nil)

	return resp, callErr
}

// ChatCompletion is the public, backpressure-gated entry point for a
// single chat call (spec.md §4.14). Concurrency is bounded by
// MaxConcurrentRequests before any downstream work begins.
func (c *Client) ChatCompletion(ctx context.Context, req *canonical.Request) (*canonical.Response, error) {
	if c.sem != nil {
		select {
		case c.sem <- struct{}{}:
			defer func() { <-c.sem }()
		case <-ctx.Done():
			return nil, llmerr.Wrap(llmerr.KindTimeout, "chat completion backpressure wait cancelled", ctx.Err())
		}
	}

	return c.Chat(ctx, req)
}

// Stream implements llmprovider.Provider's streaming half.
func (c *Client) Stream(ctx context.Context, req *canonical.Request) (llmprovider.EventStream, error) {
	prepared := c.prepare(req)

	p, err := c.providerFor(prepared.Model)
	if err != nil {
		return nil, err
	}

	c.sink.IncrCounter("chat_completion_stream.attempts", 1)

	stream, err := p.Stream(ctx, prepared)
	if err != nil {
		c.sink.IncrCounter("chat_completion_stream.errors", 1)
	}

	return stream, err
}

// ChatCompletionStream is the public streaming entry point, per
// spec.md §4.14.
func (c *Client) ChatCompletionStream(ctx context.Context, req *canonical.Request) (llmprovider.EventStream, error) {
	return c.Stream(ctx, req)
}

// ChatCompletionStreamCancelable is the cancel-handle variant of
// ChatCompletionStream: the returned CancelFunc stops the in-flight
// stream's underlying request.
func (c *Client) ChatCompletionStreamCancelable(ctx context.Context, req *canonical.Request) (llmprovider.EventStream, context.CancelFunc, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	stream, err := c.Stream(streamCtx, req)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	return stream, cancel, nil
}

// ChatCompletionBatch runs requests through RunSmart, using Client
// itself as the provider so each request resolves its own model
// independently (spec.md §4.12, §4.14).
func (c *Client) ChatCompletionBatch(ctx context.Context, requests []*canonical.Request, concurrencyLimit int) []batchexec.Result {
	return batchexec.RunSmart(ctx, c, requests, concurrencyLimit)
}

// ListModels returns every model id the active provider serves.
func (c *Client) ListModels() []string {
	c.mu.Lock()
	composite := c.composite
	manifestDoc := c.manifestDoc
	providerName := c.providerName
	c.mu.Unlock()

	if composite != nil {
		return composite.ListModels()
	}

	if manifestDoc == nil {
		return nil
	}

	return manifestDoc.ModelsForProvider(providerName)
}

// UploadFile pre-uploads a local file's bytes to a provider endpoint via
// multipart/form-data, per spec.md §4.14 / §9's
// upload_multipart(url, headers?, field, filename, bytes) primitive. The
// returned JSON typically carries a provider file id or URL a caller
// then references from a canonical.Content.URL field.
func (c *Client) UploadFile(ctx context.Context, url string, headers map[string]string, field, filename string, data []byte) (map[string]any, error) {
	up, ok := c.transport.(uploader)
	if !ok {
		return nil, llmerr.New(llmerr.KindUnsupportedFeature, "configured transport does not support multipart upload")
	}

	return up.UploadMultipart(ctx, url, headers, field, filename, data)
}

// EstimateUsage fills in a best-effort Usage when a provider response
// arrives without one, marking it UsageEstimated (spec.md §4.6,
// canonical.Usage's estimation contract), via internal/tokencount.
func EstimateUsage(req *canonical.Request, resp *canonical.Response) {
	if resp.Usage.TotalTokens > 0 {
		return
	}

	promptTokens, err := tokencount.CountMessages(req.Messages)
	if err != nil {
		return
	}

	var completionTokens int

	for _, choice := range resp.Choices {
		n, err := tokencount.CountText(choice.Message.Content.Text)
		if err != nil {
			return
		}

		completionTokens += n
	}

	resp.Usage = canonical.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Status:           canonical.UsageEstimated,
	}
}
