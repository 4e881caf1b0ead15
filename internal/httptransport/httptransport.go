// Package httptransport is the default internal/adapter.Transport
// implementation: an *http.Client wrapper that transparently
// decompresses gzip/brotli response bodies, exactly as the teacher's
// ProxyHandler.decompressReader did for the proxied upstream response
// (internal/handlers/proxy.go), plus the multipart upload path the
// client façade's UploadFile operation dispatches through
// (spec.md §4.14, §9's upload_multipart primitive).
package httptransport

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/arrowhead-dev/llmbridge/internal/upload"
)

// DefaultTimeout bounds a request with no caller-supplied context
// deadline; provider calls are expected to carry their own via the
// breaker's RequestTimeout, but a bare http.Client still needs a floor.
const DefaultTimeout = 120 * time.Second

// Client wraps *http.Client to satisfy internal/adapter.Transport and
// internal/upload.Transport, decompressing gzip/brotli bodies before
// handing them back so every downstream parser only ever sees plain
// JSON/SSE bytes.
type Client struct {
	inner *http.Client
}

// New returns a Client; inner defaults to a fresh *http.Client with
// DefaultTimeout when nil.
func New(inner *http.Client) *Client {
	if inner == nil {
		inner = &http.Client{Timeout: DefaultTimeout}
	}

	return &Client{inner: inner}
}

// Do performs the request and rewrites resp.Body to a decompressing
// reader when Content-Encoding names gzip or br.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.inner.Do(req)
	if err != nil {
		return nil, err
	}

	reader, err := decompress(resp)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}

	resp.Body = wrapReadCloser(reader, resp.Body)

	return resp, nil
}

// UploadMultipart delegates to internal/upload.Multipart using this
// client as the transport.
func (c *Client) UploadMultipart(ctx context.Context, url string, headers map[string]string, field, filename string, data []byte) (map[string]any, error) {
	return upload.Multipart(ctx, c, url, headers, field, filename, data)
}

func decompress(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

// wrapReadCloser pairs a possibly-decompressed reader with the original
// body's Close, so callers keep closing exactly one thing.
type readCloser struct {
	io.Reader
	closer io.Closer
}

func (rc readCloser) Close() error { return rc.closer.Close() }

func wrapReadCloser(r io.Reader, closer io.Closer) io.ReadCloser {
	if rc, ok := r.(io.ReadCloser); ok && r == io.Reader(closer) {
		return rc
	}

	return readCloser{Reader: r, closer: closer}
}
