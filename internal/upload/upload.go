// Package upload implements the multipart and inline-base64 halves of
// C8's upload policy (spec.md §4.8, §4.14's upload_file operation):
// getting a local file's bytes to a provider either as part of the
// request body or pre-uploaded to a provider endpoint.
package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/arrowhead-dev/llmbridge/internal/llmerr"
)

// Transport is the HTTP seam upload uses; *http.Client satisfies it
// directly, matching internal/adapter's Transport interface so callers
// can share one client.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// InlineBase64 renders data as the {mime_type, data} shape C5's payload
// normalizers expect for inline media content.
func InlineBase64(mime string, data []byte) map[string]any {
	return map[string]any{
		"mime_type": mime,
		"data":      base64.StdEncoding.EncodeToString(data),
	}
}

// Multipart performs a single multipart/form-data POST and decodes the
// JSON response body, per spec.md §4.14's
// upload_multipart(url, headers?, field, filename, bytes) -> json | transport_error.
func Multipart(ctx context.Context, transport Transport, url string, headers map[string]string, field, filename string, data []byte) (map[string]any, error) {
	var buf bytes.Buffer

	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, llmerr.Wrap(llmerr.KindSerialization, "failed to build multipart form", err)
	}

	if _, err := part.Write(data); err != nil {
		return nil, llmerr.Wrap(llmerr.KindSerialization, "failed to write multipart form field", err)
	}

	if err := w.Close(); err != nil {
		return nil, llmerr.Wrap(llmerr.KindSerialization, "failed to finalize multipart form", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, llmerr.Wrap(llmerr.KindConfiguration, "failed to build upload request", err)
	}

	req.Header.Set("Content-Type", w.FormDataContentType())

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := transport.Do(req)
	if err != nil {
		return nil, llmerr.Wrap(llmerr.KindNetwork, "upload request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llmerr.Wrap(llmerr.KindNetwork, "failed to read upload response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, llmerr.Provider(resp.StatusCode, string(body))
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, llmerr.Wrap(llmerr.KindParse, "failed to parse upload response", err)
	}

	return decoded, nil
}

// TooLargeError reports a local file that meets or exceeds a provider's
// inline-upload threshold and has no pre-uploaded URL to fall back to.
func TooLargeError(localName string, size, threshold int64) error {
	return llmerr.New(llmerr.KindRequestTooLarge,
		fmt.Sprintf("local file %q is %d bytes, at or above the %d byte inline threshold; upload it first via UploadFile and reference its URL", localName, size, threshold))
}
