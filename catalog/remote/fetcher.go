package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dfryer1193/gocatalog/catalog/domain"
)

var _ domain.RemoteFetcher = (*HTTPFetcher)(nil)

const (
	DefaultTimeout  = 15 * time.Second
	DefaultMaxBytes = 10 << 20
)

// HTTPFetcher downloads remote images with a single GET per URL.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPFetcher creates a fetcher whose requests time out after timeout
// and whose response bodies may not exceed maxBytes. Non-positive values
// fall back to the defaults.
func NewHTTPFetcher(timeout time.Duration, maxBytes int64) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// Download fetches the body at rawURL. Every failure is returned as an
// ErrFetch error; nothing is retried.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, domain.FetchError(rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, domain.FetchError(rawURL, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return nil, domain.FetchError(rawURL, fmt.Errorf("missing host"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, domain.FetchError(rawURL, fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, domain.FetchError(rawURL, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.FetchError(rawURL, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	// read one byte past the limit to tell "exactly max" from "too large"
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, domain.FetchError(rawURL, fmt.Errorf("failed to read response body: %w", err))
	}
	if int64(len(body)) > f.maxBytes {
		return nil, domain.FetchError(rawURL, fmt.Errorf("response exceeds %d bytes", f.maxBytes))
	}

	return body, nil
}
