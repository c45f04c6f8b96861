package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// maxFeedSize caps the catalog document read from any source
const maxFeedSize = 32 << 20

// Fetcher retrieves the raw catalog feed document
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
	Source() string
}

// HTTPFetcher downloads the feed with a GET request
type HTTPFetcher struct {
	url        string
	httpClient *http.Client
}

// NewHTTPFetcher creates a fetcher for url; timeout bounds the whole request
func NewHTTPFetcher(url string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithTransport replaces the HTTP transport
func (f *HTTPFetcher) WithTransport(transport http.RoundTripper) *HTTPFetcher {
	f.httpClient.Transport = transport
	return f
}

// Source returns the feed URL
func (f *HTTPFetcher) Source() string {
	return f.url
}

// Fetch performs the request. Non-2xx responses become a FetchError carrying the status.
func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, &FetchError{Source: f.url, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Source: f.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{Source: f.url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, &FetchError{Source: f.url, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	return body, nil
}

// FileFetcher reads the feed from the local filesystem
type FileFetcher struct {
	path string
}

// NewFileFetcher creates a fetcher for path
func NewFileFetcher(path string) *FileFetcher {
	return &FileFetcher{path: path}
}

// Source returns the feed path
func (f *FileFetcher) Source() string {
	return f.path
}

// Fetch reads the file
func (f *FileFetcher) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Source: f.path, Err: err}
	}

	file, err := os.Open(f.path)
	if err != nil {
		return nil, &FetchError{Source: f.path, Err: err}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxFeedSize))
	if err != nil {
		return nil, &FetchError{Source: f.path, Err: fmt.Errorf("failed to read catalog file: %w", err)}
	}
	return data, nil
}

// NewFetcher picks an HTTP fetcher for http(s) URLs and a file fetcher otherwise
func NewFetcher(source string, timeout time.Duration) Fetcher {
	lower := strings.ToLower(source)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return NewHTTPFetcher(source, timeout)
	}
	return NewFileFetcher(strings.TrimPrefix(source, "file://"))
}
