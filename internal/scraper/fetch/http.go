package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"car-advisor/internal/scraper/workers"
)

// maxBodyBytes caps marketplace responses
const maxBodyBytes = 8 << 20

// PageFetcher downloads the HTML of a page
type PageFetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
	Name() string
}

// StatusError reports a non-2xx marketplace response
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// NewHTTPClient builds a client with its own cookie jar, so every marketplace
// session keeps separate cookies
func NewHTTPClient(timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Timeout: timeout,
		Jar:     jar,
	}
}

// HTTPFetcher performs rate-limited GET requests with browser-like headers
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	limiter   *workers.RateLimiter
	headers   map[string]string
}

// NewHTTPFetcher creates a fetcher. limiter may be nil.
func NewHTTPFetcher(client *http.Client, userAgent string, limiter *workers.RateLimiter) *HTTPFetcher {
	return &HTTPFetcher{
		client:    client,
		userAgent: userAgent,
		limiter:   limiter,
		headers: map[string]string{
			"Accept-Language": "cs-CZ,cs;q=0.9,en;q=0.8",
		},
	}
}

// Name identifies the fetcher in logs
func (f *HTTPFetcher) Name() string {
	return "http"
}

// Client exposes the underlying HTTP client, including its cookie jar
func (f *HTTPFetcher) Client() *http.Client {
	return f.client
}

// SetHeader adds a header sent with every request
func (f *HTTPFetcher) SetHeader(key, value string) {
	f.headers[key] = value
}

// Get downloads url and returns the body of a 2xx response
func (f *HTTPFetcher) Get(ctx context.Context, url, accept string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, url); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.recordFailure(ctx, url, err)
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		f.recordFailure(ctx, url, err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{URL: url, StatusCode: resp.StatusCode}
		// a missing listing says nothing about the portal's health
		if resp.StatusCode != http.StatusNotFound {
			f.recordFailure(ctx, url, statusErr)
		}
		return nil, statusErr
	}

	if f.limiter != nil {
		f.limiter.RecordSuccess(url)
	}
	return body, nil
}

// GetJSON downloads url and decodes the JSON body into v
func (f *HTTPFetcher) GetJSON(ctx context.Context, url string, v interface{}) error {
	body, err := f.Get(ctx, url, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode JSON from %s: %w", url, err)
	}
	return nil
}

// FetchHTML downloads url as text
func (f *HTTPFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	body, err := f.Get(ctx, url, "text/html,application/xhtml+xml")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (f *HTTPFetcher) recordFailure(ctx context.Context, url string, err error) {
	// cancelled requests are not the portal's fault
	if f.limiter == nil || ctx.Err() != nil {
		return
	}
	f.limiter.RecordFailure(url, err)
}
