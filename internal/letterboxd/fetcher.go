package letterboxd

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"
)

// FetchError reports a transport failure or non-success status from the
// upstream site. Context cancellation is surfaced as the context error, not
// as a FetchError.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("letterboxd: fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("letterboxd: fetch %s: status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports markup or JSON that could not be interpreted at all.
// Field-level oddities degrade silently; this is only for unusable payloads.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("letterboxd: parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Client defines the contract for fetching a page body from the site.
type Client interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher implements Client over HTTP with a process-wide cap on
// concurrent outbound requests. Callers block in Fetch until a slot frees.
type HTTPFetcher struct {
	client *http.Client
	slots  *semaphore.Weighted
	logger *log.Logger
}

// NewHTTPFetcher constructs a fetcher allowing at most concurrency in-flight
// requests across every scrape and enrichment sharing it.
func NewHTTPFetcher(concurrency int64, timeout time.Duration, logger *log.Logger) *HTTPFetcher {
	if logger == nil {
		logger = log.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		slots:  semaphore.NewWeighted(concurrency),
		logger: logger,
	}
}

// Fetch retrieves the raw body at url. There is no retry: transport failures
// and non-2xx statuses surface immediately as *FetchError and the caller
// decides whether to abort or skip.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := f.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer f.slots.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "text/html,application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &FetchError{URL: url, Err: err}
	}
	return string(body), nil
}
