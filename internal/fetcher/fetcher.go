// Package fetcher retrieves source documents over HTTP and parses streamed CSV and JSON.
package fetcher

import "context"

// Fetcher retrieves documents for source adapters.
type Fetcher interface {
	// Get fetches rawURL and returns the full response. Non-2xx statuses are
	// returned as errors classified by the resilience package.
	Get(ctx context.Context, rawURL string) (*Response, error)
}

// Response is a fetched document.
type Response struct {
	// URL is the final URL after redirects.
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}
