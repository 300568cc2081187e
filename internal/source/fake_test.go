package source

import (
	"context"

	"github.com/sells-group/pharma-enrich/internal/fetcher"
	"github.com/sells-group/pharma-enrich/internal/resilience"
)

// fakeFetcher serves canned bodies by URL; unknown URLs return 404.
type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) Get(_ context.Context, rawURL string) (*fetcher.Response, error) {
	f.calls = append(f.calls, rawURL)
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, resilience.HTTPStatusError(rawURL, 404)
	}
	return &fetcher.Response{URL: rawURL, StatusCode: 200, Body: []byte(body)}, nil
}
