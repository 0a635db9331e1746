// Package fetch implements core.Fetcher over HTTP and blob stores.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"dredge/internal/core"
)

// HTTP fetches test-result files with GET requests. Any 2xx status is a
// success; 404 and 410 map to core.ErrNotFound.
type HTTP struct {
	client *http.Client
	base   *url.URL
}

// NewHTTP returns a fetcher using client (http.DefaultClient when nil).
// Relative locations resolve against base when it is non-empty.
func NewHTTP(client *http.Client, base string) (*HTTP, error) {
	if client == nil {
		client = http.DefaultClient
	}
	f := &HTTP{client: client}
	if base != "" {
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		f.base = u
	}
	return f, nil
}

// Fetch implements core.Fetcher.
func (f *HTTP) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse location: %w", err)
	}
	if f.base != nil {
		u = f.base.ResolveReference(u)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("location %q is not absolute and no base url is set", location)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.Body, nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return nil, fmt.Errorf("%s: %w", u, core.ErrNotFound)
	default:
		return nil, fmt.Errorf("%s: unexpected status %s", u, resp.Status)
	}
}
