package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"dredge/internal/blob"
	"dredge/internal/core"
)

// Blob reads locations from a blob store. The location's path, with any
// leading "./" or "/" removed, is the key.
type Blob struct {
	store blob.Store
}

// NewBlob returns a fetcher over store.
func NewBlob(store blob.Store) *Blob { return &Blob{store: store} }

// Key maps a location to the blob key Fetch would read.
func Key(location string) (string, error) {
	path := location
	if u, err := url.Parse(location); err == nil {
		path = u.Path
	} else if strings.Contains(location, "://") {
		return "", fmt.Errorf("parse location: %w", err)
	}
	for {
		switch {
		case strings.HasPrefix(path, "./"):
			path = path[2:]
		case strings.HasPrefix(path, "/"):
			path = path[1:]
		default:
			if path == "" {
				return "", fmt.Errorf("location %q has no path", location)
			}
			return path, nil
		}
	}
}

// Fetch implements core.Fetcher.
func (f *Blob) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	key, err := Key(location)
	if err != nil {
		return nil, err
	}
	_, rc, err := f.store.Get(ctx, key)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rc, nil
}

var (
	_ core.Fetcher = (*HTTP)(nil)
	_ core.Fetcher = (*Blob)(nil)
)
