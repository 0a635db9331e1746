// Package core defines the blob store contract that pairwise test-result files
// are read from and imported into.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Driver identifies a blob backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local directory tree (default)
	DriverS3         Driver = "s3"     // S3 / MinIO compatible
	DriverMemory     Driver = "memory" // process memory (tests)
)

// PutOptions carries optional attributes of a stored blob.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Info describes a stored blob.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is a minimal S3-like object store keyed by slash-separated paths.
type Store interface {
	// Put stores a new blob and fails with ErrExists if key is taken.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	// Get opens a blob. Missing keys report ErrNotFound.
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	// Head returns metadata only.
	Head(ctx context.Context, key string) (Info, error)
	// List returns the blobs whose key has prefix, ascending by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

var (
	// ErrNotFound matches os.ErrNotExist through errors.Is.
	ErrNotFound = fmt.Errorf("blob not found: %w", os.ErrNotExist)
	// ErrExists is returned by Put for an occupied key.
	ErrExists = errors.New("blob already exists")
)

// NotFound wraps ErrNotFound with the missing key.
func NotFound(key string) error { return fmt.Errorf("%s: %w", key, ErrNotFound) }

// Exists wraps ErrExists with the occupied key.
func Exists(key string) error { return fmt.Errorf("%s: %w", key, ErrExists) }
