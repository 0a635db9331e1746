package blob

import (
	"context"
	"fmt"
	"os"

	fsstore "dredge/internal/infra/blob/fs"
	memorystore "dredge/internal/infra/blob/memory"
	infraS3 "dredge/internal/infra/blob/s3"
)

// Open selects a Store using environment variables.
//
//	DREDGE_BLOB_DRIVER: fs|s3|memory (default fs)
//	DREDGE_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	S3 variables are documented in internal/infra/blob/s3.
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("DREDGE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("DREDGE_BLOB_FS_ROOT"))
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewFilesystem returns a store over a local directory.
func NewFilesystem(root string) (Store, error) {
	s, err := fsstore.New(root)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewMemory returns an in-memory store.
func NewMemory() Store { return memorystore.New() }

// S3Config configures the S3 backend.
type S3Config = infraS3.Config

// NewS3 constructs an S3-backed store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	s, err := infraS3.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// OpenS3FromEnv constructs an S3 store from DREDGE_BLOB_S3_* variables.
func OpenS3FromEnv(ctx context.Context) (Store, error) {
	s, err := infraS3.OpenFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewMockS3ForTests exposes the fake S3 endpoint for cross-package tests.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
