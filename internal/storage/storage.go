// Package storage provides staging of uploaded files and optional archival
// of processed voice samples.
// It defines the Storage interface (port) and implementations for local
// disk and S3 storage.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for upload staging and sample archival.
type Storage interface {
	// SaveTemp stages data under its sanitized base name and returns the
	// file path. The extension of name is preserved.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp reads a file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified staged files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadToS3 uploads data to S3 and returns the object URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
