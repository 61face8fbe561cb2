// Package storage holds the media storage adapters used for profile
// images. The account service only ever sees the MediaStorage interface;
// the S3 implementation targets any S3-compatible bucket (AWS, MinIO).
package storage

import (
	"context"
	"io"
)

// MediaStorage stores uploaded media and returns a public URL for it.
type MediaStorage interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// MediaStorageFunc adapts an upload function to MediaStorage. Delete is a
// no-op; useful in tests.
type MediaStorageFunc func(ctx context.Context, key, contentType string, body io.Reader) (string, error)

func (f MediaStorageFunc) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	return f(ctx, key, contentType, body)
}

func (f MediaStorageFunc) Delete(context.Context, string) error {
	return nil
}
