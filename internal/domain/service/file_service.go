package service

import (
	"context"
	"io"
)

// BlobUploadService stores attachment bytes and hands back a durable,
// publicly fetchable URL.
type BlobUploadService interface {
	Upload(ctx context.Context, content io.Reader, contentType, objectPath string) (string, error)
	Delete(ctx context.Context, fileURL string) error
	Close() error
}
