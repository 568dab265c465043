package objectstore

import (
	"context"
	"io"
)

// ObjectClient defines interactions with S3 or any object storage.
// It's abstract so AWS can be swapped for MinIO, GCP, etc. easily.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, key string) error
	GetFile(ctx context.Context, key string) ([]byte, error)

	GetObjectReader(ctx context.Context, key string) (io.ReadCloser, error)
}
