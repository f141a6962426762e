// Package imagestore holds the image files received by the upload endpoint
// that mirrors item images from other instances.
package imagestore

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("image not found")

type ImageStore interface {
	// Save writes r under the relative path key, replacing any existing file.
	Save(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}
