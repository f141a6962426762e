// Package blobstore defines the key/value store that snapshots and images are
// written to. Keys are path-like strings; List returns keys in ascending
// lexicographic order so callers can pick the latest timestamped key.
package blobstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a concrete backend.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverS3       Driver = "s3"
	DriverPostgres Driver = "postgres"
)

var ErrNotFound = errors.New("blob not found")

type PutOptions struct {
	ContentType string
}

type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is implemented by every backend. Put overwrites an existing key.
// Get and Delete return an error wrapping ErrNotFound for a missing key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// ReadAll fetches key and returns its full content.
func ReadAll(ctx context.Context, s Store, key string) ([]byte, Info, error) {
	info, rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, Info{}, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, Info{}, err
	}
	return data, info, nil
}
