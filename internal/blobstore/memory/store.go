// Package memory implements an in-process blob store, used by tests and by
// STORE_DRIVER=memory for throwaway sessions.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vbonduro/renobudget/internal/blobstore"
)

type entry struct {
	info blobstore.Info
	data []byte
}

type Store struct {
	mu   sync.RWMutex
	objs map[string]entry
}

func New() *Store { return &Store{objs: make(map[string]entry)} }

func (s *Store) Driver() blobstore.Driver { return blobstore.DriverMemory }

func (s *Store) Put(_ context.Context, key string, r io.Reader, opts blobstore.PutOptions) (blobstore.Info, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return blobstore.Info{}, fmt.Errorf("failed to read blob %s: %w", key, err)
	}

	info := blobstore.Info{Key: key, Size: int64(len(b)), ContentType: opts.ContentType, LastModified: time.Now().UTC()}

	s.mu.Lock()
	s.objs[key] = entry{info: info, data: b}
	s.mu.Unlock()
	return info, nil
}

func (s *Store) Get(_ context.Context, key string) (blobstore.Info, io.ReadCloser, error) {
	s.mu.RLock()
	obj, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return blobstore.Info{}, nil, fmt.Errorf("%w: %s", blobstore.ErrNotFound, key)
	}
	return obj.info, io.NopCloser(bytes.NewReader(bytes.Clone(obj.data))), nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objs[key]; !ok {
		return fmt.Errorf("%w: %s", blobstore.ErrNotFound, key)
	}
	delete(s.objs, key)
	return nil
}

func (s *Store) List(_ context.Context, prefix string) ([]blobstore.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]blobstore.Info, 0, len(s.objs))
	for k, v := range s.objs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, v.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
