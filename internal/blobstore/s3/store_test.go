package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/renobudget/internal/blobstore"
)

// fakeS3 serves the subset of the S3 REST API the store uses, keyed by
// path-style object key.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	// pageSize forces ListObjectsV2 pagination when > 0.
	pageSize int
}

type fakeObject struct {
	body        []byte
	contentType string
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return f.list(req), nil
	}

	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		f.objects[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type")}
		return respond(http.StatusOK, nil, http.Header{"ETag": {`"etag"`}}), nil
	case http.MethodHead, http.MethodGet:
		obj, ok := f.objects[key]
		if !ok {
			return respond(http.StatusNotFound, nil, http.Header{}), nil
		}
		h := http.Header{
			"Content-Length": {fmt.Sprintf("%d", len(obj.body))},
			"Content-Type":   {obj.contentType},
			"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
		}
		if req.Method == http.MethodHead {
			return respond(http.StatusOK, nil, h), nil
		}
		return respond(http.StatusOK, obj.body, h), nil
	case http.MethodDelete:
		delete(f.objects, key)
		return respond(http.StatusNoContent, nil, http.Header{}), nil
	}
	return respond(http.StatusNotImplemented, nil, http.Header{}), nil
}

func (f *fakeS3) list(req *http.Request) *http.Response {
	prefix := req.URL.Query().Get("prefix")
	token := req.URL.Query().Get("continuation-token")

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if token != "" {
		_, _ = fmt.Sscanf(token, "%d", &start)
	}
	end := len(keys)
	truncated := false
	if f.pageSize > 0 && start+f.pageSize < len(keys) {
		end = start + f.pageSize
		truncated = true
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult>`)
	fmt.Fprintf(&b, "<IsTruncated>%t</IsTruncated>", truncated)
	if truncated {
		fmt.Fprintf(&b, "<NextContinuationToken>%d</NextContinuationToken>", end)
	}
	// Return the page in reverse so the store's own sort is exercised.
	for i := end - 1; i >= start; i-- {
		k := keys[i]
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2025-01-01T00:00:00Z</LastModified></Contents>",
			k, len(f.objects[k].body))
	}
	b.WriteString("</ListBucketResult>")
	return respond(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}})
}

func respond(status int, body []byte, h http.Header) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body)), Header: h}
}

func newTestStore(t *testing.T, fake *fakeS3) *Store {
	t.Helper()
	s, err := New(context.Background(), Config{
		Bucket:          "renobudget",
		Region:          "us-east-1",
		Endpoint:        "https://s3.test.local",
		PathStyle:       true,
		AccessKeyID:     "AKIATEST",
		SecretAccessKey: "secret",
		HTTPClient:      &http.Client{Transport: fake},
	})
	require.NoError(t, err)
	return s
}

func TestS3PutGet(t *testing.T) {
	fake := &fakeS3{objects: map[string]fakeObject{}}
	s := newTestStore(t, fake)
	ctx := context.Background()

	_, err := s.Put(ctx, "kitchen/MACHINE_MADE_kitchen_items_25.01.01.00.00.00", strings.NewReader(`[]`),
		blobstore.PutOptions{ContentType: "application/json"})
	require.NoError(t, err)

	data, info, err := blobstore.ReadAll(ctx, s, "kitchen/MACHINE_MADE_kitchen_items_25.01.01.00.00.00")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
	assert.Equal(t, "application/json", info.ContentType)
}

func TestS3ListSortedAcrossPages(t *testing.T) {
	fake := &fakeS3{objects: map[string]fakeObject{}, pageSize: 2}
	s := newTestStore(t, fake)
	ctx := context.Background()

	for _, k := range []string{"bedroom/c", "bedroom/a", "bedroom/d", "bedroom/b", "kitchen/a"} {
		_, err := s.Put(ctx, k, strings.NewReader(k), blobstore.PutOptions{})
		require.NoError(t, err)
	}

	infos, err := s.List(ctx, "bedroom/")
	require.NoError(t, err)
	require.Len(t, infos, 4)
	for i, want := range []string{"bedroom/a", "bedroom/b", "bedroom/c", "bedroom/d"} {
		assert.Equal(t, want, infos[i].Key)
	}
}

func TestS3NotFound(t *testing.T) {
	fake := &fakeS3{objects: map[string]fakeObject{}}
	s := newTestStore(t, fake)
	ctx := context.Background()

	_, _, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "missing"), blobstore.ErrNotFound)
}

func TestS3Delete(t *testing.T) {
	fake := &fakeS3{objects: map[string]fakeObject{}}
	s := newTestStore(t, fake)
	ctx := context.Background()

	_, err := s.Put(ctx, "k", strings.NewReader("v"), blobstore.PutOptions{})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "k"))

	_, _, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}
