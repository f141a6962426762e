package local

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/renobudget/internal/imagestore"
)

func TestLocalImageStoreSaveAndGet(t *testing.T) {
	tmpdir := t.TempDir()
	store, err := NewLocalImageStore(tmpdir)
	require.NoError(t, err)

	ctx := context.Background()
	imageData := []byte("fake png data")
	key := "kitchen/images/sink_1700000000000_a.png"

	require.NoError(t, store.Save(ctx, key, bytes.NewReader(imageData)))
	_, err = os.Stat(filepath.Join(tmpdir, "kitchen", "images", "sink_1700000000000_a.png"))
	require.NoError(t, err)

	reader, mimeType, err := store.Get(ctx, key)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "image/png", mimeType)

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, imageData, data)
}

func TestLocalImageStoreOverwrite(t *testing.T) {
	store, err := NewLocalImageStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a.jpg", bytes.NewReader([]byte("one"))))
	require.NoError(t, store.Save(ctx, "a.jpg", bytes.NewReader([]byte("two"))))

	reader, _, err := store.Get(ctx, "a.jpg")
	require.NoError(t, err)
	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestLocalImageStoreDelete(t *testing.T) {
	store, err := NewLocalImageStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "bedroom/images/x.gif", bytes.NewReader([]byte("GIF89a"))))
	require.NoError(t, store.Delete(ctx, "bedroom/images/x.gif"))

	_, _, err = store.Get(ctx, "bedroom/images/x.gif")
	assert.ErrorIs(t, err, imagestore.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "bedroom/images/x.gif"), imagestore.ErrNotFound)
}

func TestLocalImageStorePathTraversal(t *testing.T) {
	store, err := NewLocalImageStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = store.Get(ctx, "../../etc/passwd")
	assert.Error(t, err)
	assert.Error(t, store.Save(ctx, "../escape.png", bytes.NewReader(nil)))
}
