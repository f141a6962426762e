package store

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/renobudget/internal/blobstore"
	"github.com/vbonduro/renobudget/internal/db"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, d.Close()) })
	return d
}

func TestSnapshotStorePutAndGet(t *testing.T) {
	s := NewSnapshotStore(openTestDB(t))
	ctx := context.Background()

	info, err := s.Put(ctx, "kitchen/MACHINE_MADE_kitchen_items_25.01.02.03.04.05", strings.NewReader(`[{"id":"1"}]`),
		blobstore.PutOptions{ContentType: "application/json"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), info.Size)
	assert.False(t, info.LastModified.IsZero())

	got, rc, err := s.Get(ctx, info.Key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1"}]`, string(data))
	assert.Equal(t, "application/json", got.ContentType)
}

func TestSnapshotStorePutOverwrites(t *testing.T) {
	s := NewSnapshotStore(openTestDB(t))
	ctx := context.Background()

	_, err := s.Put(ctx, "k", strings.NewReader("old"), blobstore.PutOptions{})
	require.NoError(t, err)
	_, err = s.Put(ctx, "k", strings.NewReader("newer"), blobstore.PutOptions{})
	require.NoError(t, err)

	data, _, err := blobstore.ReadAll(ctx, s, "k")
	require.NoError(t, err)
	assert.Equal(t, "newer", string(data))
}

func TestSnapshotStoreListByPrefix(t *testing.T) {
	s := NewSnapshotStore(openTestDB(t))
	ctx := context.Background()

	keys := []string{
		"kitchen/MACHINE_MADE_kitchen_items_25.01.02.03.04.06",
		"kitchen/MACHINE_MADE_kitchen_items_25.01.02.03.04.05",
		"kitchen/MACHINE_MADE_kitchen_chat_25.01.02.03.04.05",
		"kitchenette/MACHINE_MADE_kitchenette_items_25.01.02.03.04.05",
	}
	for _, k := range keys {
		_, err := s.Put(ctx, k, strings.NewReader("x"), blobstore.PutOptions{})
		require.NoError(t, err)
	}

	infos, err := s.List(ctx, "kitchen/MACHINE_MADE_kitchen_items_")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, keys[1], infos[0].Key)
	assert.Equal(t, keys[0], infos[1].Key)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSnapshotStoreNotFound(t *testing.T) {
	s := NewSnapshotStore(openTestDB(t))
	ctx := context.Background()

	_, _, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	err = s.Delete(ctx, "missing")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestSnapshotStoreDelete(t *testing.T) {
	s := NewSnapshotStore(openTestDB(t))
	ctx := context.Background()

	_, err := s.Put(ctx, "k", strings.NewReader("x"), blobstore.PutOptions{})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "k"))

	infos, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, infos)
}
