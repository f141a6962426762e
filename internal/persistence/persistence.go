// Package persistence stores snapshots and images in the blob store and
// mirrors each write to the remote server. The blob store is authoritative;
// mirror failures are logged and never returned.
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/vbonduro/renobudget/internal/blobstore"
	"github.com/vbonduro/renobudget/internal/domain"
	"github.com/vbonduro/renobudget/internal/metrics"
	"github.com/vbonduro/renobudget/internal/validation"
)

// TimestampLayout is YY.MM.DD.HH.MM.SS; it sorts lexicographically in time order.
const TimestampLayout = "06.01.02.15.04.05"

// Mirror is the subset of mirror.Client that Adapter requires.
type Mirror interface {
	PostLog(ctx context.Context, text string) error
	PostImage(ctx context.Context, dataURI, path string) error
}

type Adapter struct {
	store   blobstore.Store
	mirror  Mirror
	samples SampleSource
	logger  *slog.Logger
	now     func() time.Time
}

// New builds an Adapter over store. mirror may be nil, in which case writes
// are not mirrored.
func New(store blobstore.Store, mirror Mirror, samples SampleSource, logger *slog.Logger) *Adapter {
	return &Adapter{
		store:   store,
		mirror:  mirror,
		samples: samples,
		logger:  logger,
		now:     time.Now,
	}
}

// SnapshotPrefix is the key prefix shared by every snapshot of kind in room.
func SnapshotPrefix(room, kind string) string {
	return fmt.Sprintf("%s/MACHINE_MADE_%s_%s_", room, room, kind)
}

// Write stores content under key and mirrors a log line describing the write.
func (a *Adapter) Write(ctx context.Context, key string, content []byte, contentType string) error {
	if _, err := a.store.Put(ctx, key, bytes.NewReader(content), blobstore.PutOptions{ContentType: contentType}); err != nil {
		return &domain.PersistenceError{Op: "write " + key, Err: err}
	}

	if a.mirror != nil {
		line := fmt.Sprintf("%s [WRITE] %s (%d bytes)\n", a.now().UTC().Format(time.RFC3339), key, len(content))
		// Failures are logged and counted by the mirror.
		_ = a.mirror.PostLog(ctx, line)
	}
	return nil
}

// WriteSnapshot serializes v as indented JSON under a new timestamped key
// and returns that key.
func (a *Adapter) WriteSnapshot(ctx context.Context, room, kind string, v any) (string, error) {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		metrics.SnapshotWrites.WithLabelValues(kind, "error").Inc()
		return "", &domain.PersistenceError{Op: "encode " + kind + " snapshot", Err: err}
	}

	// UTC keeps keys increasing across daylight saving changes.
	key := SnapshotPrefix(room, kind) + a.now().UTC().Format(TimestampLayout)
	err = a.Write(ctx, key, content, "application/json")
	metrics.SnapshotWrites.WithLabelValues(kind, metrics.Outcome(err)).Inc()
	if err != nil {
		return "", err
	}

	a.logger.Debug("snapshot written", "room", room, "kind", kind, "key", key, "bytes", len(content))
	return key, nil
}

// ReadLatestSnapshot decodes the lexicographically greatest snapshot of kind
// in room into v and returns its key. It returns "" and leaves v untouched
// when no snapshot exists.
func (a *Adapter) ReadLatestSnapshot(ctx context.Context, room, kind string, v any) (string, error) {
	infos, err := a.store.List(ctx, SnapshotPrefix(room, kind))
	if err != nil {
		return "", &domain.PersistenceError{Op: "list " + kind + " snapshots", Err: err}
	}
	if len(infos) == 0 {
		return "", nil
	}

	latest := infos[0].Key
	for _, info := range infos[1:] {
		if info.Key > latest {
			latest = info.Key
		}
	}

	data, _, err := blobstore.ReadAll(ctx, a.store, latest)
	if err != nil {
		return "", &domain.PersistenceError{Op: "read " + latest, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return "", &domain.PersistenceError{Op: "decode " + latest, Err: err}
	}
	return latest, nil
}

type SnapshotInfo struct {
	Key          string    `json:"key"`
	Kind         string    `json:"kind"`
	Size         int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
}

// ListSnapshots returns every machine-made snapshot for room in key order.
// Other keys under the room prefix, such as images, are skipped.
func (a *Adapter) ListSnapshots(ctx context.Context, room string) ([]SnapshotInfo, error) {
	infos, err := a.store.List(ctx, room+"/MACHINE_MADE_")
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list snapshots", Err: err}
	}

	out := make([]SnapshotInfo, 0, len(infos))
	for _, info := range infos {
		r, kind, ok := validation.ValidateSnapshotName(path.Base(info.Key))
		if !ok || r != room {
			continue
		}
		out = append(out, SnapshotInfo{Key: info.Key, Kind: kind, Size: info.Size, LastModified: info.LastModified})
	}
	return out, nil
}

// WriteImage stores img as a data URI under
// {room}/images/{type}_{unixMillis}_{filename} and mirrors it to the image
// endpoint. The returned key is valid even when the mirror fails.
func (a *Adapter) WriteImage(ctx context.Context, room, itemType string, img domain.Image) (string, error) {
	key := fmt.Sprintf("%s/images/%s_%d_%s", room, itemType, a.now().UnixMilli(), safeFilename(img.Filename))
	uri := EncodeDataURI(img.MIMEType, img.Data)

	if _, err := a.store.Put(ctx, key, strings.NewReader(uri), blobstore.PutOptions{ContentType: img.MIMEType}); err != nil {
		return "", &domain.PersistenceError{Op: "write image " + key, Err: err}
	}

	if a.mirror != nil {
		// Failures are logged and counted by the mirror.
		_ = a.mirror.PostImage(ctx, uri, key)
	}
	return key, nil
}

// ReadImage loads an image written by WriteImage.
func (a *Adapter) ReadImage(ctx context.Context, key string) (domain.Image, error) {
	data, _, err := blobstore.ReadAll(ctx, a.store, key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return domain.Image{}, err
		}
		return domain.Image{}, &domain.PersistenceError{Op: "read image " + key, Err: err}
	}

	mime, raw, err := DecodeDataURI(string(data))
	if err != nil {
		return domain.Image{}, &domain.PersistenceError{Op: "decode image " + key, Err: err}
	}
	return domain.Image{Filename: path.Base(key), MIMEType: mime, Data: raw}, nil
}

// DeleteImage removes a stored image. A missing image is not an error.
func (a *Adapter) DeleteImage(ctx context.Context, key string) error {
	if err := a.store.Delete(ctx, key); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return &domain.PersistenceError{Op: "delete image " + key, Err: err}
	}
	return nil
}

func safeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "image"
	}
	return strings.ReplaceAll(name, " ", "_")
}
