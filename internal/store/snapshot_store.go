package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/vbonduro/renobudget/internal/blobstore"
)

// SnapshotStore is the sqlite blob store backend.
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Driver() blobstore.Driver { return blobstore.DriverSQLite }

func (s *SnapshotStore) Put(ctx context.Context, key string, r io.Reader, opts blobstore.PutOptions) (blobstore.Info, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return blobstore.Info{}, fmt.Errorf("failed to read snapshot content: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, content, content_type) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			content = excluded.content,
			content_type = excluded.content_type,
			updated_at = CURRENT_TIMESTAMP
	`, key, content, opts.ContentType)
	if err != nil {
		return blobstore.Info{}, fmt.Errorf("failed to write snapshot: %w", err)
	}

	return s.head(ctx, key)
}

func (s *SnapshotStore) head(ctx context.Context, key string) (blobstore.Info, error) {
	var info blobstore.Info
	err := s.db.QueryRowContext(ctx, `
		SELECT key, length(content), content_type, updated_at FROM snapshots WHERE key = ?
	`, key).Scan(&info.Key, &info.Size, &info.ContentType, &info.LastModified)

	if err == sql.ErrNoRows {
		return blobstore.Info{}, fmt.Errorf("%w: %s", blobstore.ErrNotFound, key)
	}
	if err != nil {
		return blobstore.Info{}, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return info, nil
}

func (s *SnapshotStore) Get(ctx context.Context, key string) (blobstore.Info, io.ReadCloser, error) {
	var (
		info    blobstore.Info
		content []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT key, content, content_type, updated_at FROM snapshots WHERE key = ?
	`, key).Scan(&info.Key, &content, &info.ContentType, &info.LastModified)

	if err == sql.ErrNoRows {
		return blobstore.Info{}, nil, fmt.Errorf("%w: %s", blobstore.ErrNotFound, key)
	}
	if err != nil {
		return blobstore.Info{}, nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	info.Size = int64(len(content))
	return info, io.NopCloser(bytes.NewReader(content)), nil
}

func (s *SnapshotStore) Delete(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", blobstore.ErrNotFound, key)
	}

	return nil
}

func (s *SnapshotStore) List(ctx context.Context, prefix string) ([]blobstore.Info, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, length(content), content_type, updated_at FROM snapshots
		WHERE substr(key, 1, length(?)) = ?
		ORDER BY key ASC
	`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var infos []blobstore.Info
	for rows.Next() {
		var info blobstore.Info
		if err := rows.Scan(&info.Key, &info.Size, &info.ContentType, &info.LastModified); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return infos, nil
}
