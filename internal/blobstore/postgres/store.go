// Package postgres implements the blob store on a Postgres table through the
// pgx database/sql driver.
package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/vbonduro/renobudget/internal/blobstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS renobudget_snapshots (
	key          TEXT PRIMARY KEY,
	content      BYTEA NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type Store struct {
	db *sql.DB
}

// Open connects to dsn and creates the snapshot table if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create snapshot table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Driver() blobstore.Driver { return blobstore.DriverPostgres }

func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts blobstore.PutOptions) (blobstore.Info, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return blobstore.Info{}, fmt.Errorf("failed to read snapshot content: %w", err)
	}

	info := blobstore.Info{Key: key, Size: int64(len(content)), ContentType: opts.ContentType}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO renobudget_snapshots (key, content, content_type) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			content = EXCLUDED.content,
			content_type = EXCLUDED.content_type,
			updated_at = now()
		RETURNING updated_at
	`, key, content, opts.ContentType).Scan(&info.LastModified)
	if err != nil {
		return blobstore.Info{}, fmt.Errorf("failed to write snapshot: %w", err)
	}
	return info, nil
}

func (s *Store) Get(ctx context.Context, key string) (blobstore.Info, io.ReadCloser, error) {
	var (
		info    blobstore.Info
		content []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT key, content, content_type, updated_at FROM renobudget_snapshots WHERE key = $1
	`, key).Scan(&info.Key, &content, &info.ContentType, &info.LastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return blobstore.Info{}, nil, fmt.Errorf("%w: %s", blobstore.ErrNotFound, key)
	}
	if err != nil {
		return blobstore.Info{}, nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	info.Size = int64(len(content))
	return info, io.NopCloser(bytes.NewReader(content)), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM renobudget_snapshots WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", blobstore.ErrNotFound, key)
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]blobstore.Info, error) {
	// COLLATE "C" gives byte order, matching the other backends.
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, octet_length(content), content_type, updated_at FROM renobudget_snapshots
		WHERE left(key, char_length($1)) = $1
		ORDER BY key COLLATE "C" ASC
	`, prefix)
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
