package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vbonduro/renobudget/internal/domain"
)

// createdAtLayout matches SQLite's CURRENT_TIMESTAMP with fractional seconds.
const createdAtLayout = "2006-01-02 15:04:05.999999999"

type DiagnosticStore struct {
	db *sql.DB
}

func NewDiagnosticStore(db *sql.DB) *DiagnosticStore {
	return &DiagnosticStore{db: db}
}

// Create inserts d. A zero CreatedAt is stamped with the current time.
func (s *DiagnosticStore) Create(ctx context.Context, d *domain.Diagnostic) error {
	contextJSON := []byte("{}")
	if len(d.Context) > 0 {
		b, err := json.Marshal(d.Context)
		if err != nil {
			return fmt.Errorf("failed to encode diagnostic context: %w", err)
		}
		contextJSON = b
	}

	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO diagnostics (id, operation, message, context, created_at) VALUES (?, ?, ?, ?, ?)
	`, d.ID, d.Operation, d.Message, string(contextJSON), createdAt.UTC().Format(createdAtLayout))
	if err != nil {
		return fmt.Errorf("failed to create diagnostic: %w", err)
	}

	return nil
}

// ListRecent returns up to limit diagnostics, newest first.
func (s *DiagnosticStore) ListRecent(ctx context.Context, limit int) ([]*domain.Diagnostic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation, message, context, created_at FROM diagnostics
		ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list diagnostics: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var out []*domain.Diagnostic
	for rows.Next() {
		d := &domain.Diagnostic{}
		var contextJSON string
		if err := rows.Scan(&d.ID, &d.Operation, &d.Message, &contextJSON, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic: %w", err)
		}
		if err := json.Unmarshal([]byte(contextJSON), &d.Context); err != nil {
			slog.Warn("discarding unreadable diagnostic context", "id", d.ID, "error", err)
		}
		out = append(out, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating diagnostics: %w", err)
	}

	return out, nil
}
