// Package diag records operation failures. Each failure is logged, stored,
// and mirrored as a text block. Recording is best effort and never panics
// or returns an error to the caller.
package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vbonduro/renobudget/internal/domain"
	"github.com/vbonduro/renobudget/internal/metrics"
)

const separator = "----------------------------------------"

type Store interface {
	Create(ctx context.Context, d *domain.Diagnostic) error
	ListRecent(ctx context.Context, limit int) ([]*domain.Diagnostic, error)
}

type LogMirror interface {
	PostLog(ctx context.Context, text string) error
}

type Recorder struct {
	store  Store
	mirror LogMirror
	logger *slog.Logger
	now    func() time.Time
}

// New returns a recorder. store and mirror may be nil.
func New(store Store, mirror LogMirror, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, mirror: mirror, logger: logger, now: time.Now}
}

// Record notes that operation failed with err. A nil err is ignored.
func (r *Recorder) Record(ctx context.Context, operation string, err error, kv map[string]any) {
	if r == nil || err == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("failed to record diagnostic", "operation", operation, "panic", p)
		}
	}()

	d := &domain.Diagnostic{
		ID:        ulid.Make().String(),
		Operation: operation,
		Message:   err.Error(),
		Context:   kv,
		CreatedAt: r.now().UTC(),
	}

	attrs := []any{"operation", operation, "error", err, "diagnostic_id", d.ID}
	for k, v := range kv {
		attrs = append(attrs, k, v)
	}
	r.logger.Error("operation failed", attrs...)
	metrics.Diagnostics.WithLabelValues(operation).Inc()

	// Detach from the request so a cancelled client still gets its failure recorded.
	ctx = context.WithoutCancel(ctx)

	if r.store != nil {
		if serr := r.store.Create(ctx, d); serr != nil {
			r.logger.Warn("failed to store diagnostic", "diagnostic_id", d.ID, "error", serr)
		}
	}
	if r.mirror != nil {
		_ = r.mirror.PostLog(ctx, FormatBlock(d))
	}
}

// Recent returns up to limit stored diagnostics, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]*domain.Diagnostic, error) {
	if r == nil || r.store == nil {
		return nil, nil
	}
	return r.store.ListRecent(ctx, limit)
}

// FormatBlock renders d as a log block:
//
//	{timestamp} [ERROR:{operation}] {message}
//	Context: {json}
//	----------------------------------------
func FormatBlock(d *domain.Diagnostic) string {
	ctxJSON := []byte("{}")
	if len(d.Context) > 0 {
		if b, err := json.Marshal(d.Context); err == nil {
			ctxJSON = b
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [ERROR:%s] %s\n", d.CreatedAt.Format(time.RFC3339Nano), d.Operation, d.Message)
	fmt.Fprintf(&b, "Context: %s\n", ctxJSON)
	b.WriteString(separator)
	b.WriteString("\n\n")
	return b.String()
}
