// Package assistant defines the language model backends the chat client
// sends prompts to.
package assistant

import (
	"context"
	"errors"
	"net"

	"github.com/vbonduro/renobudget/internal/domain"
)

type Generator interface {
	// Generate sends prompt and returns the model's full reply text.
	// Failures are *domain.ChatError.
	Generate(ctx context.Context, prompt string) (string, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// TransportError tags a failed round trip as a timeout or a network error.
func TransportError(ctx context.Context, err error) *domain.ChatError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.ChatError{Kind: domain.ChatTimeout, Err: err}
	}
	return &domain.ChatError{Kind: domain.ChatNetwork, Err: err}
}
