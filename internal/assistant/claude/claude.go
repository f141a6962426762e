package claude

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/vbonduro/renobudget/internal/assistant"
	"github.com/vbonduro/renobudget/internal/domain"
)

const DefaultModel = "claude-3-5-haiku-latest"

// maxTokens leaves room for a full cost breakdown with recommendations.
const maxTokens = 2048

type Generator struct {
	client *anthropic.Client
	model  string
}

func NewGenerator(apiKey, model string, opts ...anthropic.ClientOption) *Generator {
	if model == "" {
		model = DefaultModel
	}
	return &Generator{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
	}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(g.model),
		MaxTokens: maxTokens,
		Messages:  []anthropic.Message{anthropic.NewUserTextMessage(prompt)},
	})
	if err != nil {
		return "", classify(ctx, err)
	}
	if len(resp.Content) == 0 {
		return "", &domain.ChatError{Kind: domain.ChatDecode, Err: errors.New("claude returned no content")}
	}
	return resp.GetFirstContentText(), nil
}

// Ping sends a one-token request; the Messages API has no cheaper
// authenticated probe.
func (g *Generator) Ping(ctx context.Context) error {
	_, err := g.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(g.model),
		MaxTokens: 1,
		Messages:  []anthropic.Message{anthropic.NewUserTextMessage("ping")},
	})
	if err != nil {
		return classify(ctx, err)
	}
	return nil
}

func classify(ctx context.Context, err error) *domain.ChatError {
	var (
		urlErr *url.Error
		reqErr *anthropic.RequestError
		apiErr *anthropic.APIError
	)
	switch {
	case errors.As(err, &urlErr), ctx.Err() != nil:
		return assistant.TransportError(ctx, fmt.Errorf("failed to call claude: %w", err))
	case errors.As(err, &reqErr), errors.As(err, &apiErr):
		return &domain.ChatError{Kind: domain.ChatStatus, Err: fmt.Errorf("claude request failed: %w", err)}
	default:
		return &domain.ChatError{Kind: domain.ChatDecode, Err: fmt.Errorf("failed to decode claude response: %w", err)}
	}
}
