package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vbonduro/renobudget/internal/assistant"
	"github.com/vbonduro/renobudget/internal/domain"
)

const DefaultModel = "llama3.2"

type Generator struct {
	host   string
	model  string
	client *http.Client
}

func NewGenerator(host, model string) *Generator {
	if model == "" {
		model = DefaultModel
	}
	return &Generator{
		host:   host,
		model:  model,
		client: &http.Client{},
	}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  g.model,
		"prompt": prompt,
		"stream": false,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.host+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", assistant.TransportError(ctx, fmt.Errorf("failed to call ollama: %w", err))
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close ollama response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", &domain.ChatError{Kind: domain.ChatStatus, Err: fmt.Errorf("ollama returned status %d", resp.StatusCode)}
	}

	var respBody struct {
		Response *string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		if ctx.Err() != nil {
			return "", assistant.TransportError(ctx, err)
		}
		return "", &domain.ChatError{Kind: domain.ChatDecode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if respBody.Response == nil {
		return "", &domain.ChatError{Kind: domain.ChatDecode, Err: fmt.Errorf("response field missing")}
	}

	return *respBody.Response, nil
}

// Ping lists the installed models, which is cheap and needs no model loaded.
func (g *Generator) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.host+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return assistant.TransportError(ctx, fmt.Errorf("failed to call ollama: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &domain.ChatError{Kind: domain.ChatStatus, Err: fmt.Errorf("ollama returned status %d", resp.StatusCode)}
	}
	return nil
}
