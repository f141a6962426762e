// Package chat sends room-scoped questions to the language model and keeps
// each room's transcript. A transcript only grows by a complete
// question-and-reply pair.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vbonduro/renobudget/internal/assistant"
	"github.com/vbonduro/renobudget/internal/domain"
	"github.com/vbonduro/renobudget/internal/metrics"
)

const probeTimeout = 5 * time.Second

// Snapshotter is the subset of persistence.Adapter the chat client uses.
type Snapshotter interface {
	WriteSnapshot(ctx context.Context, room, kind string, v any) (string, error)
	ReadLatestSnapshot(ctx context.Context, room, kind string, v any) (string, error)
}

type Config struct {
	// Timeout bounds one model request. Zero means no timeout.
	Timeout time.Duration
	// RatePerSecond limits model requests across all rooms. Zero or less
	// disables the limit.
	RatePerSecond float64
}

type Client struct {
	gen     assistant.Generator
	store   Snapshotter
	logger  *slog.Logger
	timeout time.Duration
	limiter *rate.Limiter
	now     func() time.Time

	mu    sync.Mutex
	rooms map[string]*sync.Mutex
}

func New(gen assistant.Generator, store Snapshotter, cfg Config, logger *slog.Logger) *Client {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Client{
		gen:     gen,
		store:   store,
		logger:  logger,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		rooms:   make(map[string]*sync.Mutex),
	}
}

func (c *Client) roomLock(room string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.rooms[room]
	if !ok {
		l = &sync.Mutex{}
		c.rooms[room] = l
	}
	return l
}

// SendMessage asks the model about room. The prompt carries the room's
// latest item snapshot merged with extra. On success the question and reply
// are appended to the transcript together; on failure nothing is written.
func (c *Client) SendMessage(ctx context.Context, room, text string, extra map[string]any) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrEmptyMessage
	}

	lock := c.roomLock(room)
	lock.Lock()
	defer lock.Unlock()

	prompt, err := c.prompt(ctx, room, text, extra)
	if err != nil {
		return "", err
	}

	asked := c.now().UTC()
	reply, err := c.generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	history, err := c.history(ctx, room)
	if err != nil {
		return "", err
	}
	history = append(history,
		domain.ChatMessage{Role: domain.RoleUser, Content: text, Timestamp: asked},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: reply, Timestamp: c.now().UTC()},
	)
	if _, err := c.store.WriteSnapshot(ctx, room, domain.KindChat, history); err != nil {
		return "", err
	}
	return reply, nil
}

func (c *Client) prompt(ctx context.Context, room, text string, extra map[string]any) (string, error) {
	var items []domain.Item
	key, err := c.store.ReadLatestSnapshot(ctx, room, domain.KindItems, &items)
	if err != nil {
		return "", err
	}

	// roomName and roomData always describe the stored room, whatever the
	// caller passed in extra.
	blob := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		blob[k] = v
	}
	blob["roomName"] = room
	if key == "" {
		blob["roomData"] = map[string]any{}
	} else {
		blob["roomData"] = items
	}
	return buildPrompt(room, indentJSON(blob), text), nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := c.call(ctx, prompt)
	metrics.ChatLatency.Observe(time.Since(start).Seconds())
	metrics.ChatRequests.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		c.logger.Warn("chat request failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return "", err
	}
	return reply, nil
}

func (c *Client) call(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", c.timeoutError(err)
	}

	reply, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		var cerr *domain.ChatError
		if !errors.As(err, &cerr) {
			cerr = assistant.TransportError(ctx, err)
		}
		if cerr.Kind == domain.ChatTimeout {
			return "", c.timeoutError(cerr.Err)
		}
		return "", cerr
	}
	return reply, nil
}

func (c *Client) timeoutError(err error) *domain.ChatError {
	return &domain.ChatError{
		Kind: domain.ChatTimeout,
		Err:  fmt.Errorf("chat request timed out after %s: %w", c.timeout, err),
	}
}

// History returns the room's transcript, oldest first.
func (c *Client) History(ctx context.Context, room string) ([]domain.ChatMessage, error) {
	lock := c.roomLock(room)
	lock.Lock()
	defer lock.Unlock()
	return c.history(ctx, room)
}

func (c *Client) history(ctx context.Context, room string) ([]domain.ChatMessage, error) {
	var msgs []domain.ChatMessage
	if _, err := c.store.ReadLatestSnapshot(ctx, room, domain.KindChat, &msgs); err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return msgs, nil
}

// ClearHistory writes an empty transcript for room.
func (c *Client) ClearHistory(ctx context.Context, room string) error {
	lock := c.roomLock(room)
	lock.Lock()
	defer lock.Unlock()

	_, err := c.store.WriteSnapshot(ctx, room, domain.KindChat, []domain.ChatMessage{})
	return err
}

// CheckServerAvailability probes the backend.
func (c *Client) CheckServerAvailability(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := c.gen.Ping(ctx); err != nil {
		c.logger.Info("chat backend unavailable", "error", err)
		return false
	}
	return true
}

// CostAnalysis asks for a breakdown of the costs in extra.
func (c *Client) CostAnalysis(ctx context.Context, room string, extra map[string]any) (string, error) {
	return c.SendMessage(ctx, room, fmt.Sprintf(costAnalysisTemplate, indentJSON(extra)), extra)
}

func (c *Client) RoomRecommendations(ctx context.Context, room, roomType string, extra map[string]any) (string, error) {
	return c.SendMessage(ctx, room, fmt.Sprintf(roomRecommendationsTemplate, roomType, indentJSON(extra)), extra)
}

func (c *Client) MaterialRecommendations(ctx context.Context, room, itemType string, extra map[string]any) (string, error) {
	return c.SendMessage(ctx, room, fmt.Sprintf(materialRecommendationsTemplate, itemType, indentJSON(extra)), extra)
}
