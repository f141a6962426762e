// Package mirror posts best-effort copies of local writes to a remote server:
// text blocks to a log endpoint and data-URI images to an upload endpoint.
package mirror

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vbonduro/renobudget/internal/metrics"
)

const (
	EndpointLog   = "log"
	EndpointImage = "image"

	// LogField and the image fields are the form field names the endpoints read.
	LogField       = "errorLog"
	ImageField     = "image"
	ImagePathField = "path"
)

type Client struct {
	logURL   string
	imageURL string
	client   *http.Client
	logger   *slog.Logger
}

// New returns a mirror client. An empty URL disables that endpoint.
func New(logURL, imageURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		logURL:   logURL,
		imageURL: imageURL,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// PostLog sends text to the log endpoint.
func (c *Client) PostLog(ctx context.Context, text string) error {
	if c == nil || c.logURL == "" {
		return nil
	}
	err := c.post(ctx, c.logURL, url.Values{LogField: {text}})
	c.observe(EndpointLog, err)
	return err
}

// PostImage sends a data-URI image and its storage path to the image endpoint.
func (c *Client) PostImage(ctx context.Context, dataURI, path string) error {
	if c == nil || c.imageURL == "" {
		return nil
	}
	err := c.post(ctx, c.imageURL, url.Values{ImageField: {dataURI}, ImagePathField: {path}})
	c.observe(EndpointImage, err)
	return err
}

func (c *Client) post(ctx context.Context, target string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create mirror request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call mirror: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close mirror response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("mirror returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) observe(endpoint string, err error) {
	if err == nil {
		return
	}
	metrics.MirrorFailures.WithLabelValues(endpoint).Inc()
	c.logger.Warn("remote mirror failed", "endpoint", endpoint, "error", err)
}
