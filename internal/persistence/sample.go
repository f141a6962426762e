package persistence

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vbonduro/renobudget/internal/domain"
	"github.com/vbonduro/renobudget/internal/records"
	"github.com/vbonduro/renobudget/internal/sanitize"
	"github.com/vbonduro/renobudget/internal/validation"
)

// ErrSampleNotFound is returned by a SampleSource when the file does not exist.
var ErrSampleNotFound = errors.New("sample not found")

//go:embed samples
var embeddedSamples embed.FS

// SampleSource fetches sample files by their relative path, e.g.
// "kitchen/sample_kitchen.json".
type SampleSource interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// FSSource reads samples from a filesystem.
type FSSource struct {
	fsys fs.FS
}

func NewFSSource(fsys fs.FS) *FSSource {
	return &FSSource{fsys: fsys}
}

func (s *FSSource) Fetch(_ context.Context, name string) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSampleNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sample %s: %w", name, err)
	}
	return data, nil
}

// HTTPSource fetches samples relative to a base URL.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create sample request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sample %s: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrSampleNotFound, name)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sample %s returned status %d", name, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read sample %s: %w", name, err)
	}
	return data, nil
}

// NewSampleSource picks a source from a location string: empty selects the
// built-in samples, an http(s) URL selects HTTPSource, anything else is a
// directory.
func NewSampleSource(location string, timeout time.Duration) SampleSource {
	switch {
	case location == "":
		sub, err := fs.Sub(embeddedSamples, "samples")
		if err != nil {
			panic(fmt.Sprintf("embedded samples: %v", err))
		}
		return NewFSSource(sub)
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return NewHTTPSource(location, timeout)
	default:
		return NewFSSource(os.DirFS(location))
	}
}

// LoadSampleData fetches the JSON sample for room, falling back to CSV when
// the JSON file is missing or unreadable. Costs that do not parse become 0
// and every item gets a fresh ID. The loaded items are written as a sample
// snapshot before any caller validates them.
func (a *Adapter) LoadSampleData(ctx context.Context, room string) ([]domain.Item, error) {
	if a.samples == nil {
		return nil, fmt.Errorf("no sample source configured")
	}

	recs, jsonErr := a.loadSampleJSON(ctx, room)
	if jsonErr != nil {
		a.logger.Debug("json sample unavailable, trying csv", "room", room, "error", jsonErr)

		var csvErr error
		recs, csvErr = a.loadSampleCSV(ctx, room)
		if csvErr != nil {
			return nil, fmt.Errorf("failed to load sample data for %s: %w", room, csvErr)
		}
	}

	items := make([]domain.Item, 0, len(recs))
	for _, rec := range recs {
		f := rec.Fields()
		items = append(items, domain.Item{
			ID:          uuid.NewString(),
			Type:        sanitize.String(f.Type),
			Name:        sanitize.String(f.Name),
			Description: sanitize.String(f.Description),
			Cost:        validation.CoerceCost(f.Cost),
			URL:         sanitize.String(f.URL),
			Note:        sanitize.String(f.Note),
			ImagePath:   rec["image_path"],
		})
	}

	if _, err := a.WriteSnapshot(ctx, room, domain.KindSample, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (a *Adapter) loadSampleJSON(ctx context.Context, room string) ([]records.Record, error) {
	data, err := a.samples.Fetch(ctx, fmt.Sprintf("%s/sample_%s.json", room, room))
	if err != nil {
		return nil, err
	}
	return records.ParseJSON(string(data))
}

func (a *Adapter) loadSampleCSV(ctx context.Context, room string) ([]records.Record, error) {
	data, err := a.samples.Fetch(ctx, fmt.Sprintf("%s/sample_%s.csv", room, room))
	if err != nil {
		return nil, err
	}
	table, err := records.ParseCSV(string(data))
	if err != nil {
		return nil, err
	}
	recs := make([]records.Record, 0, len(table.Rows))
	for _, row := range table.Rows {
		recs = append(recs, table.Record(row))
	}
	return recs, nil
}
