// Package sheet holds one room's cost sheet: its items and general costs.
// Every mutation runs under the sheet's lock until its snapshot is written,
// so two overlapping mutations in the same room cannot persist out of order.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/vbonduro/renobudget/internal/domain"
	"github.com/vbonduro/renobudget/internal/metrics"
	"github.com/vbonduro/renobudget/internal/sanitize"
	"github.com/vbonduro/renobudget/internal/validation"
)

// Snapshotter is the subset of persistence.Adapter a sheet writes through.
type Snapshotter interface {
	WriteSnapshot(ctx context.Context, room, kind string, v any) (string, error)
	ReadLatestSnapshot(ctx context.Context, room, kind string, v any) (string, error)
	WriteImage(ctx context.Context, room, itemType string, img domain.Image) (string, error)
	DeleteImage(ctx context.Context, key string) error
}

// ItemInput is a new item as submitted, with an optional image.
type ItemInput struct {
	Fields domain.ItemFields
	Image  *domain.Image
}

// ItemPatch carries the fields to change; nil fields are left as they are.
type ItemPatch struct {
	Type        *string
	Name        *string
	Description *string
	Cost        *string
	URL         *string
	Note        *string
	Image       *domain.Image
}

type Sheet struct {
	mu        sync.Mutex
	room      string
	validator *validation.Validator
	store     Snapshotter
	logger    *slog.Logger
	maxImage  int64

	items []domain.Item
	costs domain.GeneralCosts
}

func New(room string, v *validation.Validator, store Snapshotter, logger *slog.Logger) *Sheet {
	return &Sheet{
		room:      room,
		validator: v,
		store:     store,
		logger:    logger.With("room", room),
		maxImage:  validation.MaxImageBytes,
	}
}

// SetMaxImageBytes overrides the attachment size ceiling.
func (s *Sheet) SetMaxImageBytes(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxImage = n
}

func (s *Sheet) Room() string { return s.room }

// Hydrate restores items and general costs from the latest snapshots.
// A room with no snapshots starts empty.
func (s *Sheet) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []domain.Item
	key, err := s.store.ReadLatestSnapshot(ctx, s.room, domain.KindItems, &items)
	if err != nil {
		return fmt.Errorf("failed to hydrate items: %w", err)
	}

	var costs domain.GeneralCosts
	if _, err := s.store.ReadLatestSnapshot(ctx, s.room, domain.KindCosts, &costs); err != nil {
		return fmt.Errorf("failed to hydrate general costs: %w", err)
	}

	s.items = items
	s.costs = costs
	s.logger.Info("sheet hydrated", "snapshot", key, "items", len(items))
	return nil
}

// AddItem validates and stores a new item.
func (s *Sheet) AddItem(ctx context.Context, in ItemInput) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.addItem(ctx, in)
	metrics.ItemMutations.WithLabelValues(s.room, "add", metrics.Outcome(err)).Inc()
	return item, err
}

func (s *Sheet) addItem(ctx context.Context, in ItemInput) (domain.Item, error) {
	item := newItem(in.Fields)

	if !s.canAddType(item.Type, "") {
		return domain.Item{}, domain.NewValidationError(fmt.Sprintf("Only one %s is allowed in this room", item.Type))
	}
	if errs := s.validator.ValidateItem(item, s.room); len(errs) > 0 {
		return domain.Item{}, domain.NewValidationError(errs...)
	}

	if in.Image != nil {
		path, err := s.storeImage(ctx, item.Type, *in.Image)
		if err != nil {
			return domain.Item{}, err
		}
		item.ImagePath = path
	}

	item.ID = uuid.NewString()
	s.items = append(s.items, item)

	if err := s.persistItems(ctx); err != nil {
		s.items = s.items[:len(s.items)-1]
		s.discardImage(ctx, item.ImagePath)
		return domain.Item{}, err
	}
	return item, nil
}

// UpdateItem merges patch over the item with id. An invalid merge leaves the
// stored item unchanged.
func (s *Sheet) UpdateItem(ctx context.Context, id string, patch ItemPatch) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.updateItem(ctx, id, patch)
	metrics.ItemMutations.WithLabelValues(s.room, "update", metrics.Outcome(err)).Inc()
	return item, err
}

func (s *Sheet) updateItem(ctx context.Context, id string, patch ItemPatch) (domain.Item, error) {
	idx := s.indexOf(id)
	if idx < 0 {
		return domain.Item{}, domain.ErrNotFound
	}

	original := s.items[idx]
	merged := applyPatch(original, patch)

	if merged.Type != original.Type && !s.canAddType(merged.Type, id) {
		return domain.Item{}, domain.NewValidationError(fmt.Sprintf("Only one %s is allowed in this room", merged.Type))
	}
	if errs := s.validator.ValidateItem(merged, s.room); len(errs) > 0 {
		return domain.Item{}, domain.NewValidationError(errs...)
	}

	if patch.Image != nil {
		path, err := s.storeImage(ctx, merged.Type, *patch.Image)
		if err != nil {
			return domain.Item{}, err
		}
		merged.ImagePath = path
	}

	s.items[idx] = merged
	if err := s.persistItems(ctx); err != nil {
		s.items[idx] = original
		if merged.ImagePath != original.ImagePath {
			s.discardImage(ctx, merged.ImagePath)
		}
		return domain.Item{}, err
	}
	if merged.ImagePath != original.ImagePath {
		s.discardImage(ctx, original.ImagePath)
	}
	return merged, nil
}

// DeleteItem removes the item with id.
func (s *Sheet) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.deleteItem(ctx, id)
	metrics.ItemMutations.WithLabelValues(s.room, "delete", metrics.Outcome(err)).Inc()
	return err
}

func (s *Sheet) deleteItem(ctx context.Context, id string) error {
	idx := s.indexOf(id)
	if idx < 0 {
		return domain.ErrNotFound
	}

	removed := s.items[idx]
	previous := slices.Clone(s.items)
	s.items = slices.Delete(s.items, idx, idx+1)
	if err := s.persistItems(ctx); err != nil {
		s.items = previous
		return err
	}
	s.discardImage(ctx, removed.ImagePath)
	return nil
}

// ReplaceItems swaps the whole collection, used by bulk import and sample
// loading. Callers validate the items first.
func (s *Sheet) ReplaceItems(ctx context.Context, items []domain.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.items
	s.items = slices.Clone(items)
	err := s.persistItems(ctx)
	if err != nil {
		s.items = previous
	}
	metrics.ItemMutations.WithLabelValues(s.room, "replace", metrics.Outcome(err)).Inc()
	return err
}

// UpdateGeneralCosts overwrites each known cost key present in costs.
// Values that are not a non-negative number are stored as 0; unknown keys
// are ignored.
func (s *Sheet) UpdateGeneralCosts(ctx context.Context, costs map[string]string) (domain.GeneralCosts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.costs
	for key, raw := range costs {
		v := validation.CoerceCost(raw)
		switch key {
		case "designer":
			s.costs.Designer = v
		case "demolition":
			s.costs.Demolition = v
		case "materials":
			s.costs.Materials = v
		case "labor":
			s.costs.Labor = v
		}
	}

	if _, err := s.store.WriteSnapshot(ctx, s.room, domain.KindCosts, s.costs); err != nil {
		s.costs = previous
		return domain.GeneralCosts{}, err
	}
	return s.costs, nil
}

// CalculateTotals sums item and general costs. It never fails; if summing
// panics the totals come back as zero.
func (s *Sheet) CalculateTotals() (totals domain.Totals) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("failed to calculate totals", "panic", r)
			totals = domain.Totals{}
		}
	}()

	for _, item := range s.items {
		totals.ItemsTotal += item.Cost
	}
	totals.GeneralTotal = s.costs.Sum()
	totals.GrandTotal = totals.ItemsTotal + totals.GeneralTotal
	return totals
}

// Items returns a copy of the items in insertion order.
func (s *Sheet) Items() []domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

func (s *Sheet) ItemsByType(itemType string) []domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Item
	for _, item := range s.items {
		if item.Type == itemType {
			out = append(out, item)
		}
	}
	return out
}

func (s *Sheet) Item(id string) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return domain.Item{}, domain.ErrNotFound
	}
	return s.items[idx], nil
}

func (s *Sheet) GeneralCosts() domain.GeneralCosts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.costs
}

func (s *Sheet) persistItems(ctx context.Context) error {
	items := s.items
	if items == nil {
		items = []domain.Item{}
	}
	if _, err := s.store.WriteSnapshot(ctx, s.room, domain.KindItems, items); err != nil {
		var perr *domain.PersistenceError
		if errors.As(err, &perr) {
			return err
		}
		return &domain.PersistenceError{Op: "write items snapshot", Err: err}
	}
	return nil
}

func (s *Sheet) storeImage(ctx context.Context, itemType string, img domain.Image) (string, error) {
	info := validation.FileInfo{Name: img.Filename, MIMEType: img.MIMEType, Size: int64(len(img.Data))}
	if errs := validation.ValidateFile(info, validation.ImageMIMETypes, s.maxImage); len(errs) > 0 {
		return "", domain.NewValidationError(errs...)
	}

	path, err := s.store.WriteImage(ctx, s.room, itemType, img)
	if err != nil {
		return "", &domain.ImageUploadError{Err: err}
	}
	return path, nil
}

// discardImage removes an image no item refers to any more. Failures only
// leave an orphaned blob, so they are logged and not returned.
func (s *Sheet) discardImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.store.DeleteImage(ctx, key); err != nil {
		s.logger.Warn("failed to delete image", "key", key, "error", err)
	}
}

// canAddType reports whether an item of itemType may join the collection.
// The item with ignoreID is not counted, so an update can keep its own type.
func (s *Sheet) canAddType(itemType, ignoreID string) bool {
	if s.validator.Catalog().AllowsMultiple(s.room, itemType) {
		return true
	}
	for _, item := range s.items {
		if item.Type == itemType && item.ID != ignoreID {
			return false
		}
	}
	return true
}

func (s *Sheet) indexOf(id string) int {
	return slices.IndexFunc(s.items, func(item domain.Item) bool { return item.ID == id })
}

func newItem(f domain.ItemFields) domain.Item {
	return domain.Item{
		Type:        sanitize.String(f.Type),
		Name:        sanitize.String(f.Name),
		Description: sanitize.String(f.Description),
		Cost:        validation.ParseCost(f.Cost),
		URL:         sanitize.String(f.URL),
		Note:        sanitize.String(f.Note),
	}
}

func applyPatch(item domain.Item, p ItemPatch) domain.Item {
	if p.Type != nil {
		item.Type = sanitize.String(*p.Type)
	}
	if p.Name != nil {
		item.Name = sanitize.String(*p.Name)
	}
	if p.Description != nil {
		item.Description = sanitize.String(*p.Description)
	}
	if p.Cost != nil {
		item.Cost = validation.ParseCost(*p.Cost)
	}
	if p.URL != nil {
		item.URL = sanitize.String(*p.URL)
	}
	if p.Note != nil {
		item.Note = sanitize.String(*p.Note)
	}
	return item
}
