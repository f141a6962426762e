package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vbonduro/renobudget/internal/domain"
	"github.com/vbonduro/renobudget/internal/export"
	"github.com/vbonduro/renobudget/internal/persistence"
	"github.com/vbonduro/renobudget/internal/sanitize"
	"github.com/vbonduro/renobudget/internal/sheet"
	"github.com/vbonduro/renobudget/internal/validation"
)

// hydrateConcurrency bounds how many rooms read their snapshots at once.
const hydrateConcurrency = 4

// snapshotStore is the subset of persistence.Adapter that RenovationService requires.
type snapshotStore interface {
	sheet.Snapshotter
	LoadSampleData(ctx context.Context, room string) ([]domain.Item, error)
	ReadImage(ctx context.Context, key string) (domain.Image, error)
	ListSnapshots(ctx context.Context, room string) ([]persistence.SnapshotInfo, error)
}

// chatClient is the subset of chat.Client that RenovationService requires.
type chatClient interface {
	SendMessage(ctx context.Context, room, text string, extra map[string]any) (string, error)
	History(ctx context.Context, room string) ([]domain.ChatMessage, error)
	ClearHistory(ctx context.Context, room string) error
	CheckServerAvailability(ctx context.Context) bool
	CostAnalysis(ctx context.Context, room string, extra map[string]any) (string, error)
	RoomRecommendations(ctx context.Context, room, roomType string, extra map[string]any) (string, error)
	MaterialRecommendations(ctx context.Context, room, itemType string, extra map[string]any) (string, error)
}

// recorder is the subset of diag.Recorder that RenovationService requires.
type recorder interface {
	Record(ctx context.Context, operation string, err error, kv map[string]any)
	Recent(ctx context.Context, limit int) ([]*domain.Diagnostic, error)
}

// RoomContext is everything owned by one room.
type RoomContext struct {
	Name  string
	Sheet *sheet.Sheet
}

type RenovationService struct {
	validator *validation.Validator
	store     snapshotStore
	chat      chatClient
	diag      recorder
	logger    *slog.Logger
	now       func() time.Time

	rooms map[string]*RoomContext
	order []string
}

func NewRenovationService(
	validator *validation.Validator,
	store snapshotStore,
	chat chatClient,
	diag recorder,
	logger *slog.Logger,
) *RenovationService {
	s := &RenovationService{
		validator: validator,
		store:     store,
		chat:      chat,
		diag:      diag,
		logger:    logger,
		now:       time.Now,
		rooms:     make(map[string]*RoomContext),
	}
	for _, name := range validator.Catalog().Names() {
		s.rooms[name] = &RoomContext{Name: name, Sheet: sheet.New(name, validator, store, logger)}
		s.order = append(s.order, name)
	}
	return s
}

// SetMaxImageBytes sets the attachment size ceiling on every room.
func (s *RenovationService) SetMaxImageBytes(n int64) {
	for _, rc := range s.rooms {
		rc.Sheet.SetMaxImageBytes(n)
	}
}

// Hydrate restores every room from its latest snapshots.
func (s *RenovationService) Hydrate(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hydrateConcurrency)
	for _, name := range s.order {
		rc := s.rooms[name]
		g.Go(func() error {
			if err := rc.Sheet.Hydrate(gctx); err != nil {
				return fmt.Errorf("room %s: %w", rc.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.diag.Record(ctx, "hydrate", err, nil)
		return err
	}
	return nil
}

func (s *RenovationService) room(ctx context.Context, op, name string) (*RoomContext, error) {
	rc, ok := s.rooms[name]
	if !ok {
		return nil, s.fail(ctx, op, domain.ErrRoomNotFound, map[string]any{"roomName": name})
	}
	return rc, nil
}

// fail records err under op and returns it unchanged.
func (s *RenovationService) fail(ctx context.Context, op string, err error, kv map[string]any) error {
	s.diag.Record(ctx, op, err, kv)
	return err
}

// RoomSummary is one entry of the room list.
type RoomSummary struct {
	Name      string        `json:"name"`
	ItemCount int           `json:"item_count"`
	Totals    domain.Totals `json:"totals"`
}

func (s *RenovationService) ListRooms() []RoomSummary {
	out := make([]RoomSummary, 0, len(s.order))
	for _, name := range s.order {
		sh := s.rooms[name].Sheet
		out = append(out, RoomSummary{Name: name, ItemCount: len(sh.Items()), Totals: sh.CalculateTotals()})
	}
	return out
}

// RoomDetail is a room's full cost sheet along with its type rules.
type RoomDetail struct {
	Name          string              `json:"name"`
	AllowedTypes  []string            `json:"allowed_types"`
	MultipleTypes []string            `json:"multiple_types"`
	Items         []domain.Item       `json:"items"`
	GeneralCosts  domain.GeneralCosts `json:"general_costs"`
	Totals        domain.Totals       `json:"totals"`
}

func (s *RenovationService) GetRoom(ctx context.Context, name string) (*RoomDetail, error) {
	rc, err := s.room(ctx, "getRoom", name)
	if err != nil {
		return nil, err
	}
	cfg, _ := s.validator.Catalog().Room(name)
	items := rc.Sheet.Items()
	if items == nil {
		items = []domain.Item{}
	}
	return &RoomDetail{
		Name:          name,
		AllowedTypes:  cfg.Types,
		MultipleTypes: cfg.Multiple,
		Items:         items,
		GeneralCosts:  rc.Sheet.GeneralCosts(),
		Totals:        rc.Sheet.CalculateTotals(),
	}, nil
}

func (s *RenovationService) AddItem(ctx context.Context, room string, in sheet.ItemInput) (domain.Item, error) {
	rc, err := s.room(ctx, "addItem", room)
	if err != nil {
		return domain.Item{}, err
	}
	item, err := rc.Sheet.AddItem(ctx, in)
	if err != nil {
		return domain.Item{}, s.fail(ctx, "addItem", err, map[string]any{"roomName": room, "type": in.Fields.Type, "name": in.Fields.Name})
	}
	s.logger.Info("item added", "room", room, "item_id", item.ID, "type", item.Type)
	return item, nil
}

func (s *RenovationService) UpdateItem(ctx context.Context, room, id string, patch sheet.ItemPatch) (domain.Item, error) {
	rc, err := s.room(ctx, "updateItem", room)
	if err != nil {
		return domain.Item{}, err
	}
	item, err := rc.Sheet.UpdateItem(ctx, id, patch)
	if err != nil {
		return domain.Item{}, s.fail(ctx, "updateItem", err, map[string]any{"roomName": room, "itemId": id})
	}
	return item, nil
}

func (s *RenovationService) DeleteItem(ctx context.Context, room, id string) error {
	rc, err := s.room(ctx, "deleteItem", room)
	if err != nil {
		return err
	}
	if err := rc.Sheet.DeleteItem(ctx, id); err != nil {
		return s.fail(ctx, "deleteItem", err, map[string]any{"roomName": room, "itemId": id})
	}
	return nil
}

func (s *RenovationService) ItemsByType(ctx context.Context, room, itemType string) ([]domain.Item, error) {
	rc, err := s.room(ctx, "itemsByType", room)
	if err != nil {
		return nil, err
	}
	items := rc.Sheet.ItemsByType(itemType)
	if items == nil {
		items = []domain.Item{}
	}
	return items, nil
}

// UpdateGeneralCosts stores the supplied general costs. Invalid or negative
// values are saved as 0 and reported back as warnings.
func (s *RenovationService) UpdateGeneralCosts(ctx context.Context, room string, costs map[string]string) (domain.GeneralCosts, []string, error) {
	rc, err := s.room(ctx, "updateGeneralCosts", room)
	if err != nil {
		return domain.GeneralCosts{}, nil, err
	}

	warnings := costWarnings(costs, rc.Sheet.GeneralCosts())
	if len(warnings) > 0 {
		s.logger.Warn("general costs coerced to zero", "room", room, "warnings", warnings)
	}

	updated, err := rc.Sheet.UpdateGeneralCosts(ctx, costs)
	if err != nil {
		return domain.GeneralCosts{}, nil, s.fail(ctx, "updateGeneralCosts", err, map[string]any{"roomName": room})
	}
	return updated, warnings, nil
}

// costWarnings validates the costs a partial update would leave in place.
// Keys absent from costs keep their current value and so never warn.
func costWarnings(costs map[string]string, current domain.GeneralCosts) []string {
	merged := make(map[string]string, len(domain.GeneralCostKeys))
	for _, key := range domain.GeneralCostKeys {
		if raw, ok := costs[key]; ok {
			merged[key] = raw
			continue
		}
		merged[key] = strconv.FormatFloat(current.Value(key), 'f', -1, 64)
	}
	return validation.ValidateGeneralCosts(merged)
}

func (s *RenovationService) Totals(ctx context.Context, room string) (domain.Totals, error) {
	rc, err := s.room(ctx, "calculateTotals", room)
	if err != nil {
		return domain.Totals{}, err
	}
	return rc.Sheet.CalculateTotals(), nil
}

// ImportItems replaces the room's items with the records in raw, a JSON
// array or CSV text. Nothing changes unless every record is valid.
func (s *RenovationService) ImportItems(ctx context.Context, room, raw string) ([]domain.Item, error) {
	rc, err := s.room(ctx, "importItems", room)
	if err != nil {
		return nil, err
	}

	res := s.validator.ValidateBulkRecords(raw, validation.DefaultRequiredFields, room)
	if !res.Valid {
		return nil, s.fail(ctx, "importItems", domain.NewValidationError(res.Errors...), map[string]any{"roomName": room})
	}

	items := make([]domain.Item, 0, len(res.Records))
	for _, rec := range res.Records {
		f := rec.Fields()
		items = append(items, domain.Item{
			ID:          uuid.NewString(),
			Type:        sanitize.String(f.Type),
			Name:        sanitize.String(f.Name),
			Description: sanitize.String(f.Description),
			Cost:        validation.ParseCost(f.Cost),
			URL:         sanitize.String(f.URL),
			Note:        sanitize.String(f.Note),
		})
	}

	if err := s.replace(ctx, "importItems", rc, items); err != nil {
		return nil, err
	}
	s.logger.Info("items imported", "room", room, "count", len(items))
	return items, nil
}

// LoadSample replaces the room's items with its sample data. The sample
// snapshot records what the source returned and is written before the batch
// is validated, so a rejected sample still leaves that snapshot behind while
// the room's items stay as they were.
func (s *RenovationService) LoadSample(ctx context.Context, room string) ([]domain.Item, error) {
	rc, err := s.room(ctx, "loadSampleData", room)
	if err != nil {
		return nil, err
	}

	items, err := s.store.LoadSampleData(ctx, room)
	if err != nil {
		return nil, s.fail(ctx, "loadSampleData", err, map[string]any{"roomName": room})
	}
	if err := s.replace(ctx, "loadSampleData", rc, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *RenovationService) replace(ctx context.Context, op string, rc *RoomContext, items []domain.Item) error {
	if errs := s.validator.ValidateItems(items, rc.Name); len(errs) > 0 {
		return s.fail(ctx, op, domain.NewValidationError(errs...), map[string]any{"roomName": rc.Name})
	}
	if err := rc.Sheet.ReplaceItems(ctx, items); err != nil {
		return s.fail(ctx, op, err, map[string]any{"roomName": rc.Name})
	}
	return nil
}

// ExportWorkbook writes the room as an xlsx workbook to w and returns the
// suggested file name.
func (s *RenovationService) ExportWorkbook(ctx context.Context, room string, w io.Writer) (string, error) {
	rc, err := s.room(ctx, "exportWorkbook", room)
	if err != nil {
		return "", err
	}
	err = export.Write(w, export.Sheet{
		Room:   room,
		Items:  rc.Sheet.Items(),
		Costs:  rc.Sheet.GeneralCosts(),
		Totals: rc.Sheet.CalculateTotals(),
	})
	if err != nil {
		return "", s.fail(ctx, "exportWorkbook", err, map[string]any{"roomName": room})
	}
	return export.FileName(room, s.now()), nil
}

// Image loads a stored item image by its key.
func (s *RenovationService) Image(ctx context.Context, key string) (domain.Image, error) {
	img, err := s.store.ReadImage(ctx, key)
	if err != nil {
		return domain.Image{}, s.fail(ctx, "readImage", err, map[string]any{"path": key})
	}
	return img, nil
}

func (s *RenovationService) Snapshots(ctx context.Context, room string) ([]persistence.SnapshotInfo, error) {
	if _, err := s.room(ctx, "listSnapshots", room); err != nil {
		return nil, err
	}
	snaps, err := s.store.ListSnapshots(ctx, room)
	if err != nil {
		return nil, s.fail(ctx, "listSnapshots", err, map[string]any{"roomName": room})
	}
	return snaps, nil
}

// chatContext adds the room's general costs and totals to extra without
// overriding keys the caller set.
func (s *RenovationService) chatContext(rc *RoomContext, extra map[string]any) map[string]any {
	out := map[string]any{
		"generalCosts": rc.Sheet.GeneralCosts(),
		"totals":       rc.Sheet.CalculateTotals(),
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (s *RenovationService) SendMessage(ctx context.Context, room, text string, extra map[string]any) (string, error) {
	rc, err := s.room(ctx, "sendMessage", room)
	if err != nil {
		return "", err
	}
	reply, err := s.chat.SendMessage(ctx, room, text, s.chatContext(rc, extra))
	if err != nil {
		return "", s.fail(ctx, "sendMessage", err, map[string]any{"roomName": room, "message": text})
	}
	return reply, nil
}

func (s *RenovationService) ChatHistory(ctx context.Context, room string) ([]domain.ChatMessage, error) {
	if _, err := s.room(ctx, "loadChatHistory", room); err != nil {
		return nil, err
	}
	msgs, err := s.chat.History(ctx, room)
	if err != nil {
		return nil, s.fail(ctx, "loadChatHistory", err, map[string]any{"roomName": room})
	}
	return msgs, nil
}

func (s *RenovationService) ClearChat(ctx context.Context, room string) error {
	if _, err := s.room(ctx, "clearChatHistory", room); err != nil {
		return err
	}
	if err := s.chat.ClearHistory(ctx, room); err != nil {
		return s.fail(ctx, "clearChatHistory", err, map[string]any{"roomName": room})
	}
	return nil
}

func (s *RenovationService) ChatAvailable(ctx context.Context) bool {
	return s.chat.CheckServerAvailability(ctx)
}

// Advice kinds accepted by Advise.
const (
	AdviceCostAnalysis = "cost-analysis"
	AdviceRoom         = "room"
	AdviceMaterials    = "materials"
)

var ErrUnknownAdvice = errors.New("unknown advice kind")

// Advise runs one of the canned recommendation prompts for room. subject is
// the room style for AdviceRoom and the item type for AdviceMaterials.
func (s *RenovationService) Advise(ctx context.Context, room, kind, subject string) (string, error) {
	rc, err := s.room(ctx, "advise", room)
	if err != nil {
		return "", err
	}
	extra := s.chatContext(rc, map[string]any{"items": rc.Sheet.Items()})

	var (
		reply string
		op    string
	)
	switch kind {
	case AdviceCostAnalysis:
		op = "getCostAnalysis"
		reply, err = s.chat.CostAnalysis(ctx, room, extra)
	case AdviceRoom:
		op = "getRoomRecommendations"
		if subject == "" {
			subject = room
		}
		reply, err = s.chat.RoomRecommendations(ctx, room, subject, extra)
	case AdviceMaterials:
		op = "getMaterialRecommendations"
		if subject == "" {
			return "", s.fail(ctx, "getMaterialRecommendations", domain.NewValidationError("Item type is required"), map[string]any{"roomName": room})
		}
		reply, err = s.chat.MaterialRecommendations(ctx, room, subject, extra)
	default:
		return "", s.fail(ctx, "advise", fmt.Errorf("%w: %q", ErrUnknownAdvice, kind), map[string]any{"roomName": room})
	}
	if err != nil {
		return "", s.fail(ctx, op, err, map[string]any{"roomName": room, "subject": subject})
	}
	return reply, nil
}

func (s *RenovationService) RecentDiagnostics(ctx context.Context, limit int) ([]*domain.Diagnostic, error) {
	return s.diag.Recent(ctx, limit)
}
