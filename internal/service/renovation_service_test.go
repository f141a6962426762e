package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/renobudget/internal/blobstore/memory"
	"github.com/vbonduro/renobudget/internal/catalog"
	"github.com/vbonduro/renobudget/internal/chat"
	"github.com/vbonduro/renobudget/internal/db"
	"github.com/vbonduro/renobudget/internal/diag"
	"github.com/vbonduro/renobudget/internal/domain"
	"github.com/vbonduro/renobudget/internal/mirror"
	"github.com/vbonduro/renobudget/internal/persistence"
	"github.com/vbonduro/renobudget/internal/sheet"
	"github.com/vbonduro/renobudget/internal/store"
	"github.com/vbonduro/renobudget/internal/validation"
)

// stubGenerator is a minimal assistant.Generator for tests.
type stubGenerator struct {
	prompts []string
	reply   string
	err     error
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

func (g *stubGenerator) Ping(context.Context) error { return g.err }

type testEnv struct {
	svc     *RenovationService
	adapter *persistence.Adapter
	gen     *stubGenerator
}

func newTestService(t *testing.T) *testEnv {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	samples := persistence.NewFSSource(fstest.MapFS{
		"kitchen/sample_kitchen.json": {Data: []byte(`[{"type":"sink","name":"Sample Sink","cost":"300"}]`)},
		"guest-bathroom/sample_guest-bathroom.csv": {Data: []byte("type,name,cost\nvanity,A,1\nvanity,B,2\n")},
	})
	adapter := persistence.New(memory.New(), (*mirror.Client)(nil), samples, slog.Default())
	gen := &stubGenerator{reply: "Looks good."}
	chatClient := chat.New(gen, adapter, chat.Config{}, slog.Default())
	recorder := diag.New(store.NewDiagnosticStore(d), nil, slog.Default())

	svc := NewRenovationService(validation.New(catalog.Default()), adapter, chatClient, recorder, slog.Default())
	require.NoError(t, svc.Hydrate(context.Background()))
	return &testEnv{svc: svc, adapter: adapter, gen: gen}
}

func TestListRoomsFollowsCatalogOrder(t *testing.T) {
	env := newTestService(t)

	rooms := env.svc.ListRooms()
	names := make([]string, len(rooms))
	for i, r := range rooms {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"kitchen", "living-room", "master-bathroom", "guest-bathroom", "bedroom"}, names)
}

func TestUnknownRoomIsRecorded(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	_, err := env.svc.GetRoom(ctx, "garage")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	recent, err := env.svc.RecentDiagnostics(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "getRoom", recent[0].Operation)
	assert.Equal(t, "garage", recent[0].Context["roomName"])
}

func TestAddItemAndTotals(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	item, err := env.svc.AddItem(ctx, "kitchen", sheet.ItemInput{Fields: domain.ItemFields{Type: "sink", Name: "Kohler K-5", Cost: "450.5"}})
	require.NoError(t, err)
	assert.Equal(t, 450.5, item.Cost)

	totals, err := env.svc.Totals(ctx, "kitchen")
	require.NoError(t, err)
	assert.Equal(t, 450.5, totals.ItemsTotal)

	detail, err := env.svc.GetRoom(ctx, "kitchen")
	require.NoError(t, err)
	assert.Len(t, detail.Items, 1)
	assert.Contains(t, detail.AllowedTypes, "sink")
}

func TestSecondVanityIsRejectedAndRecorded(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	vanity := sheet.ItemInput{Fields: domain.ItemFields{Type: "vanity", Name: "Vanity", Cost: "600"}}
	_, err := env.svc.AddItem(ctx, "master-bathroom", vanity)
	require.NoError(t, err)

	_, err = env.svc.AddItem(ctx, "master-bathroom", vanity)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"Only one vanity is allowed in this room"}, verr.Messages)

	recent, err := env.svc.RecentDiagnostics(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, recent)
	assert.Equal(t, "addItem", recent[0].Operation)
}

func TestRoomsAreIsolated(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	_, err := env.svc.AddItem(ctx, "bedroom", sheet.ItemInput{Fields: domain.ItemFields{Type: "painting", Name: "Paint", Cost: "200"}})
	require.NoError(t, err)

	detail, err := env.svc.GetRoom(ctx, "living-room")
	require.NoError(t, err)
	assert.Empty(t, detail.Items)
}

func TestImportItems(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	items, err := env.svc.ImportItems(ctx, "bedroom", "type,name,cost,note\npainting,Accent Wall,300,\"Two coats, flat\"\ncurtains,Blackout,120,\n")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Two coats, flat", items[0].Note)

	totals, err := env.svc.Totals(ctx, "bedroom")
	require.NoError(t, err)
	assert.Equal(t, 420.0, totals.ItemsTotal)
}

func TestImportItemsRejectsWholeBatch(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	_, err := env.svc.AddItem(ctx, "bedroom", sheet.ItemInput{Fields: domain.ItemFields{Type: "painting", Name: "Keep", Cost: "1"}})
	require.NoError(t, err)

	_, err = env.svc.ImportItems(ctx, "bedroom", `[{"type":"painting","name":"A","cost":1},{"type":"painting","name":"B","cost":2}]`)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Messages, "Multiple entries for painting are not allowed")

	// Negative costs pass the structural check but fail item validation.
	_, err = env.svc.ImportItems(ctx, "bedroom", `[{"type":"painting","name":"A","cost":-1}]`)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"Item 1: Cost cannot be negative"}, verr.Messages)

	detail, err := env.svc.GetRoom(ctx, "bedroom")
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, "Keep", detail.Items[0].Name)
}

func TestLoadSample(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	items, err := env.svc.LoadSample(ctx, "kitchen")
	require.NoError(t, err)
	require.Len(t, items, 1)

	detail, err := env.svc.GetRoom(ctx, "kitchen")
	require.NoError(t, err)
	assert.Equal(t, "Sample Sink", detail.Items[0].Name)
	assert.Equal(t, 300.0, detail.Totals.ItemsTotal)
}

func TestLoadSampleRejectsInvalidSample(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	_, err := env.svc.AddItem(ctx, "guest-bathroom", sheet.ItemInput{Fields: domain.ItemFields{Type: "vanity", Name: "Current", Cost: "10"}})
	require.NoError(t, err)

	_, err = env.svc.LoadSample(ctx, "guest-bathroom")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Messages, "Multiple entries for vanity are not allowed")

	var sample []domain.Item
	key, err := env.adapter.ReadLatestSnapshot(ctx, "guest-bathroom", domain.KindSample, &sample)
	require.NoError(t, err)
	assert.NotEmpty(t, key, "the rejected sample is still recorded")
	assert.Len(t, sample, 2)

	detail, err := env.svc.GetRoom(ctx, "guest-bathroom")
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, "Current", detail.Items[0].Name)
}

func TestHydrateRestoresRooms(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	_, err := env.svc.AddItem(ctx, "kitchen", sheet.ItemInput{Fields: domain.ItemFields{Type: "oven", Name: "Oven", Cost: "1500"}})
	require.NoError(t, err)
	_, _, err = env.svc.UpdateGeneralCosts(ctx, "kitchen", map[string]string{"labor": "2000"})
	require.NoError(t, err)

	restarted := NewRenovationService(env.svc.validator, env.adapter, env.svc.chat, env.svc.diag, slog.Default())
	require.NoError(t, restarted.Hydrate(ctx))

	totals, err := restarted.Totals(ctx, "kitchen")
	require.NoError(t, err)
	assert.Equal(t, domain.Totals{ItemsTotal: 1500, GeneralTotal: 2000, GrandTotal: 3500}, totals)
}

func TestUpdateGeneralCostsWarnsOnCoercedValues(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	costs, warnings, err := env.svc.UpdateGeneralCosts(ctx, "kitchen", map[string]string{"labor": "2000", "designer": "-5"})
	require.NoError(t, err)
	assert.Equal(t, domain.GeneralCosts{Labor: 2000}, costs)
	assert.Equal(t, []string{"designer cost cannot be negative"}, warnings)

	costs, warnings, err = env.svc.UpdateGeneralCosts(ctx, "kitchen", map[string]string{"materials": "lots"})
	require.NoError(t, err)
	assert.Equal(t, 2000.0, costs.Labor)
	assert.Equal(t, []string{"materials cost must be a valid number"}, warnings)

	_, warnings, err = env.svc.UpdateGeneralCosts(ctx, "kitchen", map[string]string{"demolition": "150"})
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestSendMessageIncludesCostsAndTotals(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	_, _, err := env.svc.UpdateGeneralCosts(ctx, "kitchen", map[string]string{"designer": "750"})
	require.NoError(t, err)

	reply, err := env.svc.SendMessage(ctx, "kitchen", "Is this reasonable?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Looks good.", reply)
	require.Len(t, env.gen.prompts, 1)
	assert.Contains(t, env.gen.prompts[0], `"designer": 750`)
	assert.Contains(t, env.gen.prompts[0], `"grandTotal": 750`)

	history, err := env.svc.ChatHistory(ctx, "kitchen")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	require.NoError(t, env.svc.ClearChat(ctx, "kitchen"))
	history, err = env.svc.ChatHistory(ctx, "kitchen")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSendMessageFailureIsRecorded(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	env.gen.err = &domain.ChatError{Kind: domain.ChatStatus, Err: errors.New("ollama returned status 500")}

	_, err := env.svc.SendMessage(ctx, "kitchen", "hi", nil)
	var cerr *domain.ChatError
	require.ErrorAs(t, err, &cerr)

	recent, err := env.svc.RecentDiagnostics(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "sendMessage", recent[0].Operation)
	assert.False(t, env.svc.ChatAvailable(ctx))
}

func TestAdvise(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	_, err := env.svc.Advise(ctx, "kitchen", AdviceMaterials, "countertop")
	require.NoError(t, err)
	assert.Contains(t, env.gen.prompts[0], "recommend materials for countertop")

	_, err = env.svc.Advise(ctx, "kitchen", AdviceMaterials, "")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = env.svc.Advise(ctx, "kitchen", "horoscope", "")
	assert.ErrorIs(t, err, ErrUnknownAdvice)
}

func TestExportWorkbook(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	var buf bytes.Buffer
	name, err := env.svc.ExportWorkbook(ctx, "bedroom", &buf)
	require.NoError(t, err)
	assert.Regexp(t, `^bedroom_\d{4}-\d{2}-\d{2}\.xlsx$`, name)
	assert.NotZero(t, buf.Len())
}

func TestImageAndSnapshots(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	in := sheet.ItemInput{
		Fields: domain.ItemFields{Type: "sink", Name: "Sink", Cost: "1"},
		Image:  &domain.Image{Filename: "sink.gif", MIMEType: "image/gif", Data: []byte("GIF89a")},
	}
	item, err := env.svc.AddItem(ctx, "kitchen", in)
	require.NoError(t, err)

	img, err := env.svc.Image(ctx, item.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, "image/gif", img.MIMEType)
	assert.Equal(t, []byte("GIF89a"), img.Data)

	snaps, err := env.svc.Snapshots(ctx, "kitchen")
	require.NoError(t, err)
	require.NotEmpty(t, snaps)
	assert.Equal(t, domain.KindItems, snaps[len(snaps)-1].Kind)
}
