package timeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger-api/internal/application/auth"
	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/application/timeline"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/memory"
)

const (
	camiseta = "2460-3499"
	gorra    = "7701-0001"
	whGGM    = "GGM_WH"
)

type fixture struct {
	store    *memory.Store
	gate     *auth.PermissionGate
	pipeline *inventory.Pipeline
	rec      *timeline.Reconstructor
	admin    entity.Actor
	viewer   entity.Actor
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, auth.SeedDefaults(ctx, store.Roles(), store.Users(), auth.AdminSeed{}))
	require.NoError(t, store.Products().Create(ctx, &entity.Product{Barcode: camiseta, Name: "Camiseta básica"}))
	require.NoError(t, store.Products().Create(ctx, &entity.Product{Barcode: gorra, Name: "Gorra"}))
	require.NoError(t, store.Warehouses().Create(ctx, &entity.Warehouse{Code: whGGM, Name: "Girardota", Active: true}))

	f := &fixture{store: store, clock: time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)}
	f.admin = addUser(t, store, "admin", entity.RoleSuperAdmin)
	f.viewer = addUser(t, store, "viewer", auth.RoleViewer)
	f.gate = auth.NewPermissionGate(store.Users(), store.Roles(), time.Minute)
	f.pipeline = inventory.NewPipeline(inventory.PipelineDeps{
		TxRunner: store,
		Gate:     f.gate,
		Ledger:   inventory.NewLedger(store.StockEvents()),
		// Cada operación avanza un minuto para que el orden no dependa solo del ID.
		Now: func() time.Time {
			f.clock = f.clock.Add(time.Minute)
			return f.clock
		},
	})
	f.rec = timeline.NewReconstructor(timeline.Sources{
		Events:     store.StockEvents(),
		Dispatches: store.Dispatches(),
		Returns:    store.Returns(),
		Damages:    store.Damages(),
		Recoveries: store.Recoveries(),
		Transfers:  store.SelfTransfers(),
	})
	return f
}

func addUser(t *testing.T, store *memory.Store, id, roleName string) entity.Actor {
	t.Helper()
	role, err := store.Roles().GetRoleByName(context.Background(), roleName)
	require.NoError(t, err)
	u := &entity.User{ID: id, Name: "Usuario " + id, Email: id + "@stockledger.test", RoleID: role.ID, Status: entity.UserStatusActive}
	require.NoError(t, store.Users().Create(context.Background(), u))
	return entity.Actor{UserID: u.ID, Name: u.Name}
}

func (f *fixture) run(t *testing.T, typ inventory.OperationType, payload any) *inventory.OperationResult {
	t.Helper()
	res, err := f.pipeline.Execute(context.Background(), inventory.OperationRequest{Type: typ, Payload: payload}, f.admin)
	require.NoError(t, err)
	return res
}

// despachoYDevolucion saldo inicial 10, despacho de 5 y devolución de 2 sobre ORD-1.
func despachoYDevolucion(t *testing.T, f *fixture) (dispatchID string) {
	t.Helper()
	f.run(t, inventory.OpOpeningStock, dto.OpeningStockRequest{Barcode: camiseta, Warehouse: whGGM, Quantity: 10})
	d := f.run(t, inventory.OpDispatch, dto.DispatchRequest{
		OrderID: "ORD-1", AWB: "AWB-991", Courier: "Coordinadora", Warehouse: whGGM,
		Lines: []dto.DispatchLineRequest{{Barcode: camiseta, Quantity: 5}},
	})
	f.run(t, inventory.OpReturn, dto.ReturnRequest{
		DispatchID: d.ResourceID, Barcode: camiseta, Warehouse: whGGM, Quantity: 2, Reason: "no le quedó",
	})
	return d.ResourceID
}

func TestTimelineForProduct_DespachoYDevolucion(t *testing.T) {
	f := newFixture(t)
	despachoYDevolucion(t, f)

	entries, err := f.rec.TimelineForProduct(context.Background(), camiseta)
	require.NoError(t, err)
	require.Len(t, entries, 2, "el saldo inicial no es un movimiento")

	assert.Equal(t, entity.EventTypeDispatch, entries[0].Type)
	assert.Equal(t, entity.DirectionOUT, entries[0].Direction)
	assert.Equal(t, 5, entries[0].Quantity)
	assert.Equal(t, "AWB-991", entries[0].Reference)
	assert.Contains(t, entries[0].Description, "ORD-1")
	assert.Contains(t, entries[0].Description, "Coordinadora")

	assert.Equal(t, entity.EventTypeReturn, entries[1].Type)
	assert.Equal(t, entity.DirectionIN, entries[1].Direction)
	assert.Equal(t, 2, entries[1].Quantity)
	assert.Contains(t, entries[1].Description, "no le quedó")
	assert.True(t, entries[0].Timestamp.Before(entries[1].Timestamp))
	assert.Equal(t, f.admin.UserID, entries[1].Actor)
}

func TestTimelineForProduct_Idempotente(t *testing.T) {
	f := newFixture(t)
	despachoYDevolucion(t, f)

	first, err := f.rec.TimelineForProduct(context.Background(), camiseta)
	require.NoError(t, err)
	second, err := f.rec.TimelineForProduct(context.Background(), camiseta)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTimelineForProduct_Vacio(t *testing.T) {
	f := newFixture(t)

	entries, err := f.rec.TimelineForProduct(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	entries, err = f.rec.TimelineForProduct(context.Background(), gorra)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTimelineForProduct_IncluyeDanosTrasladosYReversos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Warehouses().Create(ctx, &entity.Warehouse{Code: "BOG_WH", Name: "Bogotá", Active: true}))
	f.run(t, inventory.OpOpeningStock, dto.OpeningStockRequest{Barcode: camiseta, Warehouse: whGGM, Quantity: 10})
	dmg := f.run(t, inventory.OpDamage, dto.DamageRequest{Barcode: camiseta, Warehouse: whGGM, Quantity: 1, Reason: "costura abierta"})
	f.run(t, inventory.OpRecovery, dto.RecoveryRequest{DamageID: dmg.ResourceID, Barcode: camiseta, Warehouse: whGGM, Quantity: 1, Notes: "reparada"})
	tr := f.run(t, inventory.OpSelfTransfer, dto.SelfTransferRequest{Barcode: camiseta, FromWarehouse: whGGM, ToWarehouse: "BOG_WH", Quantity: 3})
	f.run(t, inventory.OpStatusUpdate, dto.StatusUpdateRequest{RecordType: entity.SourceSelfTransfer, RecordID: tr.ResourceID, Status: entity.TransferCancelled})

	entries, err := f.rec.TimelineForProduct(ctx, camiseta)
	require.NoError(t, err)
	types := make([]string, 0, len(entries))
	for _, e := range entries {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{
		entity.EventTypeDamage, entity.EventTypeRecovery, entity.EventTypeTransferOut, entity.EventTypeReversal,
	}, types)
	assert.Equal(t, "Daño reportado: costura abierta", entries[0].Description)
	assert.Contains(t, entries[1].Description, dmg.ResourceID)
	assert.Equal(t, "Traslado de GGM_WH a BOG_WH", entries[2].Description)
	assert.Contains(t, entries[3].Description, "cancelación del traslado")
}

func TestTimelineForOrder_MultilineaYDevolucion(t *testing.T) {
	f := newFixture(t)
	f.run(t, inventory.OpOpeningStock, dto.OpeningStockRequest{Barcode: camiseta, Warehouse: whGGM, Quantity: 10})
	f.run(t, inventory.OpOpeningStock, dto.OpeningStockRequest{Barcode: gorra, Warehouse: whGGM, Quantity: 10})
	d := f.run(t, inventory.OpDispatch, dto.DispatchRequest{
		OrderID: "ORD-7", AWB: "AWB-7", Warehouse: whGGM,
		Lines: []dto.DispatchLineRequest{{Barcode: camiseta, Quantity: 2}, {Barcode: gorra, Quantity: 1}},
	})
	f.run(t, inventory.OpReturn, dto.ReturnRequest{DispatchID: d.ResourceID, Barcode: gorra, Warehouse: whGGM, Quantity: 1})
	f.run(t, inventory.OpStatusUpdate, dto.StatusUpdateRequest{RecordType: entity.SourceDispatch, RecordID: d.ResourceID, Status: entity.DispatchProcessing})

	detail, err := f.rec.TimelineForOrder(context.Background(), "ORD-7")
	require.NoError(t, err)
	assert.Equal(t, "ORD-7", detail.OrderID)
	assert.Equal(t, entity.DispatchProcessing, detail.Status)
	require.Len(t, detail.Dispatches, 1)
	assert.Len(t, detail.Dispatches[0].Lines, 2)
	require.Len(t, detail.Returns, 1)
	assert.Equal(t, "ORD-7", detail.Returns[0].OrderID)

	require.Len(t, detail.Entries, 3, "una entrada por línea despachada más la devolución")
	assert.Equal(t, camiseta, detail.Entries[0].Barcode)
	assert.Equal(t, gorra, detail.Entries[1].Barcode)
	assert.Equal(t, entity.EventTypeReturn, detail.Entries[2].Type)
}

func TestTimelineForOrder_Inexistente(t *testing.T) {
	f := newFixture(t)

	for _, order := range []string{"", "ORD-NADA"} {
		detail, err := f.rec.TimelineForOrder(context.Background(), order)
		require.NoError(t, err)
		assert.Empty(t, detail.Dispatches)
		assert.Empty(t, detail.Returns)
		assert.Empty(t, detail.Entries)
		assert.Empty(t, detail.Status)
	}
}

// fakeRenderer guarda lo que recibe y devuelve un PDF mínimo.
type fakeRenderer struct {
	entries []entity.TimelineEntry
	product *entity.Product
}

func (r *fakeRenderer) RenderProductTimeline(p *entity.Product, _ string, entries []entity.TimelineEntry, _ time.Time) ([]byte, error) {
	r.product = p
	r.entries = entries
	return []byte("%PDF-1.4 fake"), nil
}

type captureSink struct{ entries []entity.AuditLogEntry }

func (c *captureSink) Record(_ context.Context, e entity.AuditLogEntry) {
	c.entries = append(c.entries, e)
}

func TestExporter_ProductTimelinePDF(t *testing.T) {
	f := newFixture(t)
	despachoYDevolucion(t, f)
	renderer := &fakeRenderer{}
	sink := &captureSink{}
	exp := timeline.NewExporter(f.rec, f.store.Products(), renderer, f.gate, sink)
	ctx := context.Background()

	doc, err := exp.ProductTimelinePDF(ctx, f.admin, camiseta)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(doc))
	assert.Len(t, renderer.entries, 2)
	assert.Equal(t, "Camiseta básica", renderer.product.Name)
	require.Len(t, sink.entries, 1)
	assert.Equal(t, entity.AuditExport, sink.entries[0].Action)
	assert.Equal(t, camiseta, sink.entries[0].ResourceID)

	_, err = exp.ProductTimelinePDF(ctx, f.viewer, camiseta)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = exp.ProductTimelinePDF(ctx, f.admin, "0000-0000")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, sink.entries, 1, "solo las exportaciones exitosas se auditan")
}
