package inventory_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger-api/internal/application/audit"
	"github.com/jhoicas/stockledger-api/internal/application/auth"
	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/memory"
)

const (
	camiseta = "2460-3499"
	gorra    = "7701-0001"
	whGGM    = "GGM_WH"
	whBOG    = "BOG_WH"
	whOld    = "OLD_WH"
)

type fixture struct {
	store    *memory.Store
	gate     *auth.PermissionGate
	recorder *audit.Recorder
	ledger   *inventory.Ledger
	pipeline *inventory.Pipeline
	actors   map[string]entity.Actor
}

type fixtureOpts struct {
	runner   func(*memory.Store) inventory.TxRunner
	auditLog func(*memory.Store) repository.AuditLogRepository
	notifier inventory.Notifier
}

func newFixture(t *testing.T, opts ...func(*fixtureOpts)) *fixture {
	t.Helper()
	o := fixtureOpts{}
	for _, fn := range opts {
		fn(&o)
	}
	ctx := context.Background()
	store := memory.NewStore(memory.WithLockTimeout(2 * time.Second))
	require.NoError(t, auth.SeedDefaults(ctx, store.Roles(), store.Users(), auth.AdminSeed{}))

	f := &fixture{store: store, actors: make(map[string]entity.Actor)}
	for _, role := range []string{entity.RoleSuperAdmin, auth.RoleWarehouseManager, auth.RoleOperator, auth.RoleViewer} {
		f.actors[role] = addUser(t, store, role)
	}
	require.NoError(t, store.Products().Create(ctx, &entity.Product{Barcode: camiseta, Name: "Camiseta básica"}))
	require.NoError(t, store.Products().Create(ctx, &entity.Product{Barcode: gorra, Name: "Gorra"}))
	require.NoError(t, store.Warehouses().Create(ctx, &entity.Warehouse{Code: whGGM, Name: "Bodega Girardota", Active: true}))
	require.NoError(t, store.Warehouses().Create(ctx, &entity.Warehouse{Code: whBOG, Name: "Bodega Bogotá", Active: true}))
	require.NoError(t, store.Warehouses().Create(ctx, &entity.Warehouse{Code: whOld, Name: "Bodega cerrada", Active: false}))

	repo := store.AuditLogs()
	if o.auditLog != nil {
		repo = o.auditLog(store)
	}
	var runner inventory.TxRunner = store
	if o.runner != nil {
		runner = o.runner(store)
	}

	f.gate = auth.NewPermissionGate(store.Users(), store.Roles(), time.Minute)
	f.recorder = audit.NewRecorder(repo, audit.Config{QueueSize: 256, MaxRetries: 1, BaseBackoff: time.Millisecond}, nil)
	t.Cleanup(func() { _ = f.recorder.Close(context.Background()) })
	f.ledger = inventory.NewLedger(store.StockEvents())
	f.pipeline = inventory.NewPipeline(inventory.PipelineDeps{
		TxRunner: runner,
		Gate:     f.gate,
		Ledger:   f.ledger,
		Audit:    f.recorder,
		Notifier: o.notifier,
	})
	return f
}

func addUser(t *testing.T, store *memory.Store, roleName string) entity.Actor {
	t.Helper()
	ctx := context.Background()
	role, err := store.Roles().GetRoleByName(ctx, roleName)
	require.NoError(t, err)
	require.NotNil(t, role)
	u := &entity.User{
		ID:     "u-" + roleName,
		Name:   "Usuario " + roleName,
		Email:  roleName + "@stockledger.test",
		RoleID: role.ID,
		Status: entity.UserStatusActive,
	}
	require.NoError(t, store.Users().Create(ctx, u))
	return entity.Actor{UserID: u.ID, Name: u.Name, Email: u.Email, RoleID: u.RoleID, IPAddress: "10.0.0.7", UserAgent: "test"}
}

func (f *fixture) admin() entity.Actor    { return f.actors[entity.RoleSuperAdmin] }
func (f *fixture) operator() entity.Actor { return f.actors[auth.RoleOperator] }
func (f *fixture) viewer() entity.Actor   { return f.actors[auth.RoleViewer] }

func (f *fixture) exec(actor entity.Actor, typ inventory.OperationType, payload any) (*inventory.OperationResult, error) {
	return f.pipeline.Execute(context.Background(), inventory.OperationRequest{Type: typ, Payload: payload}, actor)
}

func (f *fixture) open(t *testing.T, barcode, warehouse string, qty int) {
	t.Helper()
	_, err := f.exec(f.admin(), inventory.OpOpeningStock, dto.OpeningStockRequest{Barcode: barcode, Warehouse: warehouse, Quantity: qty})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, barcode, warehouse string) int {
	t.Helper()
	bal, err := f.ledger.Balance(context.Background(), barcode, warehouse)
	require.NoError(t, err)
	return bal
}

func (f *fixture) eventCount(t *testing.T, barcode string) int {
	t.Helper()
	events, err := f.store.StockEvents().ListByBarcode(context.Background(), barcode)
	require.NoError(t, err)
	return len(events)
}

// flushAudit cierra el recorder para esperar las escrituras pendientes.
func (f *fixture) flushAudit(t *testing.T) []entity.AuditLogEntry {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.recorder.Close(ctx))
	entries, err := f.store.AuditLogs().List(context.Background(), entity.AuditFilter{})
	require.NoError(t, err)
	return entries
}

func dispatchReq(order, warehouse string, lines ...dto.DispatchLineRequest) dto.DispatchRequest {
	return dto.DispatchRequest{OrderID: order, AWB: "AWB-" + order, Courier: "Servientrega", Warehouse: warehouse, Lines: lines}
}

func line(barcode string, qty int) dto.DispatchLineRequest {
	return dto.DispatchLineRequest{Barcode: barcode, Quantity: qty, DeclaredValue: decimal.NewFromInt(int64(qty) * 35000)}
}

func TestPipeline_DespachoDescuentaStock(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 10)

	res, err := f.exec(f.operator(), inventory.OpDispatch, dispatchReq("ORD-1", whGGM, line(camiseta, 4)))
	require.NoError(t, err)
	assert.Equal(t, inventory.StateCompleted, res.Status)
	assert.NotEmpty(t, res.ResourceID)
	assert.Len(t, res.EventIDs, 1)
	assert.Equal(t, 6, f.balance(t, camiseta, whGGM))

	d, err := f.store.Dispatches().GetByID(context.Background(), res.ResourceID)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, entity.DispatchPending, d.Status)
	assert.Equal(t, f.operator().UserID, d.CreatedBy)
}

func TestPipeline_DespachoSinStockFalla(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 3)

	res, err := f.exec(f.operator(), inventory.OpDispatch, dispatchReq("ORD-2", whGGM, line(camiseta, 4)))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, inventory.StateFailed, res.Status)
	assert.Equal(t, inventory.CodeInsufficientStock, res.Code)
	assert.Equal(t, 3, f.balance(t, camiseta, whGGM))

	dispatches, err := f.store.Dispatches().ListByOrder(context.Background(), "ORD-2")
	require.NoError(t, err)
	assert.Empty(t, dispatches, "un despacho rechazado no deja registro")
}

func TestPipeline_DevolucionReponeStock(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 10)

	d, err := f.exec(f.operator(), inventory.OpDispatch, dispatchReq("ORD-3", whGGM, line(camiseta, 5)))
	require.NoError(t, err)

	r, err := f.exec(f.operator(), inventory.OpReturn, dto.ReturnRequest{
		DispatchID: d.ResourceID, Barcode: camiseta, Warehouse: whGGM, Quantity: 2, Reason: "talla equivocada",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, f.balance(t, camiseta, whGGM))

	ret, err := f.store.Returns().GetByID(context.Background(), r.ResourceID)
	require.NoError(t, err)
	require.NotNil(t, ret)
	assert.Equal(t, "ORD-3", ret.OrderID, "la orden se completa desde el despacho")
	assert.Equal(t, "AWB-ORD-3", ret.AWB)

	_, err = f.exec(f.operator(), inventory.OpReturn, dto.ReturnRequest{
		DispatchID: d.ResourceID, Barcode: camiseta, Warehouse: whGGM, Quantity: 4,
	})
	require.ErrorIs(t, err, domain.ErrValidation, "no se puede devolver más de lo despachado")
	assert.Equal(t, "lte_dispatched", fieldTag(t, err, "quantity"))
	assert.Equal(t, 7, f.balance(t, camiseta, whGGM))

	_, err = f.exec(f.operator(), inventory.OpReturn, dto.ReturnRequest{
		DispatchID: d.ResourceID, Barcode: gorra, Warehouse: whGGM, Quantity: 1,
	})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "in_dispatch", fieldTag(t, err, "barcode"))
}

func TestPipeline_DanoYRecuperacion(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 8)

	dmg, err := f.exec(f.operator(), inventory.OpDamage, dto.DamageRequest{Barcode: camiseta, Warehouse: whGGM, Quantity: 3, Reason: "mancha"})
	require.NoError(t, err)
	assert.Equal(t, 5, f.balance(t, camiseta, whGGM))

	_, err = f.exec(f.operator(), inventory.OpRecovery, dto.RecoveryRequest{DamageID: dmg.ResourceID, Barcode: camiseta, Warehouse: whGGM, Quantity: 4})
	require.ErrorIs(t, err, domain.ErrValidation, "no se recupera más de lo dañado")
	assert.Equal(t, "lte_damaged", fieldTag(t, err, "quantity"))

	_, err = f.exec(f.operator(), inventory.OpRecovery, dto.RecoveryRequest{DamageID: dmg.ResourceID, Barcode: camiseta, Warehouse: whGGM, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 7, f.balance(t, camiseta, whGGM))
}

func TestPipeline_RecuperacionAcumuladaNoSuperaElDano(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 2)
	f.open(t, camiseta, whBOG, 2)

	dmg, err := f.exec(f.operator(), inventory.OpDamage, dto.DamageRequest{Barcode: camiseta, Warehouse: whGGM, Quantity: 1, Reason: "rasgado"})
	require.NoError(t, err)
	require.Equal(t, 1, f.balance(t, camiseta, whGGM))

	recoverOne := func(warehouse string) error {
		_, err := f.exec(f.operator(), inventory.OpRecovery, dto.RecoveryRequest{
			DamageID: dmg.ResourceID, Barcode: camiseta, Warehouse: warehouse, Quantity: 1,
		})
		return err
	}

	err = recoverOne(whBOG)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "eqfield=damage.warehouse", fieldTag(t, err, "warehouse"), "se recupera en la bodega del daño")

	require.NoError(t, recoverOne(whGGM))
	assert.Equal(t, 2, f.balance(t, camiseta, whGGM))

	for i := 0; i < 2; i++ {
		err = recoverOne(whGGM)
		require.ErrorIs(t, err, domain.ErrValidation)
		assert.Equal(t, "lte_damaged", fieldTag(t, err, "quantity"))
	}
	assert.Equal(t, 2, f.balance(t, camiseta, whGGM), "una unidad dañada se recupera una sola vez")
	assert.Equal(t, 2, f.balance(t, camiseta, whBOG))
}

func TestPipeline_PermisoDenegadoNoEscribe(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 5)
	before := f.eventCount(t, camiseta)

	res, err := f.exec(f.viewer(), inventory.OpDispatch, dispatchReq("ORD-4", whGGM, line(camiseta, 1)))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.Equal(t, inventory.CodePermissionDenied, res.Code)
	assert.Equal(t, before, f.eventCount(t, camiseta))

	_, err = f.exec(f.operator(), inventory.OpOpeningStock, dto.OpeningStockRequest{Barcode: camiseta, Warehouse: whGGM, Quantity: 5})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied, "el operador no carga saldos iniciales")

	_, err = f.exec(entity.Actor{}, inventory.OpDamage, dto.DamageRequest{Barcode: camiseta, Warehouse: whGGM, Quantity: 1, Reason: "x"})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied, "sin actor no hay permiso")

	assert.Equal(t, 5, f.balance(t, camiseta, whGGM))
	for _, e := range f.flushAudit(t) {
		assert.NotEqual(t, entity.SourceDispatch, e.ResourceType, "una operación denegada no se audita como creada")
	}
}

func TestPipeline_ReasignarRolAplicaDeInmediato(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 5)
	viewer := f.viewer()

	_, err := f.exec(viewer, inventory.OpDamage, dto.DamageRequest{Barcode: camiseta, Warehouse: whGGM, Quantity: 1, Reason: "roto"})
	require.ErrorIs(t, err, domain.ErrPermissionDenied)

	op, err := f.store.Roles().GetRoleByName(context.Background(), auth.RoleOperator)
	require.NoError(t, err)
	require.NoError(t, f.store.Users().UpdateRole(context.Background(), viewer.UserID, op.ID))

	_, err = f.exec(viewer, inventory.OpDamage, dto.DamageRequest{Barcode: camiseta, Warehouse: whGGM, Quantity: 1, Reason: "roto"})
	require.NoError(t, err)
	assert.Equal(t, 4, f.balance(t, camiseta, whGGM))
}

func TestPipeline_DespachoMultilineaEsAtomico(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 10)
	f.open(t, gorra, whGGM, 1)

	res, err := f.exec(f.operator(), inventory.OpDispatch, dispatchReq("ORD-5", whGGM, line(camiseta, 3), line(gorra, 2)))
	require.Error(t, err)
	assert.Equal(t, inventory.CodeInsufficientStock, res.Code)
	assert.Equal(t, 10, f.balance(t, camiseta, whGGM), "la línea con stock tampoco se aplica")
	assert.Equal(t, 1, f.balance(t, gorra, whGGM))

	dispatches, err := f.store.Dispatches().ListByOrder(context.Background(), "ORD-5")
	require.NoError(t, err)
	assert.Empty(t, dispatches)
}

func TestPipeline_LineasRepetidasSeReservanJuntas(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 5)

	_, err := f.exec(f.operator(), inventory.OpDispatch, dispatchReq("ORD-6", whGGM, line(camiseta, 3), line(camiseta, 3)))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock, "3+3 supera el saldo aunque cada línea quepa sola")

	res, err := f.exec(f.operator(), inventory.OpDispatch, dispatchReq("ORD-6", whGGM, line(camiseta, 3), line(camiseta, 2)))
	require.NoError(t, err)
	assert.Len(t, res.EventIDs, 2, "un evento OUT por línea")
	assert.Equal(t, 0, f.balance(t, camiseta, whGGM))
}

func TestPipeline_ValidacionDeEntrada(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 5)

	cases := []struct {
		name    string
		typ     inventory.OperationType
		payload any
	}{
		{"cantidad cero", inventory.OpDamage, dto.DamageRequest{Barcode: camiseta, Warehouse: whGGM, Quantity: 0, Reason: "x"}},
		{"sin líneas", inventory.OpDispatch, dto.DispatchRequest{OrderID: "ORD-7", Warehouse: whGGM}},
		{"bodega inexistente", inventory.OpReturn, dto.ReturnRequest{Barcode: camiseta, Warehouse: "NOPE_WH", Quantity: 1}},
		{"bodega inactiva", inventory.OpReturn, dto.ReturnRequest{Barcode: camiseta, Warehouse: whOld, Quantity: 1}},
		{"producto inexistente", inventory.OpRecovery, dto.RecoveryRequest{Barcode: "0000", Warehouse: whGGM, Quantity: 1}},
		{"traslado a la misma bodega", inventory.OpSelfTransfer, dto.SelfTransferRequest{Barcode: camiseta, FromWarehouse: whGGM, ToWarehouse: whGGM, Quantity: 1}},
		{"tipo desconocido", inventory.OperationType("teleport"), dto.DamageRequest{}},
		{"json inválido", inventory.OpDamage, json.RawMessage(`{"quantity":`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := f.exec(f.admin(), tc.typ, tc.payload)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, inventory.CodeValidation, res.Code)
		})
	}
	assert.Equal(t, 5, f.balance(t, camiseta, whGGM))
}

func TestPipeline_AceptaJSONCrudo(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 5)

	raw := json.RawMessage(`{"barcode":"2460-3499","warehouse":"GGM_WH","quantity":2,"reason":"humedad"}`)
	_, err := f.exec(f.operator(), inventory.OpDamage, raw)
	require.NoError(t, err)
	assert.Equal(t, 3, f.balance(t, camiseta, whGGM))
}

func TestPipeline_ConcurrenciaNoSobrevende(t *testing.T) {
	f := newFixture(t)
	const stock, requests = 5, 20
	f.open(t, camiseta, whGGM, stock)

	var ok, insufficient atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.exec(f.operator(), inventory.OpDispatch, dispatchReq("ORD-C", whGGM, line(camiseta, 1)))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficient.Add(1)
			default:
				t.Errorf("error inesperado: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(stock), ok.Load())
	assert.Equal(t, int32(requests-stock), insufficient.Load())
	assert.Equal(t, 0, f.balance(t, camiseta, whGGM))
}

// cancelOnCommit cancela el contexto justo antes del commit.
type cancelOnCommit struct {
	store  *memory.Store
	cancel context.CancelFunc
}

func (c cancelOnCommit) Run(ctx context.Context, fn func(tx inventory.TxRepos) error) error {
	return c.store.Run(ctx, func(tx inventory.TxRepos) error {
		if err := fn(tx); err != nil {
			return err
		}
		c.cancel()
		return nil
	})
}

func TestPipeline_CancelacionHaceRollback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, func(o *fixtureOpts) {
		o.runner = func(s *memory.Store) inventory.TxRunner { return cancelOnCommit{store: s, cancel: cancel} }
	})
	// El saldo inicial se carga directo en el ledger: el runner cancelaría también esa operación.
	require.NoError(t, f.store.StockEvents().Append(context.Background(), &entity.StockEvent{
		Barcode: camiseta, Warehouse: whGGM, Direction: entity.DirectionIN, Quantity: 5,
		EventType: entity.EventTypeOpening, SourceType: entity.SourceOpening, SourceID: "seed", OccurredAt: time.Now(),
	}))

	res, err := f.pipeline.Execute(ctx, inventory.OperationRequest{
		Type:    inventory.OpDispatch,
		Payload: dispatchReq("ORD-X", whGGM, line(camiseta, 2)),
	}, f.operator())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, inventory.StateFailed, res.Status)
	assert.Equal(t, 5, f.balance(t, camiseta, whGGM))

	dispatches, err := f.store.Dispatches().ListByOrder(context.Background(), "ORD-X")
	require.NoError(t, err)
	assert.Empty(t, dispatches)
}

// failingAudit repositorio de auditoría que siempre falla.
type failingAudit struct{ calls atomic.Int32 }

func (f *failingAudit) Create(context.Context, *entity.AuditLogEntry) error {
	f.calls.Add(1)
	return errors.New("audit_logs no disponible")
}

func (f *failingAudit) List(context.Context, entity.AuditFilter) ([]entity.AuditLogEntry, error) {
	return nil, nil
}

func TestPipeline_FallaDeAuditoriaNoRevierte(t *testing.T) {
	repo := &failingAudit{}
	f := newFixture(t, func(o *fixtureOpts) {
		o.auditLog = func(*memory.Store) repository.AuditLogRepository { return repo }
	})
	f.open(t, camiseta, whGGM, 5)

	res, err := f.exec(f.operator(), inventory.OpDamage, dto.DamageRequest{Barcode: camiseta, Warehouse: whGGM, Quantity: 2, Reason: "caída"})
	require.NoError(t, err)
	assert.Equal(t, inventory.StateCompleted, res.Status)
	assert.Equal(t, 3, f.balance(t, camiseta, whGGM), "la operación queda confirmada")

	f.flushAudit(t)
	assert.Equal(t, int64(2), f.recorder.Failures(), "saldo inicial y daño quedan como fallas de auditoría")
	assert.Equal(t, int32(4), repo.calls.Load(), "un intento más un reintento por entrada")
}

func TestPipeline_AuditaOperacionConfirmada(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 5)

	res, err := f.exec(f.operator(), inventory.OpDispatch, dispatchReq("ORD-8", whGGM, line(camiseta, 2)))
	require.NoError(t, err)

	var found *entity.AuditLogEntry
	for _, e := range f.flushAudit(t) {
		if e.ResourceType == entity.SourceDispatch && e.ResourceID == res.ResourceID {
			e := e
			found = &e
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, entity.AuditCreate, found.Action)
	assert.Equal(t, f.operator().UserID, found.ActorUserID)
	assert.Equal(t, f.operator().Name, found.ActorName)
	assert.Equal(t, "10.0.0.7", found.IPAddress)

	var details map[string]any
	require.NoError(t, json.Unmarshal(found.Details, &details))
	assert.Equal(t, "ORD-8", details["order_id"])
	assert.Equal(t, string(inventory.OpDispatch), details["operation"])
}

func TestPipeline_TrasladoRecibido(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 10)

	tr, err := f.exec(f.operator(), inventory.OpSelfTransfer, dto.SelfTransferRequest{
		Barcode: camiseta, FromWarehouse: whGGM, ToWarehouse: whBOG, Quantity: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, f.balance(t, camiseta, whGGM))
	assert.Equal(t, 0, f.balance(t, camiseta, whBOG), "en tránsito no suma en destino")

	manager := f.actors[auth.RoleWarehouseManager]
	_, err = f.exec(manager, inventory.OpStatusUpdate, dto.StatusUpdateRequest{
		RecordType: entity.SourceSelfTransfer, RecordID: tr.ResourceID, Status: entity.TransferReceived,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, f.balance(t, camiseta, whGGM))
	assert.Equal(t, 4, f.balance(t, camiseta, whBOG))

	_, err = f.exec(manager, inventory.OpStatusUpdate, dto.StatusUpdateRequest{
		RecordType: entity.SourceSelfTransfer, RecordID: tr.ResourceID, Status: entity.TransferCancelled,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPipeline_TrasladoCanceladoVuelveAOrigen(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 10)

	tr, err := f.exec(f.operator(), inventory.OpSelfTransfer, dto.SelfTransferRequest{
		Barcode: camiseta, FromWarehouse: whGGM, ToWarehouse: whBOG, Quantity: 4,
	})
	require.NoError(t, err)

	_, err = f.exec(f.admin(), inventory.OpStatusUpdate, dto.StatusUpdateRequest{
		RecordType: entity.SourceSelfTransfer, RecordID: tr.ResourceID, Status: entity.TransferCancelled, Reason: "error de digitación",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, f.balance(t, camiseta, whGGM))
	assert.Equal(t, 0, f.balance(t, camiseta, whBOG))

	got, err := f.store.SelfTransfers().GetByID(context.Background(), tr.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, entity.TransferCancelled, got.Status)
}

func TestPipeline_CancelarDespachoEmiteReversos(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 10)
	f.open(t, gorra, whGGM, 5)

	d, err := f.exec(f.operator(), inventory.OpDispatch, dispatchReq("ORD-9", whGGM, line(camiseta, 3), line(gorra, 2)))
	require.NoError(t, err)

	res, err := f.exec(f.admin(), inventory.OpStatusUpdate, dto.StatusUpdateRequest{
		RecordType: entity.SourceDispatch, RecordID: d.ResourceID, Status: entity.DispatchCancelled,
	})
	require.NoError(t, err)
	assert.Len(t, res.EventIDs, 2)
	assert.Equal(t, 10, f.balance(t, camiseta, whGGM))
	assert.Equal(t, 5, f.balance(t, gorra, whGGM))

	events, err := f.store.StockEvents().ListBySources(context.Background(), entity.SourceDispatch, []string{d.ResourceID})
	require.NoError(t, err)
	require.Len(t, events, 4, "el historial original se conserva")
	reversed := map[int64]bool{}
	for _, ev := range events {
		if ev.EventType == entity.EventTypeReversal {
			require.NotNil(t, ev.ReversesEventID)
			assert.Equal(t, entity.DirectionIN, ev.Direction)
			reversed[*ev.ReversesEventID] = true
		}
	}
	assert.True(t, reversed[d.EventIDs[0]])
	assert.True(t, reversed[d.EventIDs[1]])
}

func TestPipeline_EstadoDeRegistroInexistente(t *testing.T) {
	f := newFixture(t)

	res, err := f.exec(f.admin(), inventory.OpStatusUpdate, dto.StatusUpdateRequest{
		RecordType: entity.SourceDamage, RecordID: "no-existe", Status: entity.DamageVerified,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, inventory.CodeValidation, res.Code)

	_, err = f.exec(f.operator(), inventory.OpStatusUpdate, dto.StatusUpdateRequest{
		RecordType: entity.SourceDamage, RecordID: "no-existe", Status: entity.DamageVerified,
	})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied, "el operador no cambia estados")
}

func TestPipeline_EstadoInvalidoParaElTipo(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 5)
	dmg, err := f.exec(f.operator(), inventory.OpDamage, dto.DamageRequest{Barcode: camiseta, Warehouse: whGGM, Quantity: 1, Reason: "x"})
	require.NoError(t, err)

	_, err = f.exec(f.admin(), inventory.OpStatusUpdate, dto.StatusUpdateRequest{
		RecordType: entity.SourceDamage, RecordID: dmg.ResourceID, Status: entity.DispatchDelivered,
	})
	assert.ErrorIs(t, err, domain.ErrValidation, "DELIVERED no es un estado de daño")

	_, err = f.exec(f.admin(), inventory.OpStatusUpdate, dto.StatusUpdateRequest{
		RecordType: entity.SourceDamage, RecordID: dmg.ResourceID, Status: entity.DamageVerified,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, f.balance(t, camiseta, whGGM), "verificar un daño no mueve stock")
}

// captureNotifier guarda las notificaciones recibidas.
type captureNotifier struct {
	ch chan entity.MovementNotification
}

func (c *captureNotifier) Notify(_ context.Context, n entity.MovementNotification) error {
	c.ch <- n
	return errors.New("broker caído")
}

func TestPipeline_NotificaSinAfectarResultado(t *testing.T) {
	n := &captureNotifier{ch: make(chan entity.MovementNotification, 8)}
	f := newFixture(t, func(o *fixtureOpts) { o.notifier = n })
	f.open(t, camiseta, whGGM, 5)
	<-n.ch

	res, err := f.exec(f.operator(), inventory.OpDamage, dto.DamageRequest{Barcode: camiseta, Warehouse: whGGM, Quantity: 1, Reason: "x"})
	require.NoError(t, err, "un notificador fallido no afecta la operación")

	select {
	case got := <-n.ch:
		assert.Equal(t, string(inventory.OpDamage), got.Operation)
		assert.Equal(t, res.ResourceID, got.ResourceID)
		assert.Equal(t, []string{camiseta + "@" + whGGM}, got.Keys)
		assert.Equal(t, res.EventIDs, got.EventIDs)
	case <-time.After(2 * time.Second):
		t.Fatal("no llegó la notificación")
	}
}

// scriptedRunner envuelve el store: falla las primeras conflicts ejecuciones con
// ErrConcurrencyConflict. beforeCommit corre una vez en la primera ejecución: antes
// de devolver el conflicto si lo hay, o dentro de la tx justo antes del commit.
type scriptedRunner struct {
	store *memory.Store

	mu           sync.Mutex
	conflicts    int
	calls        int
	beforeCommit func()
}

func withScriptedRunner(r *scriptedRunner) func(*fixtureOpts) {
	return func(o *fixtureOpts) {
		o.runner = func(s *memory.Store) inventory.TxRunner {
			r.store = s
			return r
		}
	}
}

func (r *scriptedRunner) arm(conflicts int, beforeCommit func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts = conflicts
	r.calls = 0
	r.beforeCommit = beforeCommit
}

func (r *scriptedRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *scriptedRunner) Run(ctx context.Context, fn func(tx inventory.TxRepos) error) error {
	r.mu.Lock()
	r.calls++
	conflict := r.conflicts > 0
	if conflict {
		r.conflicts--
	}
	hook := r.beforeCommit
	r.beforeCommit = nil
	r.mu.Unlock()

	if conflict {
		if hook != nil {
			hook()
		}
		return fmt.Errorf("%w: lock_timeout", domain.ErrConcurrencyConflict)
	}
	return r.store.Run(ctx, func(tx inventory.TxRepos) error {
		if err := fn(tx); err != nil {
			return err
		}
		if hook != nil {
			hook()
		}
		return nil
	})
}

func TestPipeline_ConflictoSeReintentaUnaVez(t *testing.T) {
	runner := &scriptedRunner{}
	f := newFixture(t, withScriptedRunner(runner))
	f.open(t, camiseta, whGGM, 5)

	runner.arm(1, nil)
	res, err := f.exec(f.operator(), inventory.OpDispatch, dispatchReq("ORD-R1", whGGM, line(camiseta, 2)))
	require.NoError(t, err)
	assert.Equal(t, inventory.StateCompleted, res.Status)
	assert.Equal(t, 2, runner.callCount(), "el segundo intento confirma")
	assert.Equal(t, 3, f.balance(t, camiseta, whGGM))

	runner.arm(3, nil)
	res, err = f.exec(f.operator(), inventory.OpDispatch, dispatchReq("ORD-R2", whGGM, line(camiseta, 1)))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.Equal(t, inventory.StateFailed, res.Status)
	assert.Equal(t, inventory.CodeConcurrencyConflict, res.Code)
	assert.Equal(t, 2, runner.callCount(), "un solo reintento")
	assert.Equal(t, 3, f.balance(t, camiseta, whGGM))

	dispatches, err := f.store.Dispatches().ListByOrder(context.Background(), "ORD-R2")
	require.NoError(t, err)
	assert.Empty(t, dispatches)
}

func TestPipeline_ReintentoReleeElSaldo(t *testing.T) {
	runner := &scriptedRunner{}
	f := newFixture(t, withScriptedRunner(runner))
	f.open(t, camiseta, whGGM, 3)
	direct := inventory.NewPipeline(inventory.PipelineDeps{TxRunner: f.store, Gate: f.gate, Ledger: f.ledger})

	// El primer intento pierde la carrera contra otro despacho que consume el saldo.
	runner.arm(1, func() {
		_, err := direct.Execute(context.Background(), inventory.OperationRequest{
			Type: inventory.OpDispatch, Payload: dispatchReq("ORD-R3", whGGM, line(camiseta, 2)),
		}, f.operator())
		assert.NoError(t, err)
	})

	res, err := f.exec(f.operator(), inventory.OpDispatch, dispatchReq("ORD-R4", whGGM, line(camiseta, 2)))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock, "el reintento ve el saldo nuevo")
	assert.Equal(t, inventory.CodeInsufficientStock, res.Code)
	assert.Equal(t, 2, runner.callCount())
	assert.Equal(t, 1, f.balance(t, camiseta, whGGM))
}

func TestPipeline_ErroresDeNegocioNoSeReintentan(t *testing.T) {
	runner := &scriptedRunner{}
	f := newFixture(t, withScriptedRunner(runner))
	f.open(t, camiseta, whGGM, 1)

	runner.arm(0, nil)
	_, err := f.exec(f.operator(), inventory.OpDispatch, dispatchReq("ORD-R5", whGGM, line(camiseta, 2)))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 1, runner.callCount())
}
