package inventory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger-api/internal/application/auth"
	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

func (f *fixture) cancelDispatch(dispatchID string) (*inventory.OperationResult, error) {
	return f.exec(f.admin(), inventory.OpStatusUpdate, dto.StatusUpdateRequest{
		RecordType: entity.SourceDispatch, RecordID: dispatchID, Status: entity.DispatchCancelled,
	})
}

// fieldTag regla de validación reportada para field, o "" si no está.
func fieldTag(t *testing.T, err error, field string) string {
	t.Helper()
	var ve domain.ValidationErrors
	require.True(t, errors.As(err, &ve), "se esperaba un error de validación, llegó %v", err)
	for _, fe := range ve {
		if fe.Field == field {
			return fe.Tag
		}
	}
	return ""
}

func TestStatusUpdate_DevolucionContraDespachoCanceladoSeRechaza(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 5)

	d, err := f.exec(f.operator(), inventory.OpDispatch, dispatchReq("ORD-20", whGGM, line(camiseta, 5)))
	require.NoError(t, err)
	_, err = f.cancelDispatch(d.ResourceID)
	require.NoError(t, err)
	require.Equal(t, 5, f.balance(t, camiseta, whGGM))

	res, err := f.exec(f.operator(), inventory.OpReturn, dto.ReturnRequest{
		DispatchID: d.ResourceID, Barcode: camiseta, Warehouse: whGGM, Quantity: 5,
	})
	require.Error(t, err)
	assert.Equal(t, inventory.CodeValidation, res.Code)
	assert.Equal(t, "not_cancelled", fieldTag(t, err, "dispatch_id"))
	assert.Equal(t, 5, f.balance(t, camiseta, whGGM), "la cancelación ya devolvió las unidades")

	returns, err := f.store.Returns().ListByOrder(context.Background(), "ORD-20")
	require.NoError(t, err)
	assert.Empty(t, returns)
}

func TestStatusUpdate_CancelarTrasDevolucionReversaSoloLoPendiente(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 5)

	d, err := f.exec(f.operator(), inventory.OpDispatch, dispatchReq("ORD-21", whGGM, line(camiseta, 3), line(camiseta, 2)))
	require.NoError(t, err)
	require.Len(t, d.EventIDs, 2)

	_, err = f.exec(f.operator(), inventory.OpReturn, dto.ReturnRequest{
		DispatchID: d.ResourceID, Barcode: camiseta, Warehouse: whGGM, Quantity: 4,
	})
	require.NoError(t, err)
	require.Equal(t, 4, f.balance(t, camiseta, whGGM))

	res, err := f.cancelDispatch(d.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, 5, f.balance(t, camiseta, whGGM), "solo vuelve la unidad que no se había devuelto")
	require.Len(t, res.EventIDs, 1, "la primera línea quedó cubierta por la devolución")

	events, err := f.store.StockEvents().ListBySources(context.Background(), entity.SourceDispatch, []string{d.ResourceID})
	require.NoError(t, err)
	var reversals []entity.StockEvent
	for _, ev := range events {
		if ev.EventType == entity.EventTypeReversal {
			reversals = append(reversals, ev)
		}
	}
	require.Len(t, reversals, 1)
	assert.Equal(t, 1, reversals[0].Quantity)
	require.NotNil(t, reversals[0].ReversesEventID)
	assert.Equal(t, d.EventIDs[1], *reversals[0].ReversesEventID)
}

func TestStatusUpdate_CancelarDespachoDevueltoPorCompletoNoMueveStock(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 5)

	d, err := f.exec(f.operator(), inventory.OpDispatch, dispatchReq("ORD-22", whGGM, line(camiseta, 2)))
	require.NoError(t, err)
	_, err = f.exec(f.operator(), inventory.OpReturn, dto.ReturnRequest{
		DispatchID: d.ResourceID, Barcode: camiseta, Warehouse: whGGM, Quantity: 2,
	})
	require.NoError(t, err)

	res, err := f.cancelDispatch(d.ResourceID)
	require.NoError(t, err)
	assert.Empty(t, res.EventIDs)
	assert.Equal(t, 5, f.balance(t, camiseta, whGGM))

	got, err := f.store.Dispatches().GetByID(context.Background(), d.ResourceID)
	require.NoError(t, err)
	assert.Equal(t, entity.DispatchCancelled, got.Status, "el estado cambia aunque no haya nada que reversar")
}

func TestStatusUpdate_CancelacionesConcurrentesReversanUnaVez(t *testing.T) {
	f := newFixture(t)
	f.open(t, camiseta, whGGM, 5)
	d, err := f.exec(f.operator(), inventory.OpDispatch, dispatchReq("ORD-23", whGGM, line(camiseta, 5)))
	require.NoError(t, err)

	const workers = 8
	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.cancelDispatch(d.ResourceID)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrConcurrencyConflict):
			default:
				t.Errorf("error inesperado: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, 5, f.balance(t, camiseta, whGGM))
}

func TestStatusUpdate_CambioConcurrenteDeTrasladoNoDuplicaIngreso(t *testing.T) {
	runner := &scriptedRunner{}
	f := newFixture(t, withScriptedRunner(runner))
	f.open(t, camiseta, whGGM, 10)

	tr, err := f.exec(f.operator(), inventory.OpSelfTransfer, dto.SelfTransferRequest{
		Barcode: camiseta, FromWarehouse: whGGM, ToWarehouse: whBOG, Quantity: 4,
	})
	require.NoError(t, err)

	manager := f.actors[auth.RoleWarehouseManager]
	received := dto.StatusUpdateRequest{RecordType: entity.SourceSelfTransfer, RecordID: tr.ResourceID, Status: entity.TransferReceived}
	direct := inventory.NewPipeline(inventory.PipelineDeps{TxRunner: f.store, Gate: f.gate, Ledger: f.ledger})

	// Otro RECEIVED confirma entre la lectura del estado y el commit de esta operación.
	runner.arm(0, func() {
		_, err := direct.Execute(context.Background(), inventory.OperationRequest{Type: inventory.OpStatusUpdate, Payload: received}, manager)
		assert.NoError(t, err)
	})
	_, err = f.exec(manager, inventory.OpStatusUpdate, received)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "el reintento ve el traslado ya recibido")
	assert.Equal(t, 2, runner.callCount())

	f.ledger.Invalidate(entity.StockKey{Barcode: camiseta, Warehouse: whBOG})
	assert.Equal(t, 4, f.balance(t, camiseta, whBOG), "un solo TRANSFER_IN")
	assert.Equal(t, 6, f.balance(t, camiseta, whGGM))
}
