package inventory

import (
	"context"
	"fmt"
	"maps"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// statusUpdateOp cambia el estado de un registro de dominio. Las transiciones que
// mueven stock agregan eventos nuevos; el historial nunca se modifica.
type statusUpdateOp struct{ req dto.StatusUpdateRequest }

func (o *statusUpdateOp) name() OperationType                   { return OpStatusUpdate }
func (o *statusUpdateOp) permission() string                    { return entity.PermOrdersStatusUpdate }
func (o *statusUpdateOp) resourceType() string                  { return o.req.RecordType }
func (o *statusUpdateOp) auditAction() string                   { return entity.AuditUpdate }
func (o *statusUpdateOp) payload() any                          { return o.req }
func (o *statusUpdateOp) reservations() map[entity.StockKey]int { return nil }

func (o *statusUpdateOp) apply(ctx context.Context, u *unit) error {
	machine, ok := entity.StatusMachines[o.req.RecordType]
	if !ok {
		return domain.NewValidationError("record_type", "oneof")
	}
	if !machine.Valid(o.req.Status) {
		return fmt.Errorf("estado %q para %s: %w", o.req.Status, o.req.RecordType, domain.NewValidationError("status", "oneof"))
	}

	var (
		from string
		err  error
	)
	switch o.req.RecordType {
	case entity.SourceDispatch:
		from, err = o.updateDispatch(ctx, u, machine)
	case entity.SourceReturn:
		from, err = o.updateSimple(ctx, u, machine, u.tx.Returns.UpdateStatus, func() (string, bool, error) {
			r, err := u.tx.Returns.GetByID(ctx, o.req.RecordID)
			if r == nil || err != nil {
				return "", false, err
			}
			return r.Status, true, nil
		})
	case entity.SourceDamage:
		from, err = o.updateSimple(ctx, u, machine, u.tx.Damages.UpdateStatus, func() (string, bool, error) {
			d, err := u.tx.Damages.GetByID(ctx, o.req.RecordID)
			if d == nil || err != nil {
				return "", false, err
			}
			return d.Status, true, nil
		})
	case entity.SourceRecovery:
		from, err = o.updateSimple(ctx, u, machine, u.tx.Recoveries.UpdateStatus, func() (string, bool, error) {
			r, err := u.tx.Recoveries.GetByID(ctx, o.req.RecordID)
			if r == nil || err != nil {
				return "", false, err
			}
			return r.Status, true, nil
		})
	case entity.SourceSelfTransfer:
		from, err = o.updateTransfer(ctx, u, machine)
	default:
		return domain.NewValidationError("record_type", "oneof")
	}
	if err != nil {
		return err
	}
	u.eventsPersisted()
	u.details["from_status"] = from
	u.details["to_status"] = o.req.Status
	if o.req.Reason != "" {
		u.details["reason"] = o.req.Reason
	}
	return nil
}

func (o *statusUpdateOp) notFound() error {
	return fmt.Errorf("%s %s: %w: %w", o.req.RecordType, o.req.RecordID, domain.ErrValidation, domain.ErrNotFound)
}

func (o *statusUpdateOp) checkTransition(machine entity.StatusMachine, from string) error {
	if !machine.CanTransition(from, o.req.Status) {
		return fmt.Errorf("%s → %s: %w: %w", from, o.req.Status, domain.ErrValidation, domain.ErrInvalidTransition)
	}
	return nil
}

func (o *statusUpdateOp) updateSimple(
	ctx context.Context,
	u *unit,
	machine entity.StatusMachine,
	update func(ctx context.Context, id, from, to string) error,
	current func() (string, bool, error),
) (string, error) {
	from, found, err := current()
	if err != nil {
		return "", err
	}
	if !found {
		return "", o.notFound()
	}
	if err := o.checkTransition(machine, from); err != nil {
		return "", err
	}
	if err := update(ctx, o.req.RecordID, from, o.req.Status); err != nil {
		return "", err
	}
	u.recordPersisted(o.req.RecordID)
	return from, nil
}

// updateDispatch al cancelar devuelve a la bodega lo despachado que no haya vuelto
// ya por devoluciones, con un REVERSAL IN por línea.
func (o *statusUpdateOp) updateDispatch(ctx context.Context, u *unit, machine entity.StatusMachine) (string, error) {
	d, err := u.tx.Dispatches.GetByID(ctx, o.req.RecordID)
	if err != nil {
		return "", err
	}
	if d == nil {
		return "", o.notFound()
	}
	if o.req.Status == entity.DispatchCancelled {
		// Mismas claves que toma una devolución contra este despacho.
		if err := u.lockKeys(ctx, dispatchKeys(d)...); err != nil {
			return "", err
		}
		if d, err = u.tx.Dispatches.GetByID(ctx, o.req.RecordID); err != nil {
			return "", err
		}
	}
	if err := o.checkTransition(machine, d.Status); err != nil {
		return "", err
	}
	if err := u.tx.Dispatches.UpdateStatus(ctx, d.ID, d.Status, o.req.Status); err != nil {
		return "", err
	}
	u.recordPersisted(d.ID)
	u.details["order_id"] = d.OrderID

	if o.req.Status == entity.DispatchCancelled {
		returned, err := returnedByBarcode(ctx, u, d)
		if err != nil {
			return "", err
		}
		if len(returned) > 0 {
			u.details["already_returned"] = maps.Clone(returned)
		}
		if err := o.reverse(ctx, u, entity.SourceDispatch, d.ID, entity.EventTypeDispatch, returned); err != nil {
			return "", err
		}
	}
	return d.Status, nil
}

// updateTransfer RECEIVED ingresa en destino; CANCELLED devuelve a origen.
func (o *statusUpdateOp) updateTransfer(ctx context.Context, u *unit, machine entity.StatusMachine) (string, error) {
	t, err := u.tx.Transfers.GetByID(ctx, o.req.RecordID)
	if err != nil {
		return "", err
	}
	if t == nil {
		return "", o.notFound()
	}
	if err := o.checkTransition(machine, t.Status); err != nil {
		return "", err
	}
	if err := u.tx.Transfers.UpdateStatus(ctx, t.ID, t.Status, o.req.Status); err != nil {
		return "", err
	}
	u.recordPersisted(t.ID)

	switch o.req.Status {
	case entity.TransferReceived:
		if err := u.appendEvent(ctx, &entity.StockEvent{
			Barcode:    t.Barcode,
			Variant:    t.Variant,
			Warehouse:  t.ToWarehouse,
			Direction:  entity.DirectionIN,
			Quantity:   t.Quantity,
			EventType:  entity.EventTypeTransferIn,
			SourceType: entity.SourceSelfTransfer,
			SourceID:   t.ID,
		}); err != nil {
			return "", err
		}
	case entity.TransferCancelled:
		if err := o.reverse(ctx, u, entity.SourceSelfTransfer, t.ID, entity.EventTypeTransferOut, nil); err != nil {
			return "", err
		}
	}
	return t.Status, nil
}

// reverse agrega un REVERSAL IN por cada evento OUT del tipo indicado del registro.
// skip descuenta, por barcode y en orden de línea, unidades que ya volvieron al
// stock por otro camino; una línea cubierta por completo no genera reverso.
func (o *statusUpdateOp) reverse(ctx context.Context, u *unit, sourceType, sourceID, eventType string, skip map[string]int) error {
	events, err := u.tx.Events.ListBySources(ctx, sourceType, []string{sourceID})
	if err != nil {
		return err
	}
	for _, ev := range events {
		if ev.EventType != eventType || ev.Direction != entity.DirectionOUT {
			continue
		}
		qty := ev.Quantity
		if covered := min(skip[ev.Barcode], qty); covered > 0 {
			skip[ev.Barcode] -= covered
			qty -= covered
		}
		if qty == 0 {
			continue
		}
		reversed := ev.ID
		if err := u.appendEvent(ctx, &entity.StockEvent{
			Barcode:         ev.Barcode,
			Variant:         ev.Variant,
			Warehouse:       ev.Warehouse,
			Direction:       entity.DirectionIN,
			Quantity:        qty,
			EventType:       entity.EventTypeReversal,
			SourceType:      sourceType,
			SourceID:        sourceID,
			SourceLineID:    ev.SourceLineID,
			ReversesEventID: &reversed,
		}); err != nil {
			return err
		}
	}
	return nil
}

// returnedByBarcode unidades devueltas contra el despacho, por barcode.
func returnedByBarcode(ctx context.Context, u *unit, d *entity.Dispatch) (map[string]int, error) {
	returns, err := u.tx.Returns.ListByOrder(ctx, d.OrderID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int)
	for _, r := range returns {
		if r.DispatchID == d.ID {
			out[r.Barcode] += r.Quantity
		}
	}
	return out, nil
}

// dispatchKeys claves (barcode, bodega del despacho) de sus líneas.
func dispatchKeys(d *entity.Dispatch) []entity.StockKey {
	keys := make([]entity.StockKey, 0, len(d.Lines))
	for _, l := range d.Lines {
		keys = append(keys, entity.StockKey{Barcode: l.Barcode, Warehouse: d.Warehouse})
	}
	return keys
}
