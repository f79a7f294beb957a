package inventory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// operation una operación concreta del pipeline.
type operation interface {
	name() OperationType
	permission() string
	resourceType() string
	auditAction() string
	payload() any
	// reservations cantidades a reservar por clave. Solo operaciones de salida.
	reservations() map[entity.StockKey]int
	// apply persiste el registro de dominio y luego sus eventos, dentro de la tx.
	apply(ctx context.Context, u *unit) error
}

func decodeOperation(req OperationRequest) (operation, error) {
	switch req.Type {
	case OpOpeningStock:
		return decodeAs(req.Payload, func(r dto.OpeningStockRequest) operation { return &openingStockOp{req: r} })
	case OpDispatch:
		return decodeAs(req.Payload, func(r dto.DispatchRequest) operation { return &dispatchOp{req: r} })
	case OpReturn:
		return decodeAs(req.Payload, func(r dto.ReturnRequest) operation { return &returnOp{req: r} })
	case OpDamage:
		return decodeAs(req.Payload, func(r dto.DamageRequest) operation { return &damageOp{req: r} })
	case OpRecovery:
		return decodeAs(req.Payload, func(r dto.RecoveryRequest) operation { return &recoveryOp{req: r} })
	case OpSelfTransfer:
		return decodeAs(req.Payload, func(r dto.SelfTransferRequest) operation { return &selfTransferOp{req: r} })
	case OpStatusUpdate:
		return decodeAs(req.Payload, func(r dto.StatusUpdateRequest) operation { return &statusUpdateOp{req: r} })
	default:
		return nil, domain.NewValidationError("type", "oneof")
	}
}

func decodeAs[T any](payload any, build func(T) operation) (operation, error) {
	var v T
	switch p := payload.(type) {
	case T:
		v = p
	case *T:
		if p == nil {
			return nil, domain.NewValidationError("payload", "required")
		}
		v = *p
	case json.RawMessage:
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
	case []byte:
		if err := json.Unmarshal(p, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
	default:
		return nil, domain.NewValidationError("payload", "type")
	}
	return build(v), nil
}

func newID() string { return uuid.New().String() }

// ensureRefs verifica que el producto exista y la bodega exista y esté activa.
func ensureRefs(ctx context.Context, tx TxRepos, barcode, warehouse string) error {
	if warehouse != "" {
		w, err := tx.Warehouses.GetByCode(ctx, warehouse)
		if err != nil {
			return err
		}
		if w == nil {
			return fmt.Errorf("bodega %s: %w", warehouse, domain.NewValidationError("warehouse", "exists"))
		}
		if !w.Active {
			return fmt.Errorf("bodega %s: %w", warehouse, domain.NewValidationError("warehouse", "active"))
		}
	}
	if barcode != "" {
		p, err := tx.Products.GetByBarcode(ctx, barcode)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("producto %s: %w", barcode, domain.NewValidationError("barcode", "exists"))
		}
	}
	return nil
}

// ─── Saldo inicial ────────────────────────────────────────────────────────────

type openingStockOp struct{ req dto.OpeningStockRequest }

func (o *openingStockOp) name() OperationType                   { return OpOpeningStock }
func (o *openingStockOp) permission() string                    { return entity.PermInventoryOpeningStock }
func (o *openingStockOp) resourceType() string                  { return entity.SourceOpening }
func (o *openingStockOp) auditAction() string                   { return entity.AuditCreate }
func (o *openingStockOp) payload() any                          { return o.req }
func (o *openingStockOp) reservations() map[entity.StockKey]int { return nil }

func (o *openingStockOp) apply(ctx context.Context, u *unit) error {
	if err := ensureRefs(ctx, u.tx, o.req.Barcode, o.req.Warehouse); err != nil {
		return err
	}
	rec := &entity.OpeningStock{
		ID:        newID(),
		Barcode:   o.req.Barcode,
		Variant:   o.req.Variant,
		Warehouse: o.req.Warehouse,
		Quantity:  o.req.Quantity,
		Notes:     o.req.Notes,
		CreatedBy: u.actor.UserID,
		CreatedAt: u.now,
	}
	if err := u.tx.Openings.Create(ctx, rec); err != nil {
		return err
	}
	u.recordPersisted(rec.ID)
	if err := u.appendEvent(ctx, &entity.StockEvent{
		Barcode:    rec.Barcode,
		Variant:    rec.Variant,
		Warehouse:  rec.Warehouse,
		Direction:  entity.DirectionIN,
		Quantity:   rec.Quantity,
		EventType:  entity.EventTypeOpening,
		SourceType: entity.SourceOpening,
		SourceID:   rec.ID,
	}); err != nil {
		return err
	}
	u.eventsPersisted()
	return nil
}

// ─── Despacho ────────────────────────────────────────────────────────────────

type dispatchOp struct{ req dto.DispatchRequest }

func (o *dispatchOp) name() OperationType  { return OpDispatch }
func (o *dispatchOp) permission() string   { return entity.PermDispatch }
func (o *dispatchOp) resourceType() string { return entity.SourceDispatch }
func (o *dispatchOp) auditAction() string  { return entity.AuditCreate }
func (o *dispatchOp) payload() any         { return o.req }

// reservations suma las líneas del mismo barcode: una sola reserva por clave.
func (o *dispatchOp) reservations() map[entity.StockKey]int {
	out := make(map[entity.StockKey]int, len(o.req.Lines))
	for _, l := range o.req.Lines {
		out[entity.StockKey{Barcode: l.Barcode, Warehouse: o.req.Warehouse}] += l.Quantity
	}
	return out
}

func (o *dispatchOp) apply(ctx context.Context, u *unit) error {
	if err := ensureRefs(ctx, u.tx, "", o.req.Warehouse); err != nil {
		return err
	}
	rec := &entity.Dispatch{
		ID:        newID(),
		OrderID:   o.req.OrderID,
		AWB:       o.req.AWB,
		Courier:   o.req.Courier,
		Warehouse: o.req.Warehouse,
		Status:    entity.StatusMachines[entity.SourceDispatch].Initial,
		CreatedBy: u.actor.UserID,
		CreatedAt: u.now,
		UpdatedAt: u.now,
	}
	for _, l := range o.req.Lines {
		if err := ensureRefs(ctx, u.tx, l.Barcode, ""); err != nil {
			return err
		}
		rec.Lines = append(rec.Lines, entity.DispatchLine{
			ID:            newID(),
			Barcode:       l.Barcode,
			Variant:       l.Variant,
			Quantity:      l.Quantity,
			DeclaredValue: l.DeclaredValue,
		})
	}
	if err := u.tx.Dispatches.Create(ctx, rec); err != nil {
		return err
	}
	u.recordPersisted(rec.ID)
	for _, l := range rec.Lines {
		if err := u.appendEvent(ctx, &entity.StockEvent{
			Barcode:      l.Barcode,
			Variant:      l.Variant,
			Warehouse:    rec.Warehouse,
			Direction:    entity.DirectionOUT,
			Quantity:     l.Quantity,
			EventType:    entity.EventTypeDispatch,
			SourceType:   entity.SourceDispatch,
			SourceID:     rec.ID,
			SourceLineID: l.ID,
		}); err != nil {
			return err
		}
	}
	u.eventsPersisted()
	u.details["order_id"] = rec.OrderID
	u.details["total_quantity"] = rec.TotalQuantity()
	return nil
}

// ─── Devolución ──────────────────────────────────────────────────────────────

type returnOp struct{ req dto.ReturnRequest }

func (o *returnOp) name() OperationType                   { return OpReturn }
func (o *returnOp) permission() string                    { return entity.PermReturn }
func (o *returnOp) resourceType() string                  { return entity.SourceReturn }
func (o *returnOp) auditAction() string                   { return entity.AuditCreate }
func (o *returnOp) payload() any                          { return o.req }
func (o *returnOp) reservations() map[entity.StockKey]int { return nil }

func (o *returnOp) apply(ctx context.Context, u *unit) error {
	if err := ensureRefs(ctx, u.tx, o.req.Barcode, o.req.Warehouse); err != nil {
		return err
	}
	rec := &entity.Return{
		ID:         newID(),
		OrderID:    o.req.OrderID,
		DispatchID: o.req.DispatchID,
		AWB:        o.req.AWB,
		Barcode:    o.req.Barcode,
		Variant:    o.req.Variant,
		Warehouse:  o.req.Warehouse,
		Quantity:   o.req.Quantity,
		Reason:     o.req.Reason,
		Status:     entity.StatusMachines[entity.SourceReturn].Initial,
		CreatedBy:  u.actor.UserID,
		CreatedAt:  u.now,
		UpdatedAt:  u.now,
	}
	if rec.DispatchID != "" {
		if err := o.checkAgainstDispatch(ctx, u, rec); err != nil {
			return err
		}
	}
	if err := u.tx.Returns.Create(ctx, rec); err != nil {
		return err
	}
	u.recordPersisted(rec.ID)
	if err := u.appendEvent(ctx, &entity.StockEvent{
		Barcode:    rec.Barcode,
		Variant:    rec.Variant,
		Warehouse:  rec.Warehouse,
		Direction:  entity.DirectionIN,
		Quantity:   rec.Quantity,
		EventType:  entity.EventTypeReturn,
		SourceType: entity.SourceReturn,
		SourceID:   rec.ID,
	}); err != nil {
		return err
	}
	u.eventsPersisted()
	u.details["order_id"] = rec.OrderID
	return nil
}

// checkAgainstDispatch completa orden y guía desde el despacho y valida que no
// se devuelva más de lo despachado para ese barcode. Un despacho cancelado ya
// devolvió todo a la bodega y no admite devoluciones.
func (o *returnOp) checkAgainstDispatch(ctx context.Context, u *unit, rec *entity.Return) error {
	d, err := u.tx.Dispatches.GetByID(ctx, rec.DispatchID)
	if err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("despacho %s: %w", rec.DispatchID, domain.NewValidationError("dispatch_id", "exists"))
	}
	// Con la clave tomada, una cancelación u otra devolución del mismo barcode
	// espera a que esta confirme; se relee el despacho por si cambió antes del lock.
	if err := u.lockKeys(ctx, entity.StockKey{Barcode: rec.Barcode, Warehouse: d.Warehouse}); err != nil {
		return err
	}
	if d, err = u.tx.Dispatches.GetByID(ctx, rec.DispatchID); err != nil {
		return err
	}
	if d.Status == entity.DispatchCancelled {
		return fmt.Errorf("despacho %s cancelado: %w", d.ID, domain.NewValidationError("dispatch_id", "not_cancelled"))
	}
	if rec.OrderID == "" {
		rec.OrderID = d.OrderID
	}
	if rec.OrderID != d.OrderID {
		return domain.NewValidationError("order_id", "eqfield=dispatch.order_id")
	}
	if rec.AWB == "" {
		rec.AWB = d.AWB
	}
	dispatched := 0
	for _, l := range d.Lines {
		if l.Barcode == rec.Barcode {
			dispatched += l.Quantity
		}
	}
	if dispatched == 0 {
		return domain.NewValidationError("barcode", "in_dispatch")
	}
	prior, err := u.tx.Returns.ListByOrder(ctx, d.OrderID)
	if err != nil {
		return err
	}
	returned := 0
	for _, r := range prior {
		if r.DispatchID == d.ID && r.Barcode == rec.Barcode {
			returned += r.Quantity
		}
	}
	if returned+rec.Quantity > dispatched {
		return fmt.Errorf("devueltas %d + %d de %d despachadas: %w",
			returned, rec.Quantity, dispatched, domain.NewValidationError("quantity", "lte_dispatched"))
	}
	return nil
}

// ─── Daño ────────────────────────────────────────────────────────────────────

type damageOp struct{ req dto.DamageRequest }

func (o *damageOp) name() OperationType  { return OpDamage }
func (o *damageOp) permission() string   { return entity.PermDamage }
func (o *damageOp) resourceType() string { return entity.SourceDamage }
func (o *damageOp) auditAction() string  { return entity.AuditCreate }
func (o *damageOp) payload() any         { return o.req }

func (o *damageOp) reservations() map[entity.StockKey]int {
	return map[entity.StockKey]int{{Barcode: o.req.Barcode, Warehouse: o.req.Warehouse}: o.req.Quantity}
}

func (o *damageOp) apply(ctx context.Context, u *unit) error {
	if err := ensureRefs(ctx, u.tx, o.req.Barcode, o.req.Warehouse); err != nil {
		return err
	}
	rec := &entity.Damage{
		ID:        newID(),
		Barcode:   o.req.Barcode,
		Variant:   o.req.Variant,
		Warehouse: o.req.Warehouse,
		Quantity:  o.req.Quantity,
		Reason:    o.req.Reason,
		Status:    entity.StatusMachines[entity.SourceDamage].Initial,
		CreatedBy: u.actor.UserID,
		CreatedAt: u.now,
		UpdatedAt: u.now,
	}
	if err := u.tx.Damages.Create(ctx, rec); err != nil {
		return err
	}
	u.recordPersisted(rec.ID)
	if err := u.appendEvent(ctx, &entity.StockEvent{
		Barcode:    rec.Barcode,
		Variant:    rec.Variant,
		Warehouse:  rec.Warehouse,
		Direction:  entity.DirectionOUT,
		Quantity:   rec.Quantity,
		EventType:  entity.EventTypeDamage,
		SourceType: entity.SourceDamage,
		SourceID:   rec.ID,
	}); err != nil {
		return err
	}
	u.eventsPersisted()
	return nil
}

// ─── Recuperación ────────────────────────────────────────────────────────────

type recoveryOp struct{ req dto.RecoveryRequest }

func (o *recoveryOp) name() OperationType                   { return OpRecovery }
func (o *recoveryOp) permission() string                    { return entity.PermRecovery }
func (o *recoveryOp) resourceType() string                  { return entity.SourceRecovery }
func (o *recoveryOp) auditAction() string                   { return entity.AuditCreate }
func (o *recoveryOp) payload() any                          { return o.req }
func (o *recoveryOp) reservations() map[entity.StockKey]int { return nil }

func (o *recoveryOp) apply(ctx context.Context, u *unit) error {
	if err := ensureRefs(ctx, u.tx, o.req.Barcode, o.req.Warehouse); err != nil {
		return err
	}
	if o.req.DamageID != "" {
		d, err := u.tx.Damages.GetByID(ctx, o.req.DamageID)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("daño %s: %w", o.req.DamageID, domain.NewValidationError("damage_id", "exists"))
		}
		if d.Barcode != o.req.Barcode {
			return domain.NewValidationError("barcode", "eqfield=damage.barcode")
		}
		if d.Warehouse != o.req.Warehouse {
			return domain.NewValidationError("warehouse", "eqfield=damage.warehouse")
		}
		if err := u.lockKeys(ctx, entity.StockKey{Barcode: d.Barcode, Warehouse: d.Warehouse}); err != nil {
			return err
		}
		prior, err := u.tx.Recoveries.ListByDamage(ctx, d.ID)
		if err != nil {
			return err
		}
		recovered := 0
		for _, r := range prior {
			recovered += r.Quantity
		}
		if recovered+o.req.Quantity > d.Quantity {
			return fmt.Errorf("recuperadas %d + %d de %d dañadas: %w",
				recovered, o.req.Quantity, d.Quantity, domain.NewValidationError("quantity", "lte_damaged"))
		}
	}
	rec := &entity.Recovery{
		ID:        newID(),
		DamageID:  o.req.DamageID,
		Barcode:   o.req.Barcode,
		Variant:   o.req.Variant,
		Warehouse: o.req.Warehouse,
		Quantity:  o.req.Quantity,
		Notes:     o.req.Notes,
		Status:    entity.StatusMachines[entity.SourceRecovery].Initial,
		CreatedBy: u.actor.UserID,
		CreatedAt: u.now,
		UpdatedAt: u.now,
	}
	if err := u.tx.Recoveries.Create(ctx, rec); err != nil {
		return err
	}
	u.recordPersisted(rec.ID)
	if err := u.appendEvent(ctx, &entity.StockEvent{
		Barcode:    rec.Barcode,
		Variant:    rec.Variant,
		Warehouse:  rec.Warehouse,
		Direction:  entity.DirectionIN,
		Quantity:   rec.Quantity,
		EventType:  entity.EventTypeRecovery,
		SourceType: entity.SourceRecovery,
		SourceID:   rec.ID,
	}); err != nil {
		return err
	}
	u.eventsPersisted()
	return nil
}

// ─── Traslado entre bodegas ──────────────────────────────────────────────────

type selfTransferOp struct{ req dto.SelfTransferRequest }

func (o *selfTransferOp) name() OperationType  { return OpSelfTransfer }
func (o *selfTransferOp) permission() string   { return entity.PermSelfTransfer }
func (o *selfTransferOp) resourceType() string { return entity.SourceSelfTransfer }
func (o *selfTransferOp) auditAction() string  { return entity.AuditCreate }
func (o *selfTransferOp) payload() any         { return o.req }

func (o *selfTransferOp) reservations() map[entity.StockKey]int {
	return map[entity.StockKey]int{{Barcode: o.req.Barcode, Warehouse: o.req.FromWarehouse}: o.req.Quantity}
}

func (o *selfTransferOp) apply(ctx context.Context, u *unit) error {
	if err := ensureRefs(ctx, u.tx, o.req.Barcode, o.req.FromWarehouse); err != nil {
		return err
	}
	if err := ensureRefs(ctx, u.tx, "", o.req.ToWarehouse); err != nil {
		return err
	}
	rec := &entity.SelfTransfer{
		ID:            newID(),
		Barcode:       o.req.Barcode,
		Variant:       o.req.Variant,
		FromWarehouse: o.req.FromWarehouse,
		ToWarehouse:   o.req.ToWarehouse,
		Quantity:      o.req.Quantity,
		Notes:         o.req.Notes,
		Status:        entity.StatusMachines[entity.SourceSelfTransfer].Initial,
		CreatedBy:     u.actor.UserID,
		CreatedAt:     u.now,
		UpdatedAt:     u.now,
	}
	if err := u.tx.Transfers.Create(ctx, rec); err != nil {
		return err
	}
	u.recordPersisted(rec.ID)
	if err := u.appendEvent(ctx, &entity.StockEvent{
		Barcode:    rec.Barcode,
		Variant:    rec.Variant,
		Warehouse:  rec.FromWarehouse,
		Direction:  entity.DirectionOUT,
		Quantity:   rec.Quantity,
		EventType:  entity.EventTypeTransferOut,
		SourceType: entity.SourceSelfTransfer,
		SourceID:   rec.ID,
	}); err != nil {
		return err
	}
	u.eventsPersisted()
	return nil
}
