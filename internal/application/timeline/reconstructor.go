package timeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

// Sources repositorios de lectura que el reconstructor une con el ledger.
type Sources struct {
	Events     repository.StockEventRepository
	Dispatches repository.DispatchRepository
	Returns    repository.ReturnRepository
	Damages    repository.DamageRepository
	Recoveries repository.RecoveryRepository
	Transfers  repository.SelfTransferRepository
}

// Reconstructor arma líneas de tiempo en lectura: eventos del ledger más los
// campos del registro que los originó. No guarda nada propio.
type Reconstructor struct {
	src Sources
}

// NewReconstructor construye el reconstructor.
func NewReconstructor(src Sources) *Reconstructor {
	return &Reconstructor{src: src}
}

// TimelineForProduct movimientos del barcode en todas las bodegas, en orden
// (OccurredAt, EventID). El saldo inicial (OPENING) no es un movimiento y se omite.
func (r *Reconstructor) TimelineForProduct(ctx context.Context, barcode string) ([]entity.TimelineEntry, error) {
	if barcode == "" {
		return []entity.TimelineEntry{}, nil
	}
	events, err := r.src.Events.ListByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	movements := events[:0:0]
	for _, ev := range events {
		if ev.EventType != entity.EventTypeOpening {
			movements = append(movements, ev)
		}
	}
	return r.project(ctx, movements, newRecordCache())
}

// TimelineForOrder despachos y devoluciones de la orden con sus eventos unidos
// en una sola secuencia (una entrada por línea despachada).
func (r *Reconstructor) TimelineForOrder(ctx context.Context, orderID string) (*entity.OrderDetail, error) {
	detail := &entity.OrderDetail{
		OrderID:    orderID,
		Dispatches: []entity.Dispatch{},
		Returns:    []entity.Return{},
		Entries:    []entity.TimelineEntry{},
	}
	if orderID == "" {
		return detail, nil
	}
	dispatches, err := r.src.Dispatches.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	returns, err := r.src.Returns.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	detail.Dispatches = append(detail.Dispatches, dispatches...)
	detail.Returns = append(detail.Returns, returns...)
	detail.Status = orderStatus(dispatches, returns)

	cache := newRecordCache()
	dispatchIDs := make([]string, 0, len(dispatches))
	for i := range dispatches {
		dispatchIDs = append(dispatchIDs, dispatches[i].ID)
		cache.dispatches[dispatches[i].ID] = &dispatches[i]
	}
	returnIDs := make([]string, 0, len(returns))
	for i := range returns {
		returnIDs = append(returnIDs, returns[i].ID)
		cache.returns[returns[i].ID] = &returns[i]
	}

	var events []entity.StockEvent
	if len(dispatchIDs) > 0 {
		evs, err := r.src.Events.ListBySources(ctx, entity.SourceDispatch, dispatchIDs)
		if err != nil {
			return nil, err
		}
		events = append(events, evs...)
	}
	if len(returnIDs) > 0 {
		evs, err := r.src.Events.ListBySources(ctx, entity.SourceReturn, returnIDs)
		if err != nil {
			return nil, err
		}
		events = append(events, evs...)
	}
	entries, err := r.project(ctx, events, cache)
	if err != nil {
		return nil, err
	}
	detail.Entries = entries
	return detail, nil
}

// orderStatus estado del último despacho; sin despachos, el de la última devolución.
func orderStatus(dispatches []entity.Dispatch, returns []entity.Return) string {
	if n := len(dispatches); n > 0 {
		return dispatches[n-1].Status
	}
	if n := len(returns); n > 0 {
		return returns[n-1].Status
	}
	return ""
}

func (r *Reconstructor) project(ctx context.Context, events []entity.StockEvent, cache *recordCache) ([]entity.TimelineEntry, error) {
	inventory.SortEvents(events)
	out := make([]entity.TimelineEntry, 0, len(events))
	for _, ev := range events {
		desc, ref, err := r.describe(ctx, ev, cache)
		if err != nil {
			return nil, err
		}
		out = append(out, entity.TimelineEntry{
			EventID:     ev.ID,
			Type:        ev.EventType,
			Description: desc,
			Quantity:    ev.Quantity,
			Direction:   ev.Direction,
			Warehouse:   ev.Warehouse,
			Reference:   ref,
			Timestamp:   ev.OccurredAt,
			Barcode:     ev.Barcode,
			Actor:       ev.CreatedBy,
		})
	}
	return out, nil
}

// describe une el evento con su registro de origen. Si el registro no aparece
// se usa una descripción genérica con el id de origen como referencia.
func (r *Reconstructor) describe(ctx context.Context, ev entity.StockEvent, cache *recordCache) (string, string, error) {
	switch ev.SourceType {
	case entity.SourceDispatch:
		d, err := cache.dispatch(ctx, r.src.Dispatches, ev.SourceID)
		if err != nil || d == nil {
			return genericDescription(ev), ev.SourceID, err
		}
		ref := firstNonEmpty(d.AWB, d.ID)
		if ev.EventType == entity.EventTypeReversal {
			return fmt.Sprintf("Reverso por cancelación del despacho de la orden %s", d.OrderID), ref, nil
		}
		desc := "Despachado a la orden " + d.OrderID
		if via := joinNonEmpty(d.Courier, guide(d.AWB)); via != "" {
			desc += " (" + via + ")"
		}
		return desc, ref, nil

	case entity.SourceReturn:
		rt, err := cache.ret(ctx, r.src.Returns, ev.SourceID)
		if err != nil || rt == nil {
			return genericDescription(ev), ev.SourceID, err
		}
		desc := "Devolución"
		if rt.OrderID != "" {
			desc += " de la orden " + rt.OrderID
		}
		if rt.Reason != "" {
			desc += ": " + rt.Reason
		}
		return desc, firstNonEmpty(rt.AWB, rt.ID), nil

	case entity.SourceDamage:
		d, err := r.src.Damages.GetByID(ctx, ev.SourceID)
		if err != nil || d == nil {
			return genericDescription(ev), ev.SourceID, err
		}
		return "Daño reportado: " + d.Reason, d.ID, nil

	case entity.SourceRecovery:
		rc, err := r.src.Recoveries.GetByID(ctx, ev.SourceID)
		if err != nil || rc == nil {
			return genericDescription(ev), ev.SourceID, err
		}
		desc := "Recuperación"
		if rc.DamageID != "" {
			desc += " del daño " + rc.DamageID
		}
		if rc.Notes != "" {
			desc += ": " + rc.Notes
		}
		return desc, rc.ID, nil

	case entity.SourceSelfTransfer:
		t, err := r.src.Transfers.GetByID(ctx, ev.SourceID)
		if err != nil || t == nil {
			return genericDescription(ev), ev.SourceID, err
		}
		switch ev.EventType {
		case entity.EventTypeTransferOut:
			return fmt.Sprintf("Traslado de %s a %s", t.FromWarehouse, t.ToWarehouse), t.ID, nil
		case entity.EventTypeTransferIn:
			return fmt.Sprintf("Traslado recibido desde %s", t.FromWarehouse), t.ID, nil
		default:
			return fmt.Sprintf("Reverso por cancelación del traslado a %s", t.ToWarehouse), t.ID, nil
		}
	}
	return genericDescription(ev), ev.SourceID, nil
}

var genericDescriptions = map[string]string{
	entity.EventTypeDispatch:    "Despacho",
	entity.EventTypeReturn:      "Devolución",
	entity.EventTypeDamage:      "Daño",
	entity.EventTypeRecovery:    "Recuperación",
	entity.EventTypeTransferOut: "Salida por traslado",
	entity.EventTypeTransferIn:  "Entrada por traslado",
	entity.EventTypeOpening:     "Saldo inicial",
	entity.EventTypeReversal:    "Reverso",
}

func genericDescription(ev entity.StockEvent) string {
	if d, ok := genericDescriptions[ev.EventType]; ok {
		return d
	}
	return ev.EventType
}

func guide(awb string) string {
	if awb == "" {
		return ""
	}
	return "guía " + awb
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// recordCache evita releer el mismo despacho o devolución por cada línea.
type recordCache struct {
	dispatches map[string]*entity.Dispatch
	returns    map[string]*entity.Return
}

func newRecordCache() *recordCache {
	return &recordCache{
		dispatches: make(map[string]*entity.Dispatch),
		returns:    make(map[string]*entity.Return),
	}
}

func (c *recordCache) dispatch(ctx context.Context, repo repository.DispatchRepository, id string) (*entity.Dispatch, error) {
	if d, ok := c.dispatches[id]; ok {
		return d, nil
	}
	d, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.dispatches[id] = d
	return d, nil
}

func (c *recordCache) ret(ctx context.Context, repo repository.ReturnRepository, id string) (*entity.Return, error) {
	if r, ok := c.returns[id]; ok {
		return r, nil
	}
	r, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.returns[id] = r
	return r, nil
}
