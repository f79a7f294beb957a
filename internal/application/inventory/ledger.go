package inventory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

// Ledger es el registro append-only de eventos de stock. El saldo de una clave
// siempre se deriva del historial; el cache solo evita repetir el fold.
type Ledger struct {
	events repository.StockEventRepository
	cache  *balanceCache
}

// NewLedger construye el ledger sobre el repositorio de lectura (fuera de tx).
func NewLedger(events repository.StockEventRepository) *Ledger {
	return &Ledger{events: events, cache: newBalanceCache()}
}

// Append valida y persiste el evento dentro de la tx. Todo OUT debe venir
// respaldado por una reserva de la misma clave con cantidad suficiente.
func (l *Ledger) Append(ctx context.Context, tx TxRepos, ev *entity.StockEvent, token *ReservationToken) error {
	if err := validateEvent(ev); err != nil {
		return err
	}
	if ev.Direction == entity.DirectionOUT {
		if token == nil {
			return fmt.Errorf("salida sin reserva para %s", ev.Key())
		}
		if err := token.consume(ev.Key(), ev.Quantity); err != nil {
			return err
		}
	}
	if err := tx.Events.Append(ctx, ev); err != nil {
		return err
	}
	l.cache.invalidate(ev.Key())
	return nil
}

// Balance saldo actual de (barcode, bodega). Cero si no hay eventos.
func (l *Ledger) Balance(ctx context.Context, barcode, warehouse string) (int, error) {
	key := entity.StockKey{Barcode: barcode, Warehouse: warehouse}
	if v, ok := l.cache.get(key); ok {
		return v, nil
	}
	gen := l.cache.generation(key)
	events, err := l.events.ListByKey(ctx, key)
	if err != nil {
		return 0, err
	}
	bal := inventory.Balance(events)
	l.cache.put(key, bal, gen)
	return bal, nil
}

// History eventos de (barcode, bodega) en orden (OccurredAt, ID).
func (l *Ledger) History(ctx context.Context, barcode, warehouse string) ([]entity.StockEvent, error) {
	events, err := l.events.ListByKey(ctx, entity.StockKey{Barcode: barcode, Warehouse: warehouse})
	if err != nil {
		return nil, err
	}
	inventory.SortEvents(events)
	return events, nil
}

// Invalidate descarta el saldo cacheado de las claves. Se llama de nuevo después
// del commit porque una lectura concurrente pudo cachear el valor previo.
func (l *Ledger) Invalidate(keys ...entity.StockKey) {
	for _, k := range keys {
		l.cache.invalidate(k)
	}
}

func validateEvent(ev *entity.StockEvent) error {
	switch {
	case ev == nil:
		return domain.NewValidationError("event", "required")
	case ev.Barcode == "":
		return domain.NewValidationError("barcode", "required")
	case ev.Warehouse == "":
		return domain.NewValidationError("warehouse", "required")
	case ev.Quantity <= 0:
		return domain.NewValidationError("quantity", "gt")
	case ev.Direction != entity.DirectionIN && ev.Direction != entity.DirectionOUT:
		return domain.NewValidationError("direction", "oneof")
	case ev.EventType == "":
		return domain.NewValidationError("event_type", "required")
	}
	return nil
}

// balanceCache guarda saldos por clave con un contador de generación: un valor
// leído antes de una invalidación nunca se guarda después de ella.
type balanceCache struct {
	mu     sync.Mutex
	gens   map[entity.StockKey]uint64
	values map[entity.StockKey]cachedBalance
}

type cachedBalance struct {
	value int
	gen   uint64
}

func newBalanceCache() *balanceCache {
	return &balanceCache{
		gens:   make(map[entity.StockKey]uint64),
		values: make(map[entity.StockKey]cachedBalance),
	}
}

func (c *balanceCache) get(key entity.StockKey) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok || v.gen != c.gens[key] {
		return 0, false
	}
	return v.value, true
}

func (c *balanceCache) generation(key entity.StockKey) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key]
}

func (c *balanceCache) put(key entity.StockKey, value int, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return
	}
	c.values[key] = cachedBalance{value: value, gen: gen}
}

func (c *balanceCache) invalidate(key entity.StockKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[key]++
	delete(c.values, key)
}
