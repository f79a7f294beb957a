package inventory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/inventory"
)

// Availability resultado de una consulta de disponibilidad (sin efectos).
type Availability struct {
	Barcode    string
	Warehouse  string
	Requested  int
	Available  int
	Sufficient bool
}

// ReservationToken prueba de que la cantidad fue verificada contra el saldo con
// la clave bloqueada. Solo vale dentro de la transacción que lo creó.
type ReservationToken struct {
	ID       string
	Key      entity.StockKey
	Quantity int

	mu        sync.Mutex
	remaining int
	released  bool
}

// Remaining unidades reservadas aún sin consumir.
func (t *ReservationToken) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Release invalida el token. El lock de la clave lo libera el fin de la transacción.
func (t *ReservationToken) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.released = true
}

func (t *ReservationToken) consume(key entity.StockKey, qty int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.released:
		return fmt.Errorf("reserva %s ya liberada", t.ID)
	case key != t.Key:
		return fmt.Errorf("reserva %s es de %s, no de %s", t.ID, t.Key, key)
	case qty > t.remaining:
		return fmt.Errorf("reserva %s: se intentan consumir %d de %d", t.ID, qty, t.remaining)
	}
	t.remaining -= qty
	return nil
}

// AvailabilityCalculator responde "¿se puede sacar N de X en W?" y emite reservas.
type AvailabilityCalculator struct {
	ledger *Ledger
}

// NewAvailabilityCalculator construye el calculador sobre el ledger.
func NewAvailabilityCalculator(ledger *Ledger) *AvailabilityCalculator {
	return &AvailabilityCalculator{ledger: ledger}
}

// CheckAvailable consulta sin reservar. Informativa: el saldo puede cambiar antes de un Reserve.
func (a *AvailabilityCalculator) CheckAvailable(ctx context.Context, barcode, warehouse string, qty int) (Availability, error) {
	if barcode == "" {
		return Availability{}, domain.NewValidationError("barcode", "required")
	}
	if warehouse == "" {
		return Availability{}, domain.NewValidationError("warehouse", "required")
	}
	if qty <= 0 {
		return Availability{}, domain.NewValidationError("quantity", "gt")
	}
	bal, err := a.ledger.Balance(ctx, barcode, warehouse)
	if err != nil {
		return Availability{}, err
	}
	return Availability{
		Barcode:    barcode,
		Warehouse:  warehouse,
		Requested:  qty,
		Available:  bal,
		Sufficient: bal >= qty,
	}, nil
}

// Reserve bloquea la clave dentro de tx, recalcula el saldo desde el historial y
// emite un token por qty si alcanza. El lock se mantiene hasta commit o rollback,
// así ninguna otra transacción puede reservar la misma clave contra un saldo viejo.
func (a *AvailabilityCalculator) Reserve(ctx context.Context, tx TxRepos, key entity.StockKey, qty int) (*ReservationToken, error) {
	if qty <= 0 {
		return nil, domain.NewValidationError("quantity", "gt")
	}
	if err := tx.Events.LockKey(ctx, key); err != nil {
		return nil, err
	}
	events, err := tx.Events.ListByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	bal := inventory.Balance(events)
	if bal < qty {
		return nil, fmt.Errorf("%w: %s disponible %d, solicitado %d", domain.ErrInsufficientStock, key, bal, qty)
	}
	return &ReservationToken{
		ID:        uuid.New().String(),
		Key:       key,
		Quantity:  qty,
		remaining: qty,
	}, nil
}
