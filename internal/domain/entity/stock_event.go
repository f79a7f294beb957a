package entity

import "time"

// Dirección del movimiento en el ledger.
const (
	DirectionIN  = "IN"
	DirectionOUT = "OUT"
)

// Tipos de evento del ledger de stock.
const (
	EventTypeDispatch    = "DISPATCH"
	EventTypeReturn      = "RETURN"
	EventTypeDamage      = "DAMAGE"
	EventTypeRecovery    = "RECOVERY"
	EventTypeTransferOut = "TRANSFER_OUT"
	EventTypeTransferIn  = "TRANSFER_IN"
	EventTypeOpening     = "OPENING"
	EventTypeReversal    = "REVERSAL" // evento compensatorio
)

// Tipos de registro de dominio que originan eventos (SourceType).
const (
	SourceDispatch     = "dispatch"
	SourceReturn       = "return"
	SourceDamage       = "damage"
	SourceRecovery     = "recovery"
	SourceSelfTransfer = "self_transfer"
	SourceOpening      = "opening_stock"
)

// StockEvent es una fila del ledger. Append-only: nunca se actualiza ni se borra;
// las correcciones son eventos compensatorios nuevos.
type StockEvent struct {
	ID              int64 // asignado al hacer Append; desempate del orden
	Barcode         string
	Variant         string
	Warehouse       string
	Direction       string // IN | OUT
	Quantity        int    // siempre positivo
	EventType       string
	SourceType      string
	SourceID        string
	SourceLineID    string
	ReversesEventID *int64
	OccurredAt      time.Time
	CreatedBy       string
}

// Signed devuelve la cantidad con signo según la dirección.
func (e StockEvent) Signed() int {
	if e.Direction == DirectionOUT {
		return -e.Quantity
	}
	return e.Quantity
}

// Key devuelve la clave (barcode, bodega) del evento.
func (e StockEvent) Key() StockKey {
	return StockKey{Barcode: e.Barcode, Warehouse: e.Warehouse}
}

// StockKey identifica un saldo: producto en una bodega.
type StockKey struct {
	Barcode   string
	Warehouse string
}

func (k StockKey) String() string {
	return k.Barcode + "@" + k.Warehouse
}

// Less ordena claves para adquirir locks siempre en el mismo orden.
func (k StockKey) Less(o StockKey) bool {
	if k.Barcode != o.Barcode {
		return k.Barcode < o.Barcode
	}
	return k.Warehouse < o.Warehouse
}
