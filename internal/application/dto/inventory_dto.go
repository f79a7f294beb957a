package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpeningStockRequest body para POST /api/operations/opening_stock.
type OpeningStockRequest struct {
	Barcode   string `json:"barcode" validate:"required,max=64"`
	Variant   string `json:"variant,omitempty" validate:"max=64"`
	Warehouse string `json:"warehouse" validate:"required,max=32"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
	Notes     string `json:"notes,omitempty" validate:"max=500"`
}

// DispatchLineRequest línea de un despacho.
type DispatchLineRequest struct {
	Barcode       string          `json:"barcode" validate:"required,max=64"`
	Variant       string          `json:"variant,omitempty" validate:"max=64"`
	Quantity      int             `json:"quantity" validate:"gt=0"`
	DeclaredValue decimal.Decimal `json:"declared_value"`
}

// DispatchRequest body para POST /api/operations/dispatch. Todas las líneas salen de la misma bodega.
type DispatchRequest struct {
	OrderID   string                `json:"order_id" validate:"required,max=64"`
	AWB       string                `json:"awb,omitempty" validate:"max=64"`
	Courier   string                `json:"courier,omitempty" validate:"max=64"`
	Warehouse string                `json:"warehouse" validate:"required,max=32"`
	Lines     []DispatchLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// ReturnRequest body para POST /api/operations/return.
type ReturnRequest struct {
	OrderID    string `json:"order_id,omitempty" validate:"max=64"`
	DispatchID string `json:"dispatch_id,omitempty"`
	AWB        string `json:"awb,omitempty" validate:"max=64"`
	Barcode    string `json:"barcode" validate:"required,max=64"`
	Variant    string `json:"variant,omitempty" validate:"max=64"`
	Warehouse  string `json:"warehouse" validate:"required,max=32"`
	Quantity   int    `json:"quantity" validate:"gt=0"`
	Reason     string `json:"reason,omitempty" validate:"max=500"`
}

// DamageRequest body para POST /api/operations/damage.
type DamageRequest struct {
	Barcode   string `json:"barcode" validate:"required,max=64"`
	Variant   string `json:"variant,omitempty" validate:"max=64"`
	Warehouse string `json:"warehouse" validate:"required,max=32"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
	Reason    string `json:"reason" validate:"required,max=500"`
}

// RecoveryRequest body para POST /api/operations/recovery.
type RecoveryRequest struct {
	DamageID  string `json:"damage_id,omitempty"`
	Barcode   string `json:"barcode" validate:"required,max=64"`
	Variant   string `json:"variant,omitempty" validate:"max=64"`
	Warehouse string `json:"warehouse" validate:"required,max=32"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
	Notes     string `json:"notes,omitempty" validate:"max=500"`
}

// SelfTransferRequest body para POST /api/operations/self_transfer.
type SelfTransferRequest struct {
	Barcode       string `json:"barcode" validate:"required,max=64"`
	Variant       string `json:"variant,omitempty" validate:"max=64"`
	FromWarehouse string `json:"from_warehouse" validate:"required,max=32"`
	ToWarehouse   string `json:"to_warehouse" validate:"required,max=32,nefield=FromWarehouse"`
	Quantity      int    `json:"quantity" validate:"gt=0"`
	Notes         string `json:"notes,omitempty" validate:"max=500"`
}

// StatusUpdateRequest body para PATCH /api/records/:type/:id/status (type e id vienen de la ruta).
type StatusUpdateRequest struct {
	RecordType string `json:"record_type" validate:"required,oneof=dispatch return damage recovery self_transfer"`
	RecordID   string `json:"record_id" validate:"required"`
	Status     string `json:"status" validate:"required"`
	Reason     string `json:"reason,omitempty" validate:"max=500"`
}

// OperationResponse resultado de una operación del pipeline.
type OperationResponse struct {
	Status     string  `json:"status"`
	ResourceID string  `json:"resource_id,omitempty"`
	EventIDs   []int64 `json:"event_ids,omitempty"`
}

// AvailabilityResponse respuesta de GET /api/availability.
type AvailabilityResponse struct {
	Barcode    string `json:"barcode"`
	Warehouse  string `json:"warehouse"`
	Requested  int    `json:"requested"`
	Available  int    `json:"available"`
	Sufficient bool   `json:"sufficient"`
}

// StockEventResponse evento del ledger expuesto en el historial.
type StockEventResponse struct {
	ID         int64     `json:"id"`
	Barcode    string    `json:"barcode"`
	Variant    string    `json:"variant,omitempty"`
	Warehouse  string    `json:"warehouse"`
	Direction  string    `json:"direction"`
	Quantity   int       `json:"quantity"`
	EventType  string    `json:"event_type"`
	SourceType string    `json:"source_type"`
	SourceID   string    `json:"source_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Balance    int       `json:"balance"` // saldo acumulado después del evento
}
