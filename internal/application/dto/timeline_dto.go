package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimelineEntryResponse entrada de una línea de tiempo.
type TimelineEntryResponse struct {
	EventID     int64     `json:"event_id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Quantity    int       `json:"quantity"`
	Direction   string    `json:"direction"`
	Warehouse   string    `json:"warehouse"`
	Reference   string    `json:"reference"`
	Timestamp   time.Time `json:"timestamp"`
	Barcode     string    `json:"barcode"`
	Actor       string    `json:"actor,omitempty"`
}

// DispatchLineResponse línea de un despacho.
type DispatchLineResponse struct {
	ID            string          `json:"id"`
	Barcode       string          `json:"barcode"`
	Variant       string          `json:"variant,omitempty"`
	Quantity      int             `json:"quantity"`
	DeclaredValue decimal.Decimal `json:"declared_value"`
}

// DispatchResponse despacho de una orden.
type DispatchResponse struct {
	ID        string                 `json:"id"`
	AWB       string                 `json:"awb,omitempty"`
	Courier   string                 `json:"courier,omitempty"`
	Warehouse string                 `json:"warehouse"`
	Status    string                 `json:"status"`
	Lines     []DispatchLineResponse `json:"lines"`
	CreatedAt time.Time              `json:"created_at"`
}

// ReturnResponse devolución de una orden.
type ReturnResponse struct {
	ID         string    `json:"id"`
	DispatchID string    `json:"dispatch_id,omitempty"`
	AWB        string    `json:"awb,omitempty"`
	Barcode    string    `json:"barcode"`
	Warehouse  string    `json:"warehouse"`
	Quantity   int       `json:"quantity"`
	Reason     string    `json:"reason,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// OrderDetailResponse respuesta de GET /api/timeline/orders/:orderId.
type OrderDetailResponse struct {
	OrderID    string                  `json:"order_id"`
	Status     string                  `json:"status,omitempty"`
	Dispatches []DispatchResponse      `json:"dispatches"`
	Returns    []ReturnResponse        `json:"returns"`
	Timeline   []TimelineEntryResponse `json:"timeline"`
}
