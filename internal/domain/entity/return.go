package entity

import "time"

// Return devolución de producto a una bodega. Genera un evento IN.
type Return struct {
	ID         string
	OrderID    string
	DispatchID string
	AWB        string
	Barcode    string
	Variant    string
	Warehouse  string
	Quantity   int
	Reason     string
	Status     string
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
