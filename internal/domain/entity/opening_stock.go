package entity

import "time"

// OpeningStock carga de saldo inicial de un producto en una bodega (evento OPENING IN).
type OpeningStock struct {
	ID        string
	Barcode   string
	Variant   string
	Warehouse string
	Quantity  int
	Notes     string
	CreatedBy string
	CreatedAt time.Time
}
