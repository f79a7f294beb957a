package entity

import "time"

// Damage reporte de producto dañado; retira unidades del disponible (OUT).
type Damage struct {
	ID        string
	Barcode   string
	Variant   string
	Warehouse string
	Quantity  int
	Reason    string
	Status    string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}
