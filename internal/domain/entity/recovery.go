package entity

import "time"

// Recovery recuperación de unidades (ej. reparadas tras un daño). Genera un evento IN.
type Recovery struct {
	ID        string
	DamageID  string // opcional
	Barcode   string
	Variant   string
	Warehouse string
	Quantity  int
	Notes     string
	Status    string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}
