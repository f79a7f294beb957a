package entity

import "time"

// Warehouse representa una bodega identificada por un código corto (ej. GGM_WH).
type Warehouse struct {
	Code      string
	Name      string
	Address   string
	Active    bool
	CreatedAt time.Time
}
