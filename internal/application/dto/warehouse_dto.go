package dto

import "time"

// CreateWarehouseRequest entrada para crear una bodega. Code es la clave corta (ej. GGM_WH).
type CreateWarehouseRequest struct {
	Code    string `json:"code" validate:"required,min=2,max=32,uppercase"`
	Name    string `json:"name" validate:"required,min=1,max=200"`
	Address string `json:"address" validate:"max=300"`
}

// WarehouseResponse salida de una bodega.
type WarehouseResponse struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
