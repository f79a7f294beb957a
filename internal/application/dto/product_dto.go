package dto

import "time"

// CreateProductRequest entrada para registrar un producto en el catálogo.
type CreateProductRequest struct {
	Barcode  string `json:"barcode" validate:"required,min=1,max=64"`
	Variant  string `json:"variant" validate:"max=64"`
	Name     string `json:"name" validate:"required,min=1,max=200"`
	Category string `json:"category" validate:"max=100"`
}

// ProductResponse salida de un producto.
type ProductResponse struct {
	Barcode   string    `json:"barcode"`
	Variant   string    `json:"variant,omitempty"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProductListResponse lista paginada de productos.
type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}
