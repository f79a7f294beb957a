package entity

import "time"

// Product representa un producto identificado por código de barras (y variante opcional).
// La identidad es inmutable; Name y Category pueden cambiar sin afectar las claves del ledger.
type Product struct {
	Barcode   string
	Variant   string
	Name      string
	Category  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
