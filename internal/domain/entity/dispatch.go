package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dispatch despacho de una orden desde una bodega. Genera un evento OUT por línea.
type Dispatch struct {
	ID        string
	OrderID   string
	AWB       string // guía de la transportadora
	Courier   string
	Warehouse string
	Status    string
	Lines     []DispatchLine
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DispatchLine línea de producto de un despacho.
type DispatchLine struct {
	ID            string
	Barcode       string
	Variant       string
	Quantity      int
	DeclaredValue decimal.Decimal // valor declarado ante la transportadora
}

// TotalQuantity suma las unidades de todas las líneas.
func (d *Dispatch) TotalQuantity() int {
	total := 0
	for _, l := range d.Lines {
		total += l.Quantity
	}
	return total
}
