package entity

import "time"

// TimelineEntry proyección de lectura de un evento del ledger unido con su registro de origen.
type TimelineEntry struct {
	EventID     int64
	Type        string
	Description string
	Quantity    int
	Direction   string
	Warehouse   string
	Reference   string
	Timestamp   time.Time
	Barcode     string
	Actor       string
}

// OrderDetail detalle de una orden con su línea de tiempo embebida.
type OrderDetail struct {
	OrderID    string
	Status     string
	Dispatches []Dispatch
	Returns    []Return
	Entries    []TimelineEntry
}
