package entity

import "time"

// SelfTransfer traslado entre bodegas propias. TRANSFER_OUT al crear, TRANSFER_IN al recibir.
type SelfTransfer struct {
	ID            string
	Barcode       string
	Variant       string
	FromWarehouse string
	ToWarehouse   string
	Quantity      int
	Notes         string
	Status        string
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
