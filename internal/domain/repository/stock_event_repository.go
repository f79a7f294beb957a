package repository

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// StockEventRepository define el puerto del ledger (append-only).
// No existe Update ni Delete: las correcciones son eventos compensatorios.
type StockEventRepository interface {
	// Append persiste el evento y le asigna ID. Único camino de escritura.
	Append(ctx context.Context, event *entity.StockEvent) error

	// LockKey toma el lock exclusivo de (barcode, bodega) hasta el fin de la transacción.
	// Fuera de transacción no tiene efecto útil; solo lo usa el cálculo de reservas.
	LockKey(ctx context.Context, key entity.StockKey) error

	// ListByKey devuelve los eventos de (barcode, bodega) ordenados por (OccurredAt, ID).
	ListByKey(ctx context.Context, key entity.StockKey) ([]entity.StockEvent, error)

	// ListByBarcode devuelve los eventos del barcode en todas las bodegas, ordenados.
	ListByBarcode(ctx context.Context, barcode string) ([]entity.StockEvent, error)

	// ListBySources devuelve los eventos originados por los registros indicados, ordenados.
	ListBySources(ctx context.Context, sourceType string, sourceIDs []string) ([]entity.StockEvent, error)
}
