package repository

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// WarehouseRepository define el puerto de persistencia para Warehouse (DIP).
type WarehouseRepository interface {
	Create(ctx context.Context, warehouse *entity.Warehouse) error
	GetByCode(ctx context.Context, code string) (*entity.Warehouse, error)
	List(ctx context.Context) ([]entity.Warehouse, error)
}
