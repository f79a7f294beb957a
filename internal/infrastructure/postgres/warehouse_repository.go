package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var _ repository.WarehouseRepository = (*WarehouseRepo)(nil)

// WarehouseRepo implementación de WarehouseRepository sobre PostgreSQL.
type WarehouseRepo struct {
	q Querier
}

// NewWarehouseRepository construye el adaptador. Pasar pool o tx (Querier).
func NewWarehouseRepository(q Querier) *WarehouseRepo {
	return &WarehouseRepo{q: q}
}

func (r *WarehouseRepo) Create(ctx context.Context, w *entity.Warehouse) error {
	query := `INSERT INTO warehouses (code, name, address, active, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.q.Exec(ctx, query, w.Code, w.Name, w.Address, w.Active, w.CreatedAt)
	return classifyError("insert warehouse", err)
}

func (r *WarehouseRepo) GetByCode(ctx context.Context, code string) (*entity.Warehouse, error) {
	query := `SELECT code, name, address, active, created_at FROM warehouses WHERE code = $1`
	var w entity.Warehouse
	err := r.q.QueryRow(ctx, query, code).Scan(&w.Code, &w.Name, &w.Address, &w.Active, &w.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, classifyError("get warehouse", err)
	}
	return &w, nil
}

func (r *WarehouseRepo) List(ctx context.Context) ([]entity.Warehouse, error) {
	rows, err := r.q.Query(ctx, `SELECT code, name, address, active, created_at FROM warehouses ORDER BY code`)
	if err != nil {
		return nil, classifyError("list warehouses", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.Warehouse, error) {
		var w entity.Warehouse
		err := row.Scan(&w.Code, &w.Name, &w.Address, &w.Active, &w.CreatedAt)
		return w, err
	})
	if err != nil {
		return nil, classifyError("list warehouses", err)
	}
	if list == nil {
		list = []entity.Warehouse{}
	}
	return list, nil
}
