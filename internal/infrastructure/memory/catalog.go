package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var (
	_ repository.ProductRepository   = (*productRepo)(nil)
	_ repository.WarehouseRepository = (*warehouseRepo)(nil)
)

// Products repositorio de productos fuera de transacción.
func (s *Store) Products() repository.ProductRepository { return &productRepo{s: s} }

// Warehouses repositorio de bodegas fuera de transacción.
func (s *Store) Warehouses() repository.WarehouseRepository { return &warehouseRepo{s: s} }

type productRepo struct {
	s  *Store
	tx *txState
}

func (r *productRepo) Create(ctx context.Context, p *entity.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Barcode == "" {
		return domain.NewValidationError("barcode", "required")
	}
	v := *p
	return r.s.write(r.tx, func() error {
		if _, ok := r.s.products[v.Barcode]; ok {
			return fmt.Errorf("%w: producto %s", domain.ErrDuplicate, v.Barcode)
		}
		return nil
	}, func() { r.s.products[v.Barcode] = v })
}

func (r *productRepo) GetByBarcode(ctx context.Context, barcode string) (*entity.Product, error) {
	return getFrom(ctx, r.s, r.s.products, barcode)
}

func (r *productRepo) List(ctx context.Context, limit, offset int) ([]entity.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	out := make([]entity.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		out = append(out, p)
	}
	r.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Barcode < out[j].Barcode })
	return page(out, limit, offset), nil
}

type warehouseRepo struct {
	s  *Store
	tx *txState
}

func (r *warehouseRepo) Create(ctx context.Context, w *entity.Warehouse) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.Code == "" {
		return domain.NewValidationError("code", "required")
	}
	v := *w
	return r.s.write(r.tx, func() error {
		if _, ok := r.s.warehouses[v.Code]; ok {
			return fmt.Errorf("%w: bodega %s", domain.ErrDuplicate, v.Code)
		}
		return nil
	}, func() { r.s.warehouses[v.Code] = v })
}

func (r *warehouseRepo) GetByCode(ctx context.Context, code string) (*entity.Warehouse, error) {
	return getFrom(ctx, r.s, r.s.warehouses, code)
}

func (r *warehouseRepo) List(ctx context.Context) ([]entity.Warehouse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	out := make([]entity.Warehouse, 0, len(r.s.warehouses))
	for _, w := range r.s.warehouses {
		out = append(out, w)
	}
	r.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
