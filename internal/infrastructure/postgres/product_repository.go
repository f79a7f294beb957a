package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo implementación del puerto ProductRepository sobre PostgreSQL (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de persistencia para productos. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

// Create persiste un producto. El barcode es la identidad y no cambia.
func (r *ProductRepo) Create(ctx context.Context, p *entity.Product) error {
	query := `
		INSERT INTO products (barcode, variant, name, category, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(ctx, query, p.Barcode, p.Variant, p.Name, p.Category, p.CreatedAt, p.UpdatedAt)
	return classifyError("insert product", err)
}

// GetByBarcode obtiene un producto; (nil, nil) si no existe.
func (r *ProductRepo) GetByBarcode(ctx context.Context, barcode string) (*entity.Product, error) {
	query := `
		SELECT barcode, variant, name, category, created_at, updated_at
		FROM products WHERE barcode = $1`
	var p entity.Product
	err := r.q.QueryRow(ctx, query, barcode).Scan(&p.Barcode, &p.Variant, &p.Name, &p.Category, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, classifyError("get product", err)
	}
	return &p, nil
}

// List lista productos por barcode con paginación.
func (r *ProductRepo) List(ctx context.Context, limit, offset int) ([]entity.Product, error) {
	query := `
		SELECT barcode, variant, name, category, created_at, updated_at
		FROM products ORDER BY barcode LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, classifyError("list products", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.Product, error) {
		var p entity.Product
		err := row.Scan(&p.Barcode, &p.Variant, &p.Name, &p.Category, &p.CreatedAt, &p.UpdatedAt)
		return p, err
	})
	if err != nil {
		return nil, classifyError("list products", err)
	}
	if list == nil {
		list = []entity.Product{}
	}
	return list, nil
}
