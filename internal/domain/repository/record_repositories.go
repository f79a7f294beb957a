package repository

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// Los registros de dominio se crean una vez y solo cambian de estado.
// GetByID devuelve (nil, nil) si no existe, como el resto de repositorios.
// UpdateStatus cambia de from a to solo si el estado actual sigue siendo from:
// ErrConcurrencyConflict si otra transacción lo cambió antes, ErrNotFound si no existe.

// DispatchRepository puerto de persistencia de despachos (con sus líneas).
type DispatchRepository interface {
	Create(ctx context.Context, d *entity.Dispatch) error
	GetByID(ctx context.Context, id string) (*entity.Dispatch, error)
	ListByOrder(ctx context.Context, orderID string) ([]entity.Dispatch, error)
	UpdateStatus(ctx context.Context, id, from, to string) error
}

// ReturnRepository puerto de persistencia de devoluciones.
type ReturnRepository interface {
	Create(ctx context.Context, r *entity.Return) error
	GetByID(ctx context.Context, id string) (*entity.Return, error)
	ListByOrder(ctx context.Context, orderID string) ([]entity.Return, error)
	UpdateStatus(ctx context.Context, id, from, to string) error
}

// DamageRepository puerto de persistencia de reportes de daño.
type DamageRepository interface {
	Create(ctx context.Context, d *entity.Damage) error
	GetByID(ctx context.Context, id string) (*entity.Damage, error)
	UpdateStatus(ctx context.Context, id, from, to string) error
}

// RecoveryRepository puerto de persistencia de recuperaciones.
type RecoveryRepository interface {
	Create(ctx context.Context, r *entity.Recovery) error
	GetByID(ctx context.Context, id string) (*entity.Recovery, error)
	ListByDamage(ctx context.Context, damageID string) ([]entity.Recovery, error)
	UpdateStatus(ctx context.Context, id, from, to string) error
}

// SelfTransferRepository puerto de persistencia de traslados entre bodegas.
type SelfTransferRepository interface {
	Create(ctx context.Context, t *entity.SelfTransfer) error
	GetByID(ctx context.Context, id string) (*entity.SelfTransfer, error)
	UpdateStatus(ctx context.Context, id, from, to string) error
}

// OpeningStockRepository puerto de persistencia de cargas de saldo inicial.
type OpeningStockRepository interface {
	Create(ctx context.Context, o *entity.OpeningStock) error
	GetByID(ctx context.Context, id string) (*entity.OpeningStock, error)
}
