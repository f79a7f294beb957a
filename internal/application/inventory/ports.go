package inventory

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

// TxRepos repositorios atados a una misma transacción.
type TxRepos struct {
	Events     repository.StockEventRepository
	Dispatches repository.DispatchRepository
	Returns    repository.ReturnRepository
	Damages    repository.DamageRepository
	Recoveries repository.RecoveryRepository
	Transfers  repository.SelfTransferRepository
	Openings   repository.OpeningStockRepository
	Products   repository.ProductRepository
	Warehouses repository.WarehouseRepository
}

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Si fn devuelve error se hace Rollback y ninguna escritura es visible.
type TxRunner interface {
	Run(ctx context.Context, fn func(tx TxRepos) error) error
}

// Authorizer decide si un usuario tiene un permiso. Lo implementa auth.PermissionGate.
type Authorizer interface {
	Authorize(ctx context.Context, userID, permission string) (bool, error)
}

// AuditSink recibe entradas de auditoría sin bloquear al llamador. Lo implementa audit.Recorder.
type AuditSink interface {
	Record(ctx context.Context, entry entity.AuditLogEntry)
}

// Notifier publica notificaciones de movimientos. Un fallo nunca afecta la operación.
type Notifier interface {
	Notify(ctx context.Context, n entity.MovementNotification) error
}
