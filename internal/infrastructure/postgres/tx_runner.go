package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
)

var _ inventory.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewTxRunner construye el runner. lockTimeout acota la espera por locks de stock;
// al vencer, la operación falla con conflicto de concurrencia.
func NewTxRunner(pool *pgxpool.Pool, lockTimeout time.Duration) *TxRunner {
	return &TxRunner{pool: pool, lockTimeout: lockTimeout}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(tx inventory.TxRepos) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classifyError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if r.lockTimeout > 0 {
		ms := strconv.FormatInt(r.lockTimeout.Milliseconds(), 10) + "ms"
		if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", ms); err != nil {
			return classifyError("set lock_timeout", err)
		}
	}

	if err := fn(txRepos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classifyError("commit transaction", err)
	}
	return nil
}

func txRepos(q Querier) inventory.TxRepos {
	return inventory.TxRepos{
		Events:     NewStockEventRepository(q),
		Dispatches: NewDispatchRepository(q),
		Returns:    NewReturnRepository(q),
		Damages:    NewDamageRepository(q),
		Recoveries: NewRecoveryRepository(q),
		Transfers:  NewSelfTransferRepository(q),
		Openings:   NewOpeningStockRepository(q),
		Products:   NewProductRepository(q),
		Warehouses: NewWarehouseRepository(q),
	}
}

// Repositories todos los adaptadores sobre el pool, para lecturas fuera de transacción.
type Repositories struct {
	inventory.TxRepos
	Users     *UserRepo
	Roles     *RoleRepo
	AuditLogs *AuditLogRepo
}

// NewRepositories construye los repositorios sobre el pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		TxRepos:   txRepos(pool),
		Users:     NewUserRepository(pool),
		Roles:     NewRoleRepository(pool),
		AuditLogs: NewAuditLogRepository(pool),
	}
}
