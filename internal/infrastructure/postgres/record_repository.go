package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var (
	_ repository.DispatchRepository     = (*DispatchRepo)(nil)
	_ repository.ReturnRepository       = (*ReturnRepo)(nil)
	_ repository.DamageRepository       = (*DamageRepo)(nil)
	_ repository.RecoveryRepository     = (*RecoveryRepo)(nil)
	_ repository.SelfTransferRepository = (*SelfTransferRepo)(nil)
	_ repository.OpeningStockRepository = (*OpeningStockRepo)(nil)
)

// updateStatus cambia status de from a to. El WHERE sobre status hace que un UPDATE
// concurrente que esperó el row lock de otra tx no toque la fila si el estado ya cambió.
func updateStatus(ctx context.Context, q Querier, table, id, from, to string) error {
	tag, err := q.Exec(ctx, `UPDATE `+table+` SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, from, to, time.Now().UTC())
	if err != nil {
		return classifyError("update "+table, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return classifyError("update "+table, err)
	}
	if !exists {
		return fmt.Errorf("%s %s: %w", table, id, domain.ErrNotFound)
	}
	return fmt.Errorf("%w: %s %s ya no está en %s", domain.ErrConcurrencyConflict, table, id, from)
}

// ─── Dispatch ────────────────────────────────────────────────────────────────

// DispatchRepo despachos y sus líneas (dispatch_lines).
type DispatchRepo struct {
	q Querier
}

func NewDispatchRepository(q Querier) *DispatchRepo {
	return &DispatchRepo{q: q}
}

// Create inserta el despacho y sus líneas. Debe ejecutarse dentro de la tx de la operación.
func (r *DispatchRepo) Create(ctx context.Context, d *entity.Dispatch) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO dispatches (id, order_id, awb, courier, warehouse, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.OrderID, d.AWB, d.Courier, d.Warehouse, d.Status, d.CreatedBy, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return classifyError("insert dispatch", err)
	}
	for i, l := range d.Lines {
		_, err := r.q.Exec(ctx, `
			INSERT INTO dispatch_lines (id, dispatch_id, line_no, barcode, variant, quantity, declared_value)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			l.ID, d.ID, i, l.Barcode, l.Variant, l.Quantity, l.DeclaredValue,
		)
		if err != nil {
			return classifyError("insert dispatch_line", err)
		}
	}
	return nil
}

const dispatchColumns = `id, order_id, awb, courier, warehouse, status, created_by, created_at, updated_at`

func (r *DispatchRepo) GetByID(ctx context.Context, id string) (*entity.Dispatch, error) {
	var d entity.Dispatch
	err := r.q.QueryRow(ctx, `SELECT `+dispatchColumns+` FROM dispatches WHERE id = $1`, id).Scan(
		&d.ID, &d.OrderID, &d.AWB, &d.Courier, &d.Warehouse, &d.Status, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, classifyError("get dispatch", err)
	}
	if d.Lines, err = r.lines(ctx, d.ID); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DispatchRepo) ListByOrder(ctx context.Context, orderID string) ([]entity.Dispatch, error) {
	rows, err := r.q.Query(ctx, `SELECT `+dispatchColumns+` FROM dispatches
		WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, classifyError("list dispatches", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.Dispatch, error) {
		var d entity.Dispatch
		err := row.Scan(&d.ID, &d.OrderID, &d.AWB, &d.Courier, &d.Warehouse, &d.Status, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
		return d, err
	})
	if err != nil {
		return nil, classifyError("list dispatches", err)
	}
	for i := range out {
		if out[i].Lines, err = r.lines(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	if out == nil {
		out = []entity.Dispatch{}
	}
	return out, nil
}

func (r *DispatchRepo) UpdateStatus(ctx context.Context, id, from, to string) error {
	return updateStatus(ctx, r.q, "dispatches", id, from, to)
}

func (r *DispatchRepo) lines(ctx context.Context, dispatchID string) ([]entity.DispatchLine, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, barcode, variant, quantity, declared_value
		FROM dispatch_lines WHERE dispatch_id = $1 ORDER BY line_no`, dispatchID)
	if err != nil {
		return nil, classifyError("list dispatch_lines", err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.DispatchLine, error) {
		var l entity.DispatchLine
		err := row.Scan(&l.ID, &l.Barcode, &l.Variant, &l.Quantity, &l.DeclaredValue)
		return l, err
	})
	if err != nil {
		return nil, classifyError("list dispatch_lines", err)
	}
	return lines, nil
}

// ─── Return ──────────────────────────────────────────────────────────────────

type ReturnRepo struct {
	q Querier
}

func NewReturnRepository(q Querier) *ReturnRepo {
	return &ReturnRepo{q: q}
}

const returnColumns = `id, order_id, dispatch_id, awb, barcode, variant, warehouse, quantity, reason, status, created_by, created_at, updated_at`

func (r *ReturnRepo) Create(ctx context.Context, rt *entity.Return) error {
	_, err := r.q.Exec(ctx, `INSERT INTO returns (`+returnColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rt.ID, rt.OrderID, rt.DispatchID, rt.AWB, rt.Barcode, rt.Variant, rt.Warehouse, rt.Quantity,
		rt.Reason, rt.Status, rt.CreatedBy, rt.CreatedAt, rt.UpdatedAt,
	)
	return classifyError("insert return", err)
}

func (r *ReturnRepo) GetByID(ctx context.Context, id string) (*entity.Return, error) {
	rows, err := r.q.Query(ctx, `SELECT `+returnColumns+` FROM returns WHERE id = $1`, id)
	if err != nil {
		return nil, classifyError("get return", err)
	}
	rt, err := pgx.CollectOneRow(rows, scanReturn)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, classifyError("get return", err)
	}
	return &rt, nil
}

func (r *ReturnRepo) ListByOrder(ctx context.Context, orderID string) ([]entity.Return, error) {
	rows, err := r.q.Query(ctx, `SELECT `+returnColumns+` FROM returns
		WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, classifyError("list returns", err)
	}
	out, err := pgx.CollectRows(rows, scanReturn)
	if err != nil {
		return nil, classifyError("list returns", err)
	}
	if out == nil {
		out = []entity.Return{}
	}
	return out, nil
}

func (r *ReturnRepo) UpdateStatus(ctx context.Context, id, from, to string) error {
	return updateStatus(ctx, r.q, "returns", id, from, to)
}

func scanReturn(row pgx.CollectableRow) (entity.Return, error) {
	var rt entity.Return
	err := row.Scan(&rt.ID, &rt.OrderID, &rt.DispatchID, &rt.AWB, &rt.Barcode, &rt.Variant, &rt.Warehouse,
		&rt.Quantity, &rt.Reason, &rt.Status, &rt.CreatedBy, &rt.CreatedAt, &rt.UpdatedAt)
	return rt, err
}

// ─── Damage ──────────────────────────────────────────────────────────────────

type DamageRepo struct {
	q Querier
}

func NewDamageRepository(q Querier) *DamageRepo {
	return &DamageRepo{q: q}
}

func (r *DamageRepo) Create(ctx context.Context, d *entity.Damage) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO damages (id, barcode, variant, warehouse, quantity, reason, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.Barcode, d.Variant, d.Warehouse, d.Quantity, d.Reason, d.Status, d.CreatedBy, d.CreatedAt, d.UpdatedAt,
	)
	return classifyError("insert damage", err)
}

func (r *DamageRepo) GetByID(ctx context.Context, id string) (*entity.Damage, error) {
	var d entity.Damage
	err := r.q.QueryRow(ctx, `
		SELECT id, barcode, variant, warehouse, quantity, reason, status, created_by, created_at, updated_at
		FROM damages WHERE id = $1`, id).Scan(
		&d.ID, &d.Barcode, &d.Variant, &d.Warehouse, &d.Quantity, &d.Reason, &d.Status, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, classifyError("get damage", err)
	}
	return &d, nil
}

func (r *DamageRepo) UpdateStatus(ctx context.Context, id, from, to string) error {
	return updateStatus(ctx, r.q, "damages", id, from, to)
}

// ─── Recovery ────────────────────────────────────────────────────────────────

type RecoveryRepo struct {
	q Querier
}

func NewRecoveryRepository(q Querier) *RecoveryRepo {
	return &RecoveryRepo{q: q}
}

func (r *RecoveryRepo) Create(ctx context.Context, rc *entity.Recovery) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO recoveries (`+recoveryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rc.ID, rc.DamageID, rc.Barcode, rc.Variant, rc.Warehouse, rc.Quantity, rc.Notes, rc.Status,
		rc.CreatedBy, rc.CreatedAt, rc.UpdatedAt,
	)
	return classifyError("insert recovery", err)
}

const recoveryColumns = `id, damage_id, barcode, variant, warehouse, quantity, notes, status, created_by, created_at, updated_at`

func (r *RecoveryRepo) GetByID(ctx context.Context, id string) (*entity.Recovery, error) {
	rows, err := r.q.Query(ctx, `SELECT `+recoveryColumns+` FROM recoveries WHERE id = $1`, id)
	if err != nil {
		return nil, classifyError("get recovery", err)
	}
	rc, err := pgx.CollectOneRow(rows, scanRecovery)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, classifyError("get recovery", err)
	}
	return &rc, nil
}

// ListByDamage recuperaciones registradas contra un reporte de daño.
func (r *RecoveryRepo) ListByDamage(ctx context.Context, damageID string) ([]entity.Recovery, error) {
	rows, err := r.q.Query(ctx, `SELECT `+recoveryColumns+` FROM recoveries
		WHERE damage_id = $1 ORDER BY created_at, id`, damageID)
	if err != nil {
		return nil, classifyError("list recoveries", err)
	}
	out, err := pgx.CollectRows(rows, scanRecovery)
	if err != nil {
		return nil, classifyError("list recoveries", err)
	}
	if out == nil {
		out = []entity.Recovery{}
	}
	return out, nil
}

func scanRecovery(row pgx.CollectableRow) (entity.Recovery, error) {
	var rc entity.Recovery
	err := row.Scan(&rc.ID, &rc.DamageID, &rc.Barcode, &rc.Variant, &rc.Warehouse, &rc.Quantity, &rc.Notes,
		&rc.Status, &rc.CreatedBy, &rc.CreatedAt, &rc.UpdatedAt)
	return rc, err
}

func (r *RecoveryRepo) UpdateStatus(ctx context.Context, id, from, to string) error {
	return updateStatus(ctx, r.q, "recoveries", id, from, to)
}

// ─── SelfTransfer ────────────────────────────────────────────────────────────

type SelfTransferRepo struct {
	q Querier
}

func NewSelfTransferRepository(q Querier) *SelfTransferRepo {
	return &SelfTransferRepo{q: q}
}

func (r *SelfTransferRepo) Create(ctx context.Context, t *entity.SelfTransfer) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO self_transfers (id, barcode, variant, from_warehouse, to_warehouse, quantity, notes, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.Barcode, t.Variant, t.FromWarehouse, t.ToWarehouse, t.Quantity, t.Notes, t.Status,
		t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	return classifyError("insert self_transfer", err)
}

func (r *SelfTransferRepo) GetByID(ctx context.Context, id string) (*entity.SelfTransfer, error) {
	var t entity.SelfTransfer
	err := r.q.QueryRow(ctx, `
		SELECT id, barcode, variant, from_warehouse, to_warehouse, quantity, notes, status, created_by, created_at, updated_at
		FROM self_transfers WHERE id = $1`, id).Scan(
		&t.ID, &t.Barcode, &t.Variant, &t.FromWarehouse, &t.ToWarehouse, &t.Quantity, &t.Notes, &t.Status,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, classifyError("get self_transfer", err)
	}
	return &t, nil
}

func (r *SelfTransferRepo) UpdateStatus(ctx context.Context, id, from, to string) error {
	return updateStatus(ctx, r.q, "self_transfers", id, from, to)
}

// ─── OpeningStock ────────────────────────────────────────────────────────────

type OpeningStockRepo struct {
	q Querier
}

func NewOpeningStockRepository(q Querier) *OpeningStockRepo {
	return &OpeningStockRepo{q: q}
}

func (r *OpeningStockRepo) Create(ctx context.Context, o *entity.OpeningStock) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO opening_stocks (id, barcode, variant, warehouse, quantity, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.Barcode, o.Variant, o.Warehouse, o.Quantity, o.Notes, o.CreatedBy, o.CreatedAt,
	)
	return classifyError("insert opening_stock", err)
}

func (r *OpeningStockRepo) GetByID(ctx context.Context, id string) (*entity.OpeningStock, error) {
	var o entity.OpeningStock
	err := r.q.QueryRow(ctx, `
		SELECT id, barcode, variant, warehouse, quantity, notes, created_by, created_at
		FROM opening_stocks WHERE id = $1`, id).Scan(
		&o.ID, &o.Barcode, &o.Variant, &o.Warehouse, &o.Quantity, &o.Notes, &o.CreatedBy, &o.CreatedAt,
	)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, classifyError("get opening_stock", err)
	}
	return &o, nil
}
