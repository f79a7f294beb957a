package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var (
	_ repository.DispatchRepository     = (*dispatchRepo)(nil)
	_ repository.ReturnRepository       = (*returnRepo)(nil)
	_ repository.DamageRepository       = (*damageRepo)(nil)
	_ repository.RecoveryRepository     = (*recoveryRepo)(nil)
	_ repository.SelfTransferRepository = (*transferRepo)(nil)
	_ repository.OpeningStockRepository = (*openingRepo)(nil)
)

// Repositorios de registros fuera de transacción (lecturas del timeline).
func (s *Store) Dispatches() repository.DispatchRepository        { return &dispatchRepo{s: s} }
func (s *Store) Returns() repository.ReturnRepository             { return &returnRepo{s: s} }
func (s *Store) Damages() repository.DamageRepository             { return &damageRepo{s: s} }
func (s *Store) Recoveries() repository.RecoveryRepository        { return &recoveryRepo{s: s} }
func (s *Store) SelfTransfers() repository.SelfTransferRepository { return &transferRepo{s: s} }
func (s *Store) OpeningStocks() repository.OpeningStockRepository { return &openingRepo{s: s} }

// createIn inserta en table rechazando IDs repetidos.
func createIn[T any](s *Store, tx *txState, table map[string]T, id string, v T) error {
	if id == "" {
		return domain.NewValidationError("id", "required")
	}
	return s.write(tx, func() error {
		if _, exists := table[id]; exists {
			return fmt.Errorf("%w: %s", domain.ErrDuplicate, id)
		}
		return nil
	}, func() { table[id] = v })
}

func getFrom[T any](ctx context.Context, s *Store, table map[string]T, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := table[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// updateIn cambia el estado de un registro existente. El estado se compara con from
// al confirmar: si otra tx lo cambió entre la lectura y el commit, la tx falla.
func updateIn[T any](ctx context.Context, s *Store, tx *txState, table map[string]T, id, from string, status func(T) string, set func(*T)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(tx, func() error {
		v, ok := table[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
		}
		if cur := status(v); cur != from {
			return fmt.Errorf("%w: %s está en %s, se esperaba %s", domain.ErrConcurrencyConflict, id, cur, from)
		}
		return nil
	}, func() {
		v := table[id]
		set(&v)
		table[id] = v
	})
}

// ─── Dispatch ────────────────────────────────────────────────────────────────

type dispatchRepo struct {
	s  *Store
	tx *txState
}

func (r *dispatchRepo) Create(ctx context.Context, d *entity.Dispatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return createIn(r.s, r.tx, r.s.dispatches, d.ID, copyDispatch(*d))
}

func (r *dispatchRepo) GetByID(ctx context.Context, id string) (*entity.Dispatch, error) {
	d, err := getFrom(ctx, r.s, r.s.dispatches, id)
	if d == nil || err != nil {
		return nil, err
	}
	out := copyDispatch(*d)
	return &out, nil
}

func (r *dispatchRepo) ListByOrder(ctx context.Context, orderID string) ([]entity.Dispatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.Dispatch, 0)
	for _, d := range r.s.dispatches {
		if d.OrderID == orderID {
			out = append(out, copyDispatch(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *dispatchRepo) UpdateStatus(ctx context.Context, id, from, to string) error {
	return updateIn(ctx, r.s, r.tx, r.s.dispatches, id, from, func(d entity.Dispatch) string { return d.Status }, func(d *entity.Dispatch) {
		d.Status = to
		d.UpdatedAt = time.Now().UTC()
	})
}

func copyDispatch(d entity.Dispatch) entity.Dispatch {
	d.Lines = append([]entity.DispatchLine(nil), d.Lines...)
	return d
}

// ─── Return ──────────────────────────────────────────────────────────────────

type returnRepo struct {
	s  *Store
	tx *txState
}

func (r *returnRepo) Create(ctx context.Context, rt *entity.Return) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return createIn(r.s, r.tx, r.s.returns, rt.ID, *rt)
}

func (r *returnRepo) GetByID(ctx context.Context, id string) (*entity.Return, error) {
	return getFrom(ctx, r.s, r.s.returns, id)
}

func (r *returnRepo) ListByOrder(ctx context.Context, orderID string) ([]entity.Return, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.Return, 0)
	for _, rt := range r.s.returns {
		if rt.OrderID == orderID {
			out = append(out, rt)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *returnRepo) UpdateStatus(ctx context.Context, id, from, to string) error {
	return updateIn(ctx, r.s, r.tx, r.s.returns, id, from, func(rt entity.Return) string { return rt.Status }, func(rt *entity.Return) {
		rt.Status = to
		rt.UpdatedAt = time.Now().UTC()
	})
}

// ─── Damage ──────────────────────────────────────────────────────────────────

type damageRepo struct {
	s  *Store
	tx *txState
}

func (r *damageRepo) Create(ctx context.Context, d *entity.Damage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return createIn(r.s, r.tx, r.s.damages, d.ID, *d)
}

func (r *damageRepo) GetByID(ctx context.Context, id string) (*entity.Damage, error) {
	return getFrom(ctx, r.s, r.s.damages, id)
}

func (r *damageRepo) UpdateStatus(ctx context.Context, id, from, to string) error {
	return updateIn(ctx, r.s, r.tx, r.s.damages, id, from, func(d entity.Damage) string { return d.Status }, func(d *entity.Damage) {
		d.Status = to
		d.UpdatedAt = time.Now().UTC()
	})
}

// ─── Recovery ────────────────────────────────────────────────────────────────

type recoveryRepo struct {
	s  *Store
	tx *txState
}

func (r *recoveryRepo) Create(ctx context.Context, rc *entity.Recovery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return createIn(r.s, r.tx, r.s.recoveries, rc.ID, *rc)
}

func (r *recoveryRepo) GetByID(ctx context.Context, id string) (*entity.Recovery, error) {
	return getFrom(ctx, r.s, r.s.recoveries, id)
}

func (r *recoveryRepo) ListByDamage(ctx context.Context, damageID string) ([]entity.Recovery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]entity.Recovery, 0)
	for _, rc := range r.s.recoveries {
		if rc.DamageID == damageID {
			out = append(out, rc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *recoveryRepo) UpdateStatus(ctx context.Context, id, from, to string) error {
	return updateIn(ctx, r.s, r.tx, r.s.recoveries, id, from, func(rc entity.Recovery) string { return rc.Status }, func(rc *entity.Recovery) {
		rc.Status = to
		rc.UpdatedAt = time.Now().UTC()
	})
}

// ─── SelfTransfer ────────────────────────────────────────────────────────────

type transferRepo struct {
	s  *Store
	tx *txState
}

func (r *transferRepo) Create(ctx context.Context, t *entity.SelfTransfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return createIn(r.s, r.tx, r.s.transfers, t.ID, *t)
}

func (r *transferRepo) GetByID(ctx context.Context, id string) (*entity.SelfTransfer, error) {
	return getFrom(ctx, r.s, r.s.transfers, id)
}

func (r *transferRepo) UpdateStatus(ctx context.Context, id, from, to string) error {
	return updateIn(ctx, r.s, r.tx, r.s.transfers, id, from, func(t entity.SelfTransfer) string { return t.Status }, func(t *entity.SelfTransfer) {
		t.Status = to
		t.UpdatedAt = time.Now().UTC()
	})
}

// ─── OpeningStock ────────────────────────────────────────────────────────────

type openingRepo struct {
	s  *Store
	tx *txState
}

func (r *openingRepo) Create(ctx context.Context, o *entity.OpeningStock) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return createIn(r.s, r.tx, r.s.openings, o.ID, *o)
}

func (r *openingRepo) GetByID(ctx context.Context, id string) (*entity.OpeningStock, error) {
	return getFrom(ctx, r.s, r.s.openings, id)
}
