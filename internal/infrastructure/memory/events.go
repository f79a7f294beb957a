package memory

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var _ repository.StockEventRepository = (*eventRepo)(nil)

type eventRepo struct {
	s  *Store
	tx *txState
}

// StockEvents repositorio del ledger fuera de transacción (lecturas y appends autocommit).
func (s *Store) StockEvents() repository.StockEventRepository {
	return &eventRepo{s: s}
}

// Append asigna ID al momento (como un bigserial: un rollback deja huecos).
func (r *eventRepo) Append(ctx context.Context, ev *entity.StockEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev.ID = r.s.nextEventID.Add(1)
	if r.tx != nil {
		r.tx.events = append(r.tx.events, *ev)
		return nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.events = append(r.s.events, *ev)
	return nil
}

func (r *eventRepo) LockKey(ctx context.Context, key entity.StockKey) error {
	return r.s.lockKey(ctx, r.tx, key)
}

func (r *eventRepo) ListByKey(ctx context.Context, key entity.StockKey) ([]entity.StockEvent, error) {
	return r.filter(ctx, func(ev entity.StockEvent) bool { return ev.Key() == key })
}

func (r *eventRepo) ListByBarcode(ctx context.Context, barcode string) ([]entity.StockEvent, error) {
	return r.filter(ctx, func(ev entity.StockEvent) bool { return ev.Barcode == barcode })
}

func (r *eventRepo) ListBySources(ctx context.Context, sourceType string, sourceIDs []string) ([]entity.StockEvent, error) {
	ids := make(map[string]struct{}, len(sourceIDs))
	for _, id := range sourceIDs {
		ids[id] = struct{}{}
	}
	return r.filter(ctx, func(ev entity.StockEvent) bool {
		if ev.SourceType != sourceType {
			return false
		}
		_, ok := ids[ev.SourceID]
		return ok
	})
}

// filter lee lo confirmado más los eventos propios de la tx, ordenado por (OccurredAt, ID).
func (r *eventRepo) filter(ctx context.Context, keep func(entity.StockEvent) bool) ([]entity.StockEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	out := make([]entity.StockEvent, 0)
	for _, ev := range r.s.events {
		if keep(ev) {
			out = append(out, copyEvent(ev))
		}
	}
	r.s.mu.RUnlock()
	if r.tx != nil {
		for _, ev := range r.tx.events {
			if keep(ev) {
				out = append(out, copyEvent(ev))
			}
		}
	}
	inventory.SortEvents(out)
	return out, nil
}

func copyEvent(ev entity.StockEvent) entity.StockEvent {
	if ev.ReversesEventID != nil {
		id := *ev.ReversesEventID
		ev.ReversesEventID = &id
	}
	return ev
}
