package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var _ repository.StockEventRepository = (*StockEventRepo)(nil)

// StockEventRepo ledger sobre la tabla stock_events. Solo INSERT; un trigger rechaza UPDATE y DELETE.
type StockEventRepo struct {
	q Querier
}

// NewStockEventRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockEventRepository(q Querier) *StockEventRepo {
	return &StockEventRepo{q: q}
}

const stockEventColumns = `id, barcode, variant, warehouse, direction, quantity, event_type,
	source_type, source_id, source_line_id, reverses_event_id, occurred_at, created_by`

// Append inserta el evento y asigna el ID generado por la secuencia.
func (r *StockEventRepo) Append(ctx context.Context, ev *entity.StockEvent) error {
	query := `
		INSERT INTO stock_events (barcode, variant, warehouse, direction, quantity, event_type,
			source_type, source_id, source_line_id, reverses_event_id, occurred_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`
	err := r.q.QueryRow(ctx, query,
		ev.Barcode, ev.Variant, ev.Warehouse, ev.Direction, ev.Quantity, ev.EventType,
		ev.SourceType, ev.SourceID, ev.SourceLineID, ev.ReversesEventID, ev.OccurredAt, ev.CreatedBy,
	).Scan(&ev.ID)
	return classifyError("insert stock_event", err)
}

// LockKey toma un advisory lock de transacción sobre la clave. Respeta lock_timeout.
func (r *StockEventRepo) LockKey(ctx context.Context, key entity.StockKey) error {
	_, err := r.q.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", key.String())
	return classifyError("lock "+key.String(), err)
}

func (r *StockEventRepo) ListByKey(ctx context.Context, key entity.StockKey) ([]entity.StockEvent, error) {
	query := `SELECT ` + stockEventColumns + ` FROM stock_events
		WHERE barcode = $1 AND warehouse = $2 ORDER BY occurred_at, id`
	return r.list(ctx, "list stock_events by key", query, key.Barcode, key.Warehouse)
}

func (r *StockEventRepo) ListByBarcode(ctx context.Context, barcode string) ([]entity.StockEvent, error) {
	query := `SELECT ` + stockEventColumns + ` FROM stock_events
		WHERE barcode = $1 ORDER BY occurred_at, id`
	return r.list(ctx, "list stock_events by barcode", query, barcode)
}

func (r *StockEventRepo) ListBySources(ctx context.Context, sourceType string, sourceIDs []string) ([]entity.StockEvent, error) {
	if len(sourceIDs) == 0 {
		return []entity.StockEvent{}, nil
	}
	query := `SELECT ` + stockEventColumns + ` FROM stock_events
		WHERE source_type = $1 AND source_id = ANY($2) ORDER BY occurred_at, id`
	return r.list(ctx, "list stock_events by source", query, sourceType, sourceIDs)
}

func (r *StockEventRepo) list(ctx context.Context, op, query string, args ...any) ([]entity.StockEvent, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyError(op, err)
	}
	events, err := pgx.CollectRows(rows, scanStockEvent)
	if err != nil {
		return nil, classifyError(op, err)
	}
	if events == nil {
		events = []entity.StockEvent{}
	}
	return events, nil
}

func scanStockEvent(row pgx.CollectableRow) (entity.StockEvent, error) {
	var e entity.StockEvent
	err := row.Scan(&e.ID, &e.Barcode, &e.Variant, &e.Warehouse, &e.Direction, &e.Quantity, &e.EventType,
		&e.SourceType, &e.SourceID, &e.SourceLineID, &e.ReversesEventID, &e.OccurredAt, &e.CreatedBy)
	return e, err
}
