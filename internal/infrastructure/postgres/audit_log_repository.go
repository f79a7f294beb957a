package postgres

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var _ repository.AuditLogRepository = (*AuditLogRepo)(nil)

// AuditLogRepo tabla audit_logs. Sin UPDATE ni DELETE.
type AuditLogRepo struct {
	q Querier
}

func NewAuditLogRepository(q Querier) *AuditLogRepo {
	return &AuditLogRepo{q: q}
}

func (r *AuditLogRepo) Create(ctx context.Context, e *entity.AuditLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	details := e.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	query := `
		INSERT INTO audit_logs (id, actor_user_id, actor_name, action, resource_type, resource_id, details, ip_address, user_agent, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		e.ID, e.ActorUserID, e.ActorName, e.Action, e.ResourceType, e.ResourceID,
		[]byte(details), e.IPAddress, e.UserAgent, e.OccurredAt,
	)
	return classifyError("insert audit_log", err)
}

// List más recientes primero, con filtros opcionales.
func (r *AuditLogRepo) List(ctx context.Context, f entity.AuditFilter) ([]entity.AuditLogEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.ActorUserID != "" {
		add("actor_user_id = ?", f.ActorUserID)
	}
	if f.ResourceType != "" {
		add("resource_type = ?", f.ResourceType)
	}
	if f.ResourceID != "" {
		add("resource_id = ?", f.ResourceID)
	}
	if f.Action != "" {
		add("action = ?", f.Action)
	}
	if f.From != nil {
		add("occurred_at >= ?", *f.From)
	}
	if f.To != nil {
		add("occurred_at <= ?", *f.To)
	}

	var b strings.Builder
	b.WriteString(`SELECT id, actor_user_id, actor_name, action, resource_type, resource_id, details, ip_address, user_agent, occurred_at
		FROM audit_logs`)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY occurred_at DESC, id")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		b.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		b.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	}

	rows, err := r.q.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, classifyError("list audit_logs", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.AuditLogEntry, error) {
		var e entity.AuditLogEntry
		var details []byte
		err := row.Scan(&e.ID, &e.ActorUserID, &e.ActorName, &e.Action, &e.ResourceType, &e.ResourceID,
			&details, &e.IPAddress, &e.UserAgent, &e.OccurredAt)
		e.Details = details
		return e, err
	})
	if err != nil {
		return nil, classifyError("list audit_logs", err)
	}
	if list == nil {
		list = []entity.AuditLogEntry{}
	}
	return list, nil
}
