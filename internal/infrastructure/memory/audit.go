package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var _ repository.AuditLogRepository = (*auditRepo)(nil)

// AuditLogs repositorio de auditoría. Escribe fuera de toda transacción del ledger.
func (s *Store) AuditLogs() repository.AuditLogRepository { return &auditRepo{s: s} }

type auditRepo struct{ s *Store }

func (r *auditRepo) Create(ctx context.Context, entry *entity.AuditLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	v := *entry
	v.Details = append([]byte(nil), entry.Details...)
	return r.s.write(nil, nil, func() { r.s.audit = append(r.s.audit, v) })
}

// List más recientes primero.
func (r *auditRepo) List(ctx context.Context, f entity.AuditFilter) ([]entity.AuditLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	out := make([]entity.AuditLogEntry, 0)
	for _, e := range r.s.audit {
		if matchAudit(e, f) {
			out = append(out, e)
		}
	}
	r.s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return page(out, f.Limit, f.Offset), nil
}

func matchAudit(e entity.AuditLogEntry, f entity.AuditFilter) bool {
	switch {
	case f.ActorUserID != "" && e.ActorUserID != f.ActorUserID:
		return false
	case f.ResourceType != "" && e.ResourceType != f.ResourceType:
		return false
	case f.ResourceID != "" && e.ResourceID != f.ResourceID:
		return false
	case f.Action != "" && e.Action != f.Action:
		return false
	case f.From != nil && e.OccurredAt.Before(*f.From):
		return false
	case f.To != nil && e.OccurredAt.After(*f.To):
		return false
	}
	return true
}
