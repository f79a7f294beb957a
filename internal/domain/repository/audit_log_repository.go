package repository

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// AuditLogRepository puerto de escritura única y lectura de la auditoría.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *entity.AuditLogEntry) error
	List(ctx context.Context, filter entity.AuditFilter) ([]entity.AuditLogEntry, error)
}
