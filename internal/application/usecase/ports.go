package usecase

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// Authorizer decide si un usuario tiene un permiso (auth.PermissionGate).
type Authorizer interface {
	Authorize(ctx context.Context, userID, permission string) (bool, error)
}

// AuditSink recibe entradas de auditoría sin bloquear (audit.Recorder).
type AuditSink interface {
	Record(ctx context.Context, entry entity.AuditLogEntry)
}
