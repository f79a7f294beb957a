package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

// Authorizer decide si un usuario tiene un permiso.
type Authorizer interface {
	Authorize(ctx context.Context, userID, permission string) (bool, error)
}

// AuditUseCase consulta de la auditoría (requiere audit.view).
type AuditUseCase struct {
	repo repository.AuditLogRepository
	gate Authorizer
}

// NewAuditUseCase construye el caso de uso.
func NewAuditUseCase(repo repository.AuditLogRepository, gate Authorizer) *AuditUseCase {
	return &AuditUseCase{repo: repo, gate: gate}
}

// List devuelve entradas filtradas, más recientes primero.
func (uc *AuditUseCase) List(ctx context.Context, actor entity.Actor, q dto.AuditLogQuery) (*dto.AuditLogListResponse, error) {
	ok, err := uc.gate.Authorize(ctx, actor.UserID, entity.PermAuditView)
	if err != nil {
		return nil, fmt.Errorf("%w: verificando permiso: %w", domain.ErrPersistence, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: requiere %s", domain.ErrPermissionDenied, entity.PermAuditView)
	}
	page := dto.PageRequest{Limit: q.Limit, Offset: q.Offset}
	page.DefaultPage()
	filter := entity.AuditFilter{
		ActorUserID:  q.ActorUserID,
		ResourceType: q.ResourceType,
		ResourceID:   q.ResourceID,
		Action:       q.Action,
		Limit:        page.Limit,
		Offset:       page.Offset,
	}
	if filter.From, err = parseTime("from", q.From); err != nil {
		return nil, err
	}
	if filter.To, err = parseTime("to", q.To); err != nil {
		return nil, err
	}
	entries, err := uc.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.AuditLogResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.AuditLogResponse{
			ID:           e.ID,
			ActorUserID:  e.ActorUserID,
			ActorName:    e.ActorName,
			Action:       e.Action,
			ResourceType: e.ResourceType,
			ResourceID:   e.ResourceID,
			Details:      e.Details,
			IPAddress:    e.IPAddress,
			UserAgent:    e.UserAgent,
			OccurredAt:   e.OccurredAt,
		})
	}
	return &dto.AuditLogListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}, nil
}

func parseTime(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, domain.NewValidationError(field, "rfc3339")
	}
	return &t, nil
}
