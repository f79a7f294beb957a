package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
	"github.com/jhoicas/stockledger-api/pkg/validator"
)

// WarehouseUseCase alta y consulta de bodegas.
type WarehouseUseCase struct {
	repo  repository.WarehouseRepository
	gate  Authorizer
	audit AuditSink
}

// NewWarehouseUseCase construye el caso de uso.
func NewWarehouseUseCase(repo repository.WarehouseRepository, gate Authorizer, audit AuditSink) *WarehouseUseCase {
	return &WarehouseUseCase{repo: repo, gate: gate, audit: audit}
}

// Create crea una bodega activa.
func (uc *WarehouseUseCase) Create(ctx context.Context, actor entity.Actor, in dto.CreateWarehouseRequest) (*dto.WarehouseResponse, error) {
	if err := require(ctx, uc.gate, actor, entity.PermCatalogManage); err != nil {
		return nil, err
	}
	if err := validator.Struct(in); err != nil {
		return nil, err
	}
	existing, err := uc.repo.GetByCode(ctx, in.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: bodega %s", domain.ErrDuplicate, in.Code)
	}
	warehouse := &entity.Warehouse{
		Code:      in.Code,
		Name:      in.Name,
		Address:   in.Address,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := uc.repo.Create(ctx, warehouse); err != nil {
		return nil, err
	}
	record(ctx, uc.audit, actor, entity.AuditCreate, "warehouse", warehouse.Code, map[string]any{
		"name": warehouse.Name,
	})
	return toWarehouseResponse(warehouse), nil
}

// List lista todas las bodegas.
func (uc *WarehouseUseCase) List(ctx context.Context, actor entity.Actor) ([]dto.WarehouseResponse, error) {
	if err := require(ctx, uc.gate, actor, entity.PermInventoryView); err != nil {
		return nil, err
	}
	list, err := uc.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]dto.WarehouseResponse, 0, len(list))
	for i := range list {
		items = append(items, *toWarehouseResponse(&list[i]))
	}
	return items, nil
}

func toWarehouseResponse(w *entity.Warehouse) *dto.WarehouseResponse {
	return &dto.WarehouseResponse{
		Code:      w.Code,
		Name:      w.Name,
		Address:   w.Address,
		Active:    w.Active,
		CreatedAt: w.CreatedAt,
	}
}
