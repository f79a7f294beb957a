package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
	"github.com/jhoicas/stockledger-api/pkg/validator"
)

// ProductUseCase catálogo de productos. La identidad (barcode) es inmutable.
type ProductUseCase struct {
	repo  repository.ProductRepository
	gate  Authorizer
	audit AuditSink
}

// NewProductUseCase construye el caso de uso.
func NewProductUseCase(repo repository.ProductRepository, gate Authorizer, audit AuditSink) *ProductUseCase {
	return &ProductUseCase{repo: repo, gate: gate, audit: audit}
}

// Create registra un producto. Requiere catalog.manage.
func (uc *ProductUseCase) Create(ctx context.Context, actor entity.Actor, in dto.CreateProductRequest) (*dto.ProductResponse, error) {
	if err := require(ctx, uc.gate, actor, entity.PermCatalogManage); err != nil {
		return nil, err
	}
	in.Barcode = strings.TrimSpace(in.Barcode)
	if err := validator.Struct(in); err != nil {
		return nil, err
	}
	existing, err := uc.repo.GetByBarcode(ctx, in.Barcode)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: producto %s", domain.ErrDuplicate, in.Barcode)
	}
	now := time.Now().UTC()
	product := &entity.Product{
		Barcode:   in.Barcode,
		Variant:   in.Variant,
		Name:      in.Name,
		Category:  in.Category,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	record(ctx, uc.audit, actor, entity.AuditCreate, "product", product.Barcode, map[string]any{
		"name":     product.Name,
		"category": product.Category,
	})
	return toProductResponse(product), nil
}

// GetByBarcode obtiene un producto. Requiere inventory.view.
func (uc *ProductUseCase) GetByBarcode(ctx context.Context, actor entity.Actor, barcode string) (*dto.ProductResponse, error) {
	if err := require(ctx, uc.gate, actor, entity.PermInventoryView); err != nil {
		return nil, err
	}
	product, err := uc.repo.GetByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}
	return toProductResponse(product), nil
}

// List lista productos con paginación.
func (uc *ProductUseCase) List(ctx context.Context, actor entity.Actor, page dto.PageRequest) (*dto.ProductListResponse, error) {
	if err := require(ctx, uc.gate, actor, entity.PermInventoryView); err != nil {
		return nil, err
	}
	page.DefaultPage()
	list, err := uc.repo.List(ctx, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.ProductResponse, 0, len(list))
	for i := range list {
		items = append(items, *toProductResponse(&list[i]))
	}
	return &dto.ProductListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}, nil
}

func toProductResponse(p *entity.Product) *dto.ProductResponse {
	return &dto.ProductResponse{
		Barcode:   p.Barcode,
		Variant:   p.Variant,
		Name:      p.Name,
		Category:  p.Category,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func require(ctx context.Context, gate Authorizer, actor entity.Actor, perm string) error {
	if actor.UserID == "" {
		return domain.ErrUnauthorized
	}
	ok, err := gate.Authorize(ctx, actor.UserID, perm)
	if err != nil {
		return fmt.Errorf("%w: verificando permiso: %w", domain.ErrPersistence, err)
	}
	if !ok {
		return fmt.Errorf("%w: requiere %s", domain.ErrPermissionDenied, perm)
	}
	return nil
}

func record(ctx context.Context, sink AuditSink, actor entity.Actor, action, resourceType, resourceID string, details map[string]any) {
	if sink == nil {
		return
	}
	raw, err := json.Marshal(details)
	if err != nil {
		raw = []byte(`{}`)
	}
	sink.Record(context.WithoutCancel(ctx), entity.AuditLogEntry{
		ActorUserID:  actor.UserID,
		ActorName:    actor.Name,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      raw,
		IPAddress:    actor.IPAddress,
		UserAgent:    actor.UserAgent,
		OccurredAt:   time.Now().UTC(),
	})
}
