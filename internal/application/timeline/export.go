package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

// PDFRenderer genera el PDF de una línea de tiempo. Lo implementa infrastructure/pdf.
type PDFRenderer interface {
	RenderProductTimeline(product *entity.Product, barcode string, entries []entity.TimelineEntry, generatedAt time.Time) ([]byte, error)
}

// Authorizer decide si un usuario tiene un permiso.
type Authorizer interface {
	Authorize(ctx context.Context, userID, permission string) (bool, error)
}

// AuditSink recibe entradas de auditoría sin bloquear.
type AuditSink interface {
	Record(ctx context.Context, entry entity.AuditLogEntry)
}

// Exporter exporta líneas de tiempo (requiere audit.export) y deja registro EXPORT.
type Exporter struct {
	rec      *Reconstructor
	products repository.ProductRepository
	pdf      PDFRenderer
	gate     Authorizer
	audit    AuditSink
}

// NewExporter construye el exportador.
func NewExporter(rec *Reconstructor, products repository.ProductRepository, pdf PDFRenderer, gate Authorizer, audit AuditSink) *Exporter {
	return &Exporter{rec: rec, products: products, pdf: pdf, gate: gate, audit: audit}
}

// ProductTimelinePDF renderiza la línea de tiempo del producto.
func (e *Exporter) ProductTimelinePDF(ctx context.Context, actor entity.Actor, barcode string) ([]byte, error) {
	ok, err := e.gate.Authorize(ctx, actor.UserID, entity.PermAuditExport)
	if err != nil {
		return nil, fmt.Errorf("%w: verificando permiso: %w", domain.ErrPersistence, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: requiere %s", domain.ErrPermissionDenied, entity.PermAuditExport)
	}
	product, err := e.products.GetByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}
	entries, err := e.rec.TimelineForProduct(ctx, barcode)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	doc, err := e.pdf.RenderProductTimeline(product, barcode, entries, now)
	if err != nil {
		return nil, err
	}
	if e.audit != nil {
		details, _ := json.Marshal(map[string]any{"format": "pdf", "entries": len(entries), "bytes": len(doc)})
		e.audit.Record(context.WithoutCancel(ctx), entity.AuditLogEntry{
			ActorUserID:  actor.UserID,
			ActorName:    actor.Name,
			Action:       entity.AuditExport,
			ResourceType: "product_timeline",
			ResourceID:   barcode,
			Details:      details,
			IPAddress:    actor.IPAddress,
			UserAgent:    actor.UserAgent,
			OccurredAt:   now,
		})
	}
	return doc, nil
}
