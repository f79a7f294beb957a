package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/application/timeline"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// TimelineHandler líneas de tiempo por producto y por orden.
type TimelineHandler struct {
	rec      *timeline.Reconstructor
	exporter *timeline.Exporter
}

// NewTimelineHandler construye el handler.
func NewTimelineHandler(rec *timeline.Reconstructor, exporter *timeline.Exporter) *TimelineHandler {
	return &TimelineHandler{rec: rec, exporter: exporter}
}

// Product godoc
// @Summary      Línea de tiempo de un producto
// @Tags         timeline
// @Security     Bearer
// @Produce      json
// @Param        barcode  path  string  true  "código de barras"
// @Success      200  {array}  dto.TimelineEntryResponse
// @Router       /api/timeline/products/{barcode} [get]
func (h *TimelineHandler) Product(c *fiber.Ctx) error {
	entries, err := h.rec.TimelineForProduct(c.UserContext(), c.Params("barcode"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toTimelineResponse(entries))
}

// ProductPDF godoc
// @Summary      Exportar la línea de tiempo de un producto en PDF
// @Tags         timeline
// @Security     Bearer
// @Produce      application/pdf
// @Param        barcode  path  string  true  "código de barras"
// @Success      200
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/timeline/products/{barcode}/pdf [get]
func (h *TimelineHandler) ProductPDF(c *fiber.Ctx) error {
	barcode := c.Params("barcode")
	doc, err := h.exporter.ProductTimelinePDF(c.UserContext(), GetActor(c), barcode)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="timeline-`+barcode+`.pdf"`)
	return c.Send(doc)
}

// Order godoc
// @Summary      Detalle de una orden con su línea de tiempo
// @Tags         timeline
// @Security     Bearer
// @Produce      json
// @Param        orderId  path  string  true  "id de la orden"
// @Success      200  {object}  dto.OrderDetailResponse
// @Router       /api/timeline/orders/{orderId} [get]
func (h *TimelineHandler) Order(c *fiber.Ctx) error {
	detail, err := h.rec.TimelineForOrder(c.UserContext(), c.Params("orderId"))
	if err != nil {
		return writeError(c, err)
	}
	resp := dto.OrderDetailResponse{
		OrderID:    detail.OrderID,
		Status:     detail.Status,
		Dispatches: make([]dto.DispatchResponse, 0, len(detail.Dispatches)),
		Returns:    make([]dto.ReturnResponse, 0, len(detail.Returns)),
		Timeline:   toTimelineResponse(detail.Entries),
	}
	for _, d := range detail.Dispatches {
		lines := make([]dto.DispatchLineResponse, 0, len(d.Lines))
		for _, l := range d.Lines {
			lines = append(lines, dto.DispatchLineResponse{
				ID:            l.ID,
				Barcode:       l.Barcode,
				Variant:       l.Variant,
				Quantity:      l.Quantity,
				DeclaredValue: l.DeclaredValue,
			})
		}
		resp.Dispatches = append(resp.Dispatches, dto.DispatchResponse{
			ID:        d.ID,
			AWB:       d.AWB,
			Courier:   d.Courier,
			Warehouse: d.Warehouse,
			Status:    d.Status,
			Lines:     lines,
			CreatedAt: d.CreatedAt,
		})
	}
	for _, r := range detail.Returns {
		resp.Returns = append(resp.Returns, dto.ReturnResponse{
			ID:         r.ID,
			DispatchID: r.DispatchID,
			AWB:        r.AWB,
			Barcode:    r.Barcode,
			Warehouse:  r.Warehouse,
			Quantity:   r.Quantity,
			Reason:     r.Reason,
			Status:     r.Status,
			CreatedAt:  r.CreatedAt,
		})
	}
	return c.JSON(resp)
}

func toTimelineResponse(entries []entity.TimelineEntry) []dto.TimelineEntryResponse {
	out := make([]dto.TimelineEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.TimelineEntryResponse{
			EventID:     e.EventID,
			Type:        e.Type,
			Description: e.Description,
			Quantity:    e.Quantity,
			Direction:   e.Direction,
			Warehouse:   e.Warehouse,
			Reference:   e.Reference,
			Timestamp:   e.Timestamp,
			Barcode:     e.Barcode,
			Actor:       e.Actor,
		})
	}
	return out
}
