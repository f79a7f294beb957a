package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	domaininv "github.com/jhoicas/stockledger-api/internal/domain/inventory"
)

// StockHandler lecturas del ledger: disponibilidad e historial.
type StockHandler struct {
	availability *inventory.AvailabilityCalculator
	ledger       *inventory.Ledger
}

// NewStockHandler construye el handler.
func NewStockHandler(availability *inventory.AvailabilityCalculator, ledger *inventory.Ledger) *StockHandler {
	return &StockHandler{availability: availability, ledger: ledger}
}

// Availability godoc
// @Summary      Consultar disponibilidad
// @Description  Informativa; no reserva. El saldo puede cambiar antes de operar.
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        barcode    query  string  true  "código de barras"
// @Param        warehouse  query  string  true  "código de bodega"
// @Param        quantity   query  int     true  "unidades solicitadas"
// @Success      200  {object}  dto.AvailabilityResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/availability [get]
func (h *StockHandler) Availability(c *fiber.Ctx) error {
	av, err := h.availability.CheckAvailable(c.UserContext(), c.Query("barcode"), c.Query("warehouse"), c.QueryInt("quantity", 0))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.AvailabilityResponse{
		Barcode:    av.Barcode,
		Warehouse:  av.Warehouse,
		Requested:  av.Requested,
		Available:  av.Available,
		Sufficient: av.Sufficient,
	})
}

// History godoc
// @Summary      Historial de una clave (barcode, bodega) con saldo acumulado
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        barcode    path  string  true  "código de barras"
// @Param        warehouse  path  string  true  "código de bodega"
// @Success      200  {array}  dto.StockEventResponse
// @Router       /api/stock/{barcode}/{warehouse}/history [get]
func (h *StockHandler) History(c *fiber.Ctx) error {
	events, err := h.ledger.History(c.UserContext(), c.Params("barcode"), c.Params("warehouse"))
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.StockEventResponse, 0, len(events))
	running := 0
	for _, e := range events {
		running += e.Signed()
		out = append(out, dto.StockEventResponse{
			ID:         e.ID,
			Barcode:    e.Barcode,
			Variant:    e.Variant,
			Warehouse:  e.Warehouse,
			Direction:  e.Direction,
			Quantity:   e.Quantity,
			EventType:  e.EventType,
			SourceType: e.SourceType,
			SourceID:   e.SourceID,
			OccurredAt: e.OccurredAt,
			Balance:    running,
		})
	}
	return c.JSON(fiber.Map{
		"balance": domaininv.Balance(events),
		"events":  out,
	})
}
