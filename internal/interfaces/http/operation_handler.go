package http

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/application/inventory"
)

// OperationHandler expone el pipeline de mutaciones. El handler no valida permisos:
// el pipeline lo hace como primer paso y audita el resultado.
type OperationHandler struct {
	pipeline *inventory.Pipeline
}

// NewOperationHandler construye el handler.
func NewOperationHandler(pipeline *inventory.Pipeline) *OperationHandler {
	return &OperationHandler{pipeline: pipeline}
}

// Execute godoc
// @Summary      Ejecutar una operación de stock
// @Description  type: opening_stock | dispatch | return | damage | recovery | self_transfer
// @Tags         operations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        type  path  string  true  "tipo de operación"
// @Success      201   {object}  dto.OperationResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/operations/{type} [post]
func (h *OperationHandler) Execute(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 || !json.Valid(body) {
		return badBody(c)
	}
	// Fiber reutiliza el buffer del body entre peticiones.
	payload := json.RawMessage(append([]byte(nil), body...))
	return h.run(c, inventory.OperationRequest{
		Type:    inventory.OperationType(c.Params("type")),
		Payload: payload,
	})
}

// statusBody cuerpo de PATCH /api/records/:type/:id/status.
type statusBody struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// UpdateStatus godoc
// @Summary      Cambiar el estado de un registro
// @Tags         operations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        type  path  string  true  "dispatch | return | damage | recovery | self_transfer"
// @Param        id    path  string  true  "id del registro"
// @Success      200   {object}  dto.OperationResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/records/{type}/{id}/status [patch]
func (h *OperationHandler) UpdateStatus(c *fiber.Ctx) error {
	var in statusBody
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	return h.run(c, inventory.OperationRequest{
		Type: inventory.OpStatusUpdate,
		Payload: dto.StatusUpdateRequest{
			RecordType: c.Params("type"),
			RecordID:   c.Params("id"),
			Status:     in.Status,
			Reason:     in.Reason,
		},
	})
}

func (h *OperationHandler) run(c *fiber.Ctx, req inventory.OperationRequest) error {
	res, err := h.pipeline.Execute(c.UserContext(), req, GetActor(c))
	if err != nil {
		return writeError(c, err)
	}
	status := fiber.StatusCreated
	if req.Type == inventory.OpStatusUpdate {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(dto.OperationResponse{
		Status:     res.Status,
		ResourceID: res.ResourceID,
		EventIDs:   res.EventIDs,
	})
}
