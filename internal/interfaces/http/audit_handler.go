package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockledger-api/internal/application/audit"
	"github.com/jhoicas/stockledger-api/internal/application/dto"
)

// AuditHandler consulta de la auditoría.
type AuditHandler struct {
	uc *audit.AuditUseCase
}

// NewAuditHandler construye el handler.
func NewAuditHandler(uc *audit.AuditUseCase) *AuditHandler {
	return &AuditHandler{uc: uc}
}

// List godoc
// @Summary      Listar auditoría (más recientes primero)
// @Tags         audit
// @Security     Bearer
// @Produce      json
// @Param        actor_user_id  query  string  false  "usuario"
// @Param        resource_type  query  string  false  "tipo de recurso"
// @Param        resource_id    query  string  false  "id del recurso"
// @Param        action         query  string  false  "CREATE | UPDATE | LOGIN | ..."
// @Param        from           query  string  false  "RFC3339"
// @Param        to             query  string  false  "RFC3339"
// @Param        limit          query  int     false  "máx 100"
// @Param        offset         query  int     false  "desplazamiento"
// @Success      200  {object}  dto.AuditLogListResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Router       /api/audit-logs [get]
func (h *AuditHandler) List(c *fiber.Ctx) error {
	var q dto.AuditLogQuery
	if err := c.QueryParser(&q); err != nil {
		return badBody(c)
	}
	out, err := h.uc.List(c.UserContext(), GetActor(c), q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}
