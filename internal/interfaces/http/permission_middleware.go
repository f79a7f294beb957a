package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
)

// Authorizer contrato mínimo del gate de permisos (auth.PermissionGate).
type Authorizer interface {
	Authorize(ctx context.Context, userID, permission string) (bool, error)
}

// RequirePermission verifica que el actor tenga el permiso. Debe usarse DESPUÉS de AuthMiddleware.
//
//   - 401 si no hay actor en el contexto.
//   - 403 si el rol del actor no tiene el permiso.
//   - 503 si no se pudo consultar el permiso; nunca se concede por omisión.
func RequirePermission(gate Authorizer, permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := GetUserID(c)
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Code:    "UNAUTHORIZED",
				Message: "usuario no autenticado",
			})
		}
		ok, err := gate.Authorize(c.UserContext(), userID, permission)
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Code:    "PERMISSION_CHECK_FAILED",
				Message: "no se pudo verificar el permiso, intente más tarde",
			})
		}
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Code:    "PERMISSION_DENIED",
				Message: "requiere el permiso '" + permission + "'",
			})
		}
		return c.Next()
	}
}
