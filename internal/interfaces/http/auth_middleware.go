package http

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockledger-api/internal/application/auth"
	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/pkg/jwt"
)

// LocalActor clave de c.Locals con el *entity.Actor autenticado.
const LocalActor = "actor"

// ActorResolver carga el actor del user id del token (auth.AuthUseCase).
type ActorResolver interface {
	ResolveActor(ctx context.Context, userID string, meta auth.RequestMeta) (*entity.Actor, error)
}

// AuthMiddleware valida el Bearer Token JWT y resuelve el actor en cada petición,
// así un usuario desactivado o con rol cambiado lo nota de inmediato.
func AuthMiddleware(jwtSecret string, resolver ActorResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header requerido"})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "formato: Bearer <token>"})
		}
		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "token vacío"})
		}
		userID, err := jwt.Parse(jwtSecret, tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
		}
		actor, err := resolver.ResolveActor(c.UserContext(), userID, auth.RequestMeta{
			IPAddress: c.IP(),
			UserAgent: c.Get(fiber.HeaderUserAgent),
		})
		if err != nil {
			return writeError(c, err)
		}
		c.Locals(LocalActor, actor)
		return c.Next()
	}
}

// GetActor devuelve el actor autenticado (después de AuthMiddleware). Zero value si no hay.
func GetActor(c *fiber.Ctx) entity.Actor {
	if a, ok := c.Locals(LocalActor).(*entity.Actor); ok && a != nil {
		return *a
	}
	return entity.Actor{}
}

// GetUserID devuelve el UserID del actor autenticado.
func GetUserID(c *fiber.Ctx) string {
	return GetActor(c).UserID
}
