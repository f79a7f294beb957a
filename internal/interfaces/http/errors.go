package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/domain"
)

// writeError traduce un error de dominio a status HTTP + dto.ErrorResponse.
// Los errores de persistencia no exponen el detalle interno.
func writeError(c *fiber.Ctx, err error) error {
	status, code := fiber.StatusInternalServerError, "PERSISTENCE"
	msg := err.Error()
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = fiber.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrPermissionDenied):
		status, code = fiber.StatusForbidden, "PERMISSION_DENIED"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUserNotFound):
		// ErrNotFound dentro de una validación (status_update sobre registro inexistente) es 404 igual.
		status, code = fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrInsufficientStock):
		status, code = fiber.StatusConflict, "INSUFFICIENT_STOCK"
	case errors.Is(err, domain.ErrValidation):
		status, code = fiber.StatusBadRequest, "VALIDATION"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		status, code = fiber.StatusConflict, "CONCURRENCY_CONFLICT"
	case errors.Is(err, domain.ErrDuplicate), errors.Is(err, domain.ErrEmailAlreadyExists):
		status, code = fiber.StatusConflict, "DUPLICATE"
	default:
		msg = "error interno, intente más tarde"
	}
	resp := dto.ErrorResponse{Code: code, Message: msg}
	var verrs domain.ValidationErrors
	if code == "VALIDATION" && errors.As(err, &verrs) {
		for _, fe := range verrs {
			resp.Fields = append(resp.Fields, dto.FieldErrorResponse{Field: fe.Field, Rule: fe.Tag, Param: fe.Value})
		}
	}
	return c.Status(status).JSON(resp)
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
