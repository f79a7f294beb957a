package domain

import (
	"errors"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound            = errors.New("recurso no encontrado")
	ErrUserNotFound        = errors.New("usuario no encontrado")
	ErrEmailAlreadyExists  = errors.New("el email ya está registrado")
	ErrDuplicate           = errors.New("recurso duplicado")
	ErrUnauthorized        = errors.New("no autorizado")
	ErrPermissionDenied    = errors.New("permiso denegado")
	ErrInsufficientStock   = errors.New("stock insuficiente")
	ErrValidation          = errors.New("entrada inválida")
	ErrInvalidTransition   = errors.New("transición de estado inválida")
	ErrConcurrencyConflict = errors.New("conflicto de concurrencia sobre el stock")
	ErrPersistence         = errors.New("error de persistencia")
	ErrAuditWriteFailed    = errors.New("no se pudo escribir la auditoría")
)

// FieldError describe un campo que no pasó la validación.
type FieldError struct {
	Field string
	Tag   string
	Value string
}

// ValidationErrors agrupa los errores por campo. errors.Is(err, ErrValidation) es true.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+" ("+fe.Tag+")")
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (v ValidationErrors) Unwrap() error { return ErrValidation }

// NewValidationError construye un error de validación para un solo campo.
func NewValidationError(field, tag string) error {
	return ValidationErrors{{Field: field, Tag: tag}}
}
