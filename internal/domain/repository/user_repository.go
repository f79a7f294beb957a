package repository

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// UserRepository define el puerto de persistencia para User (DIP).
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	// UpdateRole reemplaza el rol del usuario (cambio puntual, no aditivo).
	UpdateRole(ctx context.Context, userID, roleID string) error
	// UpdateStatus cambia el estado (active, inactive, suspended).
	UpdateStatus(ctx context.Context, userID, status string) error
	// List devuelve los usuarios ordenados por email.
	List(ctx context.Context) ([]entity.User, error)
}
