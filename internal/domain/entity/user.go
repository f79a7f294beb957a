package entity

import "time"

// Estados de User.
const (
	UserStatusActive    = "active"
	UserStatusInactive  = "inactive"
	UserStatusSuspended = "suspended"
)

// User representa un usuario del sistema. Tiene exactamente un rol a la vez;
// RoleID vacío equivale a cero permisos.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string // bcrypt hash, nunca plano en dominio después de persistir
	RoleID       string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor es el usuario autenticado que ejecuta una operación, tal como lo entrega
// la capa de autenticación, más el origen de red de la petición.
type Actor struct {
	UserID    string
	Name      string
	Email     string
	RoleID    string
	IPAddress string
	UserAgent string
}
