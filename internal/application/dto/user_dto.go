package dto

import "time"

// LoginRequest body de POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse token + usuario. El token solo identifica al usuario.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresIn int          `json:"expires_in"` // segundos
	User      UserResponse `json:"user"`
}

// UserResponse salida de un usuario (sin password) con sus permisos efectivos.
type UserResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	RoleID      string    `json:"role_id,omitempty"`
	RoleName    string    `json:"role_name,omitempty"`
	Status      string    `json:"status"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AssignRoleRequest body de PUT /api/users/:id/role. Reemplaza el rol actual.
type AssignRoleRequest struct {
	RoleID string `json:"role_id" validate:"required"`
}

// CreateRoleRequest body de POST /api/roles.
type CreateRoleRequest struct {
	Name        string   `json:"name" validate:"required,min=2,max=64"`
	DisplayName string   `json:"display_name" validate:"required,max=128"`
	Priority    int      `json:"priority" validate:"min=0,max=1000"`
	Color       string   `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Permissions []string `json:"permissions" validate:"dive,required"`
}

// SetRolePermissionsRequest body de PUT /api/roles/:id/permissions.
type SetRolePermissionsRequest struct {
	Permissions []string `json:"permissions" validate:"dive,required"`
}

// RoleResponse salida de un rol.
type RoleResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Priority    int       `json:"priority"`
	Color       string    `json:"color,omitempty"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

// PermissionResponse permiso del catálogo.
type PermissionResponse struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// CreateUserRequest body de POST /api/users.
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,max=128"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	RoleID   string `json:"role_id" validate:"required"`
}

// UpdateUserStatusRequest body de PATCH /api/users/:id/status.
type UpdateUserStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive suspended"`
}
