package repository

import (
	"context"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

// RoleRepository define el puerto para roles, catálogo de permisos y el mapeo muchos-a-muchos.
type RoleRepository interface {
	CreateRole(ctx context.Context, role *entity.Role) error
	GetRoleByID(ctx context.Context, id string) (*entity.Role, error)
	GetRoleByName(ctx context.Context, name string) (*entity.Role, error)
	ListRoles(ctx context.Context) ([]entity.Role, error)

	// UpsertPermission registra o actualiza un permiso del catálogo.
	UpsertPermission(ctx context.Context, perm entity.Permission) error
	ListPermissions(ctx context.Context) ([]entity.Permission, error)

	// PermissionsForRole devuelve los nombres de permiso mapeados al rol (vacío si ninguno).
	PermissionsForRole(ctx context.Context, roleID string) ([]string, error)
	// SetRolePermissions reemplaza el conjunto completo de permisos del rol.
	SetRolePermissions(ctx context.Context, roleID string, permissions []string) error
}
