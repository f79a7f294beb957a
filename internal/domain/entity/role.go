package entity

import "time"

// RoleSuperAdmin rol con todos los permisos mapeados explícitamente (no hay bypass en código).
const RoleSuperAdmin = "super_admin"

// Role conjunto nombrado de permisos. DisplayName, Priority y Color son solo de presentación.
type Role struct {
	ID          string
	Name        string
	DisplayName string
	Priority    int
	Color       string
	Permissions []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission capacidad con nombre estable, agrupada por categoría. Sin jerarquía.
type Permission struct {
	Name        string
	Category    string
	Description string
}

// Nombres de permisos.
const (
	PermInventoryView         = "inventory.view"
	PermInventoryOpeningStock = "inventory.opening_stock"
	PermCatalogManage         = "catalog.manage"
	PermDispatch              = "operations.dispatch"
	PermReturn                = "operations.return"
	PermDamage                = "operations.damage"
	PermRecovery              = "operations.recovery"
	PermSelfTransfer          = "operations.self_transfer"
	PermOrdersView            = "orders.view"
	PermOrdersStatusUpdate    = "orders.status_update"
	PermAuditView             = "audit.view"
	PermAuditExport           = "audit.export"
	PermRolesManage           = "roles.manage"
	PermUsersManage           = "users.manage"
)
