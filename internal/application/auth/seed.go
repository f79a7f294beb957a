package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

// Nombres de los roles sembrados.
const (
	RoleWarehouseManager = "warehouse_manager"
	RoleOperator         = "operator"
	RoleViewer           = "viewer"
)

// DefaultPermissions catálogo de permisos agrupado por categoría.
var DefaultPermissions = []entity.Permission{
	{Name: entity.PermInventoryView, Category: "inventory", Description: "Consultar saldos e historial"},
	{Name: entity.PermInventoryOpeningStock, Category: "inventory", Description: "Cargar saldo inicial"},
	{Name: entity.PermCatalogManage, Category: "inventory", Description: "Crear productos y bodegas"},
	{Name: entity.PermDispatch, Category: "operations", Description: "Despachar órdenes"},
	{Name: entity.PermReturn, Category: "operations", Description: "Registrar devoluciones"},
	{Name: entity.PermDamage, Category: "operations", Description: "Reportar daños"},
	{Name: entity.PermRecovery, Category: "operations", Description: "Registrar recuperaciones"},
	{Name: entity.PermSelfTransfer, Category: "operations", Description: "Trasladar entre bodegas"},
	{Name: entity.PermOrdersView, Category: "orders", Description: "Consultar órdenes y líneas de tiempo"},
	{Name: entity.PermOrdersStatusUpdate, Category: "orders", Description: "Cambiar estado de registros"},
	{Name: entity.PermAuditView, Category: "audit", Description: "Consultar auditoría"},
	{Name: entity.PermAuditExport, Category: "audit", Description: "Exportar líneas de tiempo"},
	{Name: entity.PermRolesManage, Category: "admin", Description: "Administrar roles y permisos"},
	{Name: entity.PermUsersManage, Category: "admin", Description: "Asignar roles a usuarios"},
}

type roleSeed struct {
	role  entity.Role
	perms []string // nil = todo el catálogo
}

func defaultRoles() []roleSeed {
	return []roleSeed{
		{role: entity.Role{Name: entity.RoleSuperAdmin, DisplayName: "Super administrador", Priority: 100, Color: "#c62828"}},
		{
			role: entity.Role{Name: RoleWarehouseManager, DisplayName: "Jefe de bodega", Priority: 50, Color: "#1565c0"},
			perms: []string{
				entity.PermInventoryView, entity.PermInventoryOpeningStock, entity.PermCatalogManage,
				entity.PermDispatch, entity.PermReturn, entity.PermDamage, entity.PermRecovery, entity.PermSelfTransfer,
				entity.PermOrdersView, entity.PermOrdersStatusUpdate, entity.PermAuditView, entity.PermAuditExport,
			},
		},
		{
			role: entity.Role{Name: RoleOperator, DisplayName: "Operador", Priority: 20, Color: "#2e7d32"},
			perms: []string{
				entity.PermInventoryView, entity.PermDispatch, entity.PermReturn, entity.PermDamage,
				entity.PermRecovery, entity.PermSelfTransfer, entity.PermOrdersView,
			},
		},
		{
			role:  entity.Role{Name: RoleViewer, DisplayName: "Consulta", Priority: 10, Color: "#757575"},
			perms: []string{entity.PermInventoryView, entity.PermOrdersView},
		},
	}
}

// AdminSeed usuario administrador a crear si no existe. Email vacío = no se crea.
type AdminSeed struct {
	Email    string
	Password string
	Name     string
}

// SeedDefaults crea el catálogo de permisos, los roles por defecto y opcionalmente
// el administrador. Idempotente. super_admin queda mapeado explícitamente a todo
// el catálogo; no existe un atajo en código que lo deje pasar.
func SeedDefaults(ctx context.Context, roles repository.RoleRepository, users repository.UserRepository, admin AdminSeed) error {
	all := make([]string, 0, len(DefaultPermissions))
	for _, p := range DefaultPermissions {
		if err := roles.UpsertPermission(ctx, p); err != nil {
			return fmt.Errorf("seed permiso %s: %w", p.Name, err)
		}
		all = append(all, p.Name)
	}

	var superAdminID string
	for _, rs := range defaultRoles() {
		role, err := roles.GetRoleByName(ctx, rs.role.Name)
		if err != nil {
			return err
		}
		if role == nil {
			now := time.Now().UTC()
			role = &rs.role
			role.ID = uuid.New().String()
			role.CreatedAt, role.UpdatedAt = now, now
			if err := roles.CreateRole(ctx, role); err != nil {
				return fmt.Errorf("seed rol %s: %w", rs.role.Name, err)
			}
		}
		perms := rs.perms
		if perms == nil {
			perms = all
		}
		if err := roles.SetRolePermissions(ctx, role.ID, perms); err != nil {
			return fmt.Errorf("seed permisos de %s: %w", rs.role.Name, err)
		}
		if rs.role.Name == entity.RoleSuperAdmin {
			superAdminID = role.ID
		}
	}

	if admin.Email == "" {
		return nil
	}
	existing, err := users.GetByEmail(ctx, admin.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	if admin.Password == "" {
		return fmt.Errorf("seed admin %s: password vacío", admin.Email)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	name := admin.Name
	if name == "" {
		name = "Administrador"
	}
	now := time.Now().UTC()
	return users.Create(ctx, &entity.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        admin.Email,
		PasswordHash: string(hash),
		RoleID:       superAdminID,
		Status:       entity.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}
