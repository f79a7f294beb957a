package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
	"github.com/jhoicas/stockledger-api/pkg/validator"
)

// RoleUseCase administración de roles, permisos y asignación de rol a usuarios.
// Toda edición invalida el cache del gate y queda auditada.
type RoleUseCase struct {
	roles repository.RoleRepository
	users repository.UserRepository
	gate  *PermissionGate
	audit AuditSink
}

// NewRoleUseCase construye el caso de uso.
func NewRoleUseCase(roles repository.RoleRepository, users repository.UserRepository, gate *PermissionGate, audit AuditSink) *RoleUseCase {
	return &RoleUseCase{roles: roles, users: users, gate: gate, audit: audit}
}

func (uc *RoleUseCase) require(ctx context.Context, actor entity.Actor, perm string) error {
	ok, err := uc.gate.Authorize(ctx, actor.UserID, perm)
	if err != nil {
		return fmt.Errorf("%w: verificando permiso: %w", domain.ErrPersistence, err)
	}
	if !ok {
		return fmt.Errorf("%w: requiere %s", domain.ErrPermissionDenied, perm)
	}
	return nil
}

// ListRoles lista roles con sus permisos.
func (uc *RoleUseCase) ListRoles(ctx context.Context, actor entity.Actor) ([]dto.RoleResponse, error) {
	if err := uc.require(ctx, actor, entity.PermRolesManage); err != nil {
		return nil, err
	}
	roles, err := uc.roles.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.RoleResponse, 0, len(roles))
	for i := range roles {
		out = append(out, toRoleResponse(&roles[i]))
	}
	return out, nil
}

// ListPermissions catálogo completo.
func (uc *RoleUseCase) ListPermissions(ctx context.Context, actor entity.Actor) ([]dto.PermissionResponse, error) {
	if err := uc.require(ctx, actor, entity.PermRolesManage); err != nil {
		return nil, err
	}
	perms, err := uc.roles.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PermissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, dto.PermissionResponse{Name: p.Name, Category: p.Category, Description: p.Description})
	}
	return out, nil
}

// CreateRole crea un rol con su conjunto inicial de permisos.
func (uc *RoleUseCase) CreateRole(ctx context.Context, actor entity.Actor, in dto.CreateRoleRequest) (*dto.RoleResponse, error) {
	if err := uc.require(ctx, actor, entity.PermRolesManage); err != nil {
		return nil, err
	}
	if err := validator.Struct(in); err != nil {
		return nil, err
	}
	existing, err := uc.roles.GetRoleByName(ctx, in.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: rol %s", domain.ErrDuplicate, in.Name)
	}
	if err := uc.checkCatalog(ctx, in.Permissions); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	role := &entity.Role{
		ID:          uuid.New().String(),
		Name:        in.Name,
		DisplayName: in.DisplayName,
		Priority:    in.Priority,
		Color:       in.Color,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.roles.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	if err := uc.roles.SetRolePermissions(ctx, role.ID, in.Permissions); err != nil {
		return nil, err
	}
	uc.gate.InvalidateRole(role.ID)
	role.Permissions = append([]string(nil), in.Permissions...)
	sort.Strings(role.Permissions)

	uc.record(ctx, actor, entity.AuditCreate, "role", role.ID, map[string]any{
		"name":        role.Name,
		"permissions": role.Permissions,
	})
	resp := toRoleResponse(role)
	return &resp, nil
}

// SetRolePermissions reemplaza el conjunto de permisos del rol.
func (uc *RoleUseCase) SetRolePermissions(ctx context.Context, actor entity.Actor, roleID string, in dto.SetRolePermissionsRequest) (*dto.RoleResponse, error) {
	if err := uc.require(ctx, actor, entity.PermRolesManage); err != nil {
		return nil, err
	}
	if err := validator.Struct(in); err != nil {
		return nil, err
	}
	role, err := uc.roles.GetRoleByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, domain.ErrNotFound
	}
	if err := uc.checkCatalog(ctx, in.Permissions); err != nil {
		return nil, err
	}
	before := role.Permissions
	if err := uc.roles.SetRolePermissions(ctx, roleID, in.Permissions); err != nil {
		return nil, err
	}
	uc.gate.InvalidateRole(roleID)

	updated, err := uc.roles.GetRoleByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	uc.record(ctx, actor, entity.AuditUpdate, "role", roleID, map[string]any{
		"name":   role.Name,
		"before": before,
		"after":  updated.Permissions,
	})
	resp := toRoleResponse(updated)
	return &resp, nil
}

// AssignUserRole reemplaza el rol del usuario. Aplica desde la siguiente petición.
func (uc *RoleUseCase) AssignUserRole(ctx context.Context, actor entity.Actor, userID string, in dto.AssignRoleRequest) error {
	if err := uc.require(ctx, actor, entity.PermUsersManage); err != nil {
		return err
	}
	if err := validator.Struct(in); err != nil {
		return err
	}
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return domain.ErrUserNotFound
	}
	role, err := uc.roles.GetRoleByID(ctx, in.RoleID)
	if err != nil {
		return err
	}
	if role == nil {
		return fmt.Errorf("rol %s: %w", in.RoleID, domain.NewValidationError("role_id", "exists"))
	}
	if err := uc.users.UpdateRole(ctx, userID, role.ID); err != nil {
		return err
	}
	uc.record(ctx, actor, entity.AuditUpdate, "user", userID, map[string]any{
		"field":     "role",
		"from_role": user.RoleID,
		"to_role":   role.ID,
		"role_name": role.Name,
	})
	return nil
}

// checkCatalog rechaza permisos que no existen en el catálogo.
func (uc *RoleUseCase) checkCatalog(ctx context.Context, perms []string) error {
	catalog, err := uc.roles.ListPermissions(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(catalog))
	for _, p := range catalog {
		known[p.Name] = struct{}{}
	}
	for _, p := range perms {
		if _, ok := known[p]; !ok {
			return fmt.Errorf("permiso %s: %w", p, domain.NewValidationError("permissions", "exists"))
		}
	}
	return nil
}

func (uc *RoleUseCase) record(ctx context.Context, actor entity.Actor, action, resourceType, resourceID string, details map[string]any) {
	if uc.audit == nil {
		return
	}
	raw, err := json.Marshal(details)
	if err != nil {
		raw = []byte(`{}`)
	}
	uc.audit.Record(context.WithoutCancel(ctx), entity.AuditLogEntry{
		ActorUserID:  actor.UserID,
		ActorName:    actor.Name,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      raw,
		IPAddress:    actor.IPAddress,
		UserAgent:    actor.UserAgent,
		OccurredAt:   time.Now().UTC(),
	})
}

func toRoleResponse(r *entity.Role) dto.RoleResponse {
	perms := r.Permissions
	if perms == nil {
		perms = []string{}
	}
	return dto.RoleResponse{
		ID:          r.ID,
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Priority:    r.Priority,
		Color:       r.Color,
		Permissions: perms,
		CreatedAt:   r.CreatedAt,
	}
}
