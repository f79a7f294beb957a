package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger-api/internal/application/auth"
	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/memory"
)

type roleFixture struct {
	store *memory.Store
	gate  *auth.PermissionGate
	uc    *auth.RoleUseCase
	sink  *captureSink
	admin entity.Actor
}

func newRoleFixture(t *testing.T) *roleFixture {
	t.Helper()
	store := seeded(t)
	gate := auth.NewPermissionGate(store.Users(), store.Roles(), time.Hour)
	sink := &captureSink{}
	admin := userWithRole(t, store, "root", entity.RoleSuperAdmin, entity.UserStatusActive)
	return &roleFixture{
		store: store,
		gate:  gate,
		uc:    auth.NewRoleUseCase(store.Roles(), store.Users(), gate, sink),
		sink:  sink,
		admin: entity.Actor{UserID: admin.ID, Name: admin.Name},
	}
}

func TestRoleUseCase_CrearRol(t *testing.T) {
	f := newRoleFixture(t)
	ctx := context.Background()

	resp, err := f.uc.CreateRole(ctx, f.admin, dto.CreateRoleRequest{
		Name: "auditor", DisplayName: "Auditor", Priority: 30, Color: "#ffaa00",
		Permissions: []string{entity.PermAuditView, entity.PermAuditExport},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{entity.PermAuditExport, entity.PermAuditView}, resp.Permissions)

	_, err = f.uc.CreateRole(ctx, f.admin, dto.CreateRoleRequest{Name: "auditor", DisplayName: "Otro"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	_, err = f.uc.CreateRole(ctx, f.admin, dto.CreateRoleRequest{Name: "raro", DisplayName: "Raro", Permissions: []string{"no.existe"}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	entries := f.sink.all()
	require.Len(t, entries, 1)
	assert.Equal(t, entity.AuditCreate, entries[0].Action)
	assert.Equal(t, "role", entries[0].ResourceType)
}

func TestRoleUseCase_RequierePermiso(t *testing.T) {
	f := newRoleFixture(t)
	op := userWithRole(t, f.store, "op", auth.RoleOperator, entity.UserStatusActive)
	actor := entity.Actor{UserID: op.ID}
	ctx := context.Background()

	_, err := f.uc.ListRoles(ctx, actor)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	_, err = f.uc.ListPermissions(ctx, actor)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	err = f.uc.AssignUserRole(ctx, actor, op.ID, dto.AssignRoleRequest{RoleID: "x"})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.Empty(t, f.sink.all())
}

func TestRoleUseCase_EditarPermisosInvalidaElCache(t *testing.T) {
	f := newRoleFixture(t)
	op := userWithRole(t, f.store, "op", auth.RoleOperator, entity.UserStatusActive)
	ctx := context.Background()

	ok, _ := f.gate.Authorize(ctx, op.ID, entity.PermDispatch)
	require.True(t, ok)

	resp, err := f.uc.SetRolePermissions(ctx, f.admin, op.RoleID, dto.SetRolePermissionsRequest{
		Permissions: []string{entity.PermInventoryView},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{entity.PermInventoryView}, resp.Permissions)

	ok, _ = f.gate.Authorize(ctx, op.ID, entity.PermDispatch)
	assert.False(t, ok, "el cambio aplica sin esperar el TTL")

	_, err = f.uc.SetRolePermissions(ctx, f.admin, "no-existe", dto.SetRolePermissionsRequest{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRoleUseCase_AsignarRol(t *testing.T) {
	f := newRoleFixture(t)
	viewer := userWithRole(t, f.store, "v", auth.RoleViewer, entity.UserStatusActive)
	ctx := context.Background()
	manager, err := f.store.Roles().GetRoleByName(ctx, auth.RoleWarehouseManager)
	require.NoError(t, err)

	require.NoError(t, f.uc.AssignUserRole(ctx, f.admin, viewer.ID, dto.AssignRoleRequest{RoleID: manager.ID}))
	ok, _ := f.gate.Authorize(ctx, viewer.ID, entity.PermOrdersStatusUpdate)
	assert.True(t, ok)

	err = f.uc.AssignUserRole(ctx, f.admin, "nadie", dto.AssignRoleRequest{RoleID: manager.ID})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	err = f.uc.AssignUserRole(ctx, f.admin, viewer.ID, dto.AssignRoleRequest{RoleID: "no-existe"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	entries := f.sink.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "user", entries[0].ResourceType)
	assert.Equal(t, viewer.ID, entries[0].ResourceID)
}

func TestRoleUseCase_Listados(t *testing.T) {
	f := newRoleFixture(t)
	ctx := context.Background()

	roles, err := f.uc.ListRoles(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, roles, 4)

	perms, err := f.uc.ListPermissions(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, perms, len(auth.DefaultPermissions))
}
