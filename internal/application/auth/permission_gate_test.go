package auth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger-api/internal/application/auth"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/memory"
)

// countingRoles cuenta las lecturas de permisos por rol.
type countingRoles struct {
	repository.RoleRepository
	reads atomic.Int32
	fail  atomic.Bool
}

func (c *countingRoles) PermissionsForRole(ctx context.Context, roleID string) ([]string, error) {
	c.reads.Add(1)
	if c.fail.Load() {
		return nil, errors.New("conexión perdida")
	}
	return c.RoleRepository.PermissionsForRole(ctx, roleID)
}

// captureSink guarda lo que se audita.
type captureSink struct {
	mu      sync.Mutex
	entries []entity.AuditLogEntry
}

func (c *captureSink) Record(_ context.Context, e entity.AuditLogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
}

func (c *captureSink) all() []entity.AuditLogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]entity.AuditLogEntry(nil), c.entries...)
}

func seeded(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, auth.SeedDefaults(context.Background(), store.Roles(), store.Users(), auth.AdminSeed{}))
	return store
}

func userWithRole(t *testing.T, store *memory.Store, id, roleName, status string) *entity.User {
	t.Helper()
	ctx := context.Background()
	u := &entity.User{ID: id, Name: "Usuario " + id, Email: id + "@stockledger.test", Status: status}
	if roleName != "" {
		role, err := store.Roles().GetRoleByName(ctx, roleName)
		require.NoError(t, err)
		require.NotNil(t, role)
		u.RoleID = role.ID
	}
	require.NoError(t, store.Users().Create(ctx, u))
	return u
}

func TestPermissionGate_NiegaPorDefecto(t *testing.T) {
	store := seeded(t)
	gate := auth.NewPermissionGate(store.Users(), store.Roles(), time.Minute)
	ctx := context.Background()
	userWithRole(t, store, "sin-rol", "", entity.UserStatusActive)
	userWithRole(t, store, "inactivo", auth.RoleOperator, entity.UserStatusInactive)
	userWithRole(t, store, "viewer", auth.RoleViewer, entity.UserStatusActive)

	cases := []struct {
		name, user, perm string
	}{
		{"usuario desconocido", "fantasma", entity.PermInventoryView},
		{"usuario sin rol", "sin-rol", entity.PermInventoryView},
		{"usuario inactivo", "inactivo", entity.PermDispatch},
		{"permiso fuera del rol", "viewer", entity.PermDispatch},
		{"permiso vacío", "viewer", ""},
		{"usuario vacío", "", entity.PermInventoryView},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := gate.Authorize(ctx, tc.user, tc.perm)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}

	ok, err := gate.Authorize(ctx, "viewer", entity.PermInventoryView)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPermissionGate_SuperAdminTieneTodoElCatalogo(t *testing.T) {
	store := seeded(t)
	gate := auth.NewPermissionGate(store.Users(), store.Roles(), time.Minute)
	userWithRole(t, store, "root", entity.RoleSuperAdmin, entity.UserStatusActive)

	for _, p := range auth.DefaultPermissions {
		ok, err := gate.Authorize(context.Background(), "root", p.Name)
		require.NoError(t, err)
		assert.True(t, ok, p.Name)
	}
	ok, err := gate.Authorize(context.Background(), "root", "nuclear.launch")
	require.NoError(t, err)
	assert.False(t, ok, "ni super_admin pasa un permiso que no está mapeado")
}

func TestPermissionGate_CacheConTTL(t *testing.T) {
	store := seeded(t)
	roles := &countingRoles{RoleRepository: store.Roles()}
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	gate := auth.NewPermissionGate(store.Users(), roles, 30*time.Second, auth.WithClock(func() time.Time { return now }))
	userWithRole(t, store, "op", auth.RoleOperator, entity.UserStatusActive)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := gate.Authorize(ctx, "op", entity.PermDispatch)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, int32(1), roles.reads.Load(), "dentro del TTL no se relee")

	now = now.Add(31 * time.Second)
	_, err := gate.Authorize(ctx, "op", entity.PermDispatch)
	require.NoError(t, err)
	assert.Equal(t, int32(2), roles.reads.Load(), "vencido el TTL se relee")
}

func TestPermissionGate_InvalidarRol(t *testing.T) {
	store := seeded(t)
	gate := auth.NewPermissionGate(store.Users(), store.Roles(), time.Hour)
	u := userWithRole(t, store, "op", auth.RoleOperator, entity.UserStatusActive)
	ctx := context.Background()

	ok, _ := gate.Authorize(ctx, "op", entity.PermDamage)
	require.True(t, ok)

	require.NoError(t, store.Roles().SetRolePermissions(ctx, u.RoleID, []string{entity.PermInventoryView}))
	ok, _ = gate.Authorize(ctx, "op", entity.PermDamage)
	assert.True(t, ok, "sin invalidar sigue el valor cacheado")

	gate.InvalidateRole(u.RoleID)
	ok, _ = gate.Authorize(ctx, "op", entity.PermDamage)
	assert.False(t, ok)

	require.NoError(t, store.Roles().SetRolePermissions(ctx, u.RoleID, []string{entity.PermDamage}))
	gate.InvalidateAll()
	ok, _ = gate.Authorize(ctx, "op", entity.PermDamage)
	assert.True(t, ok)
}

func TestPermissionGate_CambioDeRolSinEsperarTTL(t *testing.T) {
	store := seeded(t)
	gate := auth.NewPermissionGate(store.Users(), store.Roles(), time.Hour)
	userWithRole(t, store, "ana", auth.RoleViewer, entity.UserStatusActive)
	ctx := context.Background()

	ok, _ := gate.Authorize(ctx, "ana", entity.PermDispatch)
	require.False(t, ok)

	manager, err := store.Roles().GetRoleByName(ctx, auth.RoleWarehouseManager)
	require.NoError(t, err)
	require.NoError(t, store.Users().UpdateRole(ctx, "ana", manager.ID))

	ok, _ = gate.Authorize(ctx, "ana", entity.PermDispatch)
	assert.True(t, ok, "usuario → rol se resuelve en cada llamada")
}

func TestPermissionGate_ErrorDeLecturaNoAutoriza(t *testing.T) {
	store := seeded(t)
	roles := &countingRoles{RoleRepository: store.Roles()}
	roles.fail.Store(true)
	gate := auth.NewPermissionGate(store.Users(), roles, 0)
	userWithRole(t, store, "op", auth.RoleOperator, entity.UserStatusActive)

	ok, err := gate.Authorize(context.Background(), "op", entity.PermDispatch)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestPermissionGate_PermisosDelUsuario(t *testing.T) {
	store := seeded(t)
	gate := auth.NewPermissionGate(store.Users(), store.Roles(), time.Minute)
	userWithRole(t, store, "v", auth.RoleViewer, entity.UserStatusActive)
	userWithRole(t, store, "nada", "", entity.UserStatusActive)

	perms, err := gate.PermissionsForUser(context.Background(), "v")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{entity.PermInventoryView, entity.PermOrdersView}, perms)

	perms, err = gate.PermissionsForUser(context.Background(), "nada")
	require.NoError(t, err)
	assert.Empty(t, perms)
}
