package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

// permCacheEntry permisos cacheados de un rol. version permite descartar entradas
// cargadas antes de una invalidación.
type permCacheEntry struct {
	perms     map[string]struct{}
	expiresAt time.Time
	version   uint64
}

// PermissionGate decide si un usuario tiene un permiso. Por defecto niega: usuario
// desconocido, inactivo, sin rol o con un rol sin permisos no pasa.
// Usuario → rol se resuelve en cada llamada; rol → permisos se cachea con TTL corto.
type PermissionGate struct {
	users repository.UserRepository
	roles repository.RoleRepository
	ttl   time.Duration
	now   func() time.Time

	cache   sync.Map // roleID -> permCacheEntry
	version atomic.Uint64
}

// GateOption configura el gate.
type GateOption func(*PermissionGate)

// WithClock reemplaza el reloj (tests de expiración del cache).
func WithClock(now func() time.Time) GateOption {
	return func(g *PermissionGate) { g.now = now }
}

// NewPermissionGate construye el gate. ttl <= 0 desactiva el cache.
func NewPermissionGate(users repository.UserRepository, roles repository.RoleRepository, ttl time.Duration, opts ...GateOption) *PermissionGate {
	g := &PermissionGate{users: users, roles: roles, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Authorize devuelve true solo si el rol actual del usuario tiene el permiso.
// Un error de lectura se devuelve tal cual; el llamador debe tratarlo como denegado.
func (g *PermissionGate) Authorize(ctx context.Context, userID, permission string) (bool, error) {
	if userID == "" || permission == "" {
		return false, nil
	}
	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if user == nil || user.Status != entity.UserStatusActive || user.RoleID == "" {
		return false, nil
	}
	perms, err := g.permissionsForRole(ctx, user.RoleID)
	if err != nil {
		return false, err
	}
	_, ok := perms[permission]
	return ok, nil
}

// PermissionsForUser lista los permisos efectivos del usuario (vacío si no tiene rol).
func (g *PermissionGate) PermissionsForUser(ctx context.Context, userID string) ([]string, error) {
	user, err := g.users.GetByID(ctx, userID)
	if err != nil || user == nil || user.RoleID == "" {
		return []string{}, err
	}
	perms, err := g.permissionsForRole(ctx, user.RoleID)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(perms))
	for p := range perms {
		out = append(out, p)
	}
	return out, nil
}

// InvalidateRole descarta los permisos cacheados del rol. Se llama en cada edición de rol.
func (g *PermissionGate) InvalidateRole(roleID string) {
	g.version.Add(1)
	g.cache.Delete(roleID)
}

// InvalidateAll vacía el cache completo.
func (g *PermissionGate) InvalidateAll() {
	g.version.Add(1)
	g.cache.Range(func(k, _ any) bool {
		g.cache.Delete(k)
		return true
	})
}

func (g *PermissionGate) permissionsForRole(ctx context.Context, roleID string) (map[string]struct{}, error) {
	version := g.version.Load()
	if g.ttl > 0 {
		if v, ok := g.cache.Load(roleID); ok {
			e := v.(permCacheEntry)
			if e.version == version && g.now().Before(e.expiresAt) {
				return e.perms, nil
			}
		}
	}
	list, err := g.roles.PermissionsForRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	perms := make(map[string]struct{}, len(list))
	for _, p := range list {
		perms[p] = struct{}{}
	}
	if g.ttl > 0 {
		g.cache.Store(roleID, permCacheEntry{perms: perms, expiresAt: g.now().Add(g.ttl), version: version})
	}
	return perms, nil
}
