package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var (
	_ repository.UserRepository = (*userRepo)(nil)
	_ repository.RoleRepository = (*roleRepo)(nil)
)

// Users repositorio de usuarios.
func (s *Store) Users() repository.UserRepository { return &userRepo{s: s} }

// Roles repositorio de roles y permisos.
func (s *Store) Roles() repository.RoleRepository { return &roleRepo{s: s} }

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, u *entity.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.ID == "" {
		return domain.NewValidationError("id", "required")
	}
	v := *u
	v.Email = strings.ToLower(v.Email)
	return r.s.write(nil, func() error {
		for _, existing := range r.s.users {
			if existing.Email == v.Email {
				return domain.ErrEmailAlreadyExists
			}
		}
		if _, ok := r.s.users[v.ID]; ok {
			return fmt.Errorf("%w: usuario %s", domain.ErrDuplicate, v.ID)
		}
		return nil
	}, func() { r.s.users[v.ID] = v })
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return getFrom(ctx, r.s, r.s.users, id)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email = strings.ToLower(email)
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Email == email {
			v := u
			return &v, nil
		}
	}
	return nil, nil
}

func (r *userRepo) UpdateRole(ctx context.Context, userID, roleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.s.write(nil, func() error {
		if _, ok := r.s.users[userID]; !ok {
			return domain.ErrUserNotFound
		}
		return nil
	}, func() {
		u := r.s.users[userID]
		u.RoleID = roleID
		u.UpdatedAt = time.Now().UTC()
		r.s.users[userID] = u
	})
}

func (r *userRepo) UpdateStatus(ctx context.Context, userID, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.s.write(nil, func() error {
		if _, ok := r.s.users[userID]; !ok {
			return domain.ErrUserNotFound
		}
		return nil
	}, func() {
		u := r.s.users[userID]
		u.Status = status
		u.UpdatedAt = time.Now().UTC()
		r.s.users[userID] = u
	})
}

func (r *userRepo) List(ctx context.Context) ([]entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	out := make([]entity.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	r.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

type roleRepo struct{ s *Store }

func (r *roleRepo) CreateRole(ctx context.Context, role *entity.Role) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if role.ID == "" || role.Name == "" {
		return domain.NewValidationError("name", "required")
	}
	v := *role
	v.Permissions = nil
	return r.s.write(nil, func() error {
		for _, existing := range r.s.roles {
			if existing.Name == v.Name {
				return fmt.Errorf("%w: rol %s", domain.ErrDuplicate, v.Name)
			}
		}
		return nil
	}, func() { r.s.roles[v.ID] = v })
}

func (r *roleRepo) GetRoleByID(ctx context.Context, id string) (*entity.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	role, ok := r.s.roles[id]
	if !ok {
		return nil, nil
	}
	return r.withPermsLocked(role), nil
}

func (r *roleRepo) GetRoleByName(ctx context.Context, name string) (*entity.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, role := range r.s.roles {
		if role.Name == name {
			return r.withPermsLocked(role), nil
		}
	}
	return nil, nil
}

func (r *roleRepo) ListRoles(ctx context.Context) ([]entity.Role, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	out := make([]entity.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		out = append(out, *r.withPermsLocked(role))
	}
	r.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *roleRepo) withPermsLocked(role entity.Role) *entity.Role {
	role.Permissions = append([]string(nil), r.s.rolePerms[role.ID]...)
	return &role
}

func (r *roleRepo) UpsertPermission(ctx context.Context, perm entity.Permission) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if perm.Name == "" {
		return domain.NewValidationError("name", "required")
	}
	return r.s.write(nil, nil, func() { r.s.permissions[perm.Name] = perm })
}

func (r *roleRepo) ListPermissions(ctx context.Context) ([]entity.Permission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	out := make([]entity.Permission, 0, len(r.s.permissions))
	for _, p := range r.s.permissions {
		out = append(out, p)
	}
	r.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *roleRepo) PermissionsForRole(ctx context.Context, roleID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]string{}, r.s.rolePerms[roleID]...), nil
}

// SetRolePermissions reemplaza el mapeo. Solo acepta permisos del catálogo.
func (r *roleRepo) SetRolePermissions(ctx context.Context, roleID string, permissions []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	perms := dedupeSorted(permissions)
	return r.s.write(nil, func() error {
		if _, ok := r.s.roles[roleID]; !ok {
			return fmt.Errorf("rol %s: %w", roleID, domain.ErrNotFound)
		}
		for _, p := range perms {
			if _, ok := r.s.permissions[p]; !ok {
				return fmt.Errorf("permiso %s: %w", p, domain.NewValidationError("permissions", "exists"))
			}
		}
		return nil
	}, func() { r.s.rolePerms[roleID] = perms })
}

func dedupeSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
