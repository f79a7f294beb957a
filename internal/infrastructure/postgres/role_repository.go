package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var _ repository.RoleRepository = (*RoleRepo)(nil)

// RoleRepo roles, catálogo de permisos y role_permissions.
type RoleRepo struct {
	q Querier
}

func NewRoleRepository(q Querier) *RoleRepo {
	return &RoleRepo{q: q}
}

func (r *RoleRepo) CreateRole(ctx context.Context, role *entity.Role) error {
	query := `
		INSERT INTO roles (id, name, display_name, priority, color, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query,
		role.ID, role.Name, role.DisplayName, role.Priority, role.Color, role.CreatedAt, role.UpdatedAt,
	)
	return classifyError("insert role", err)
}

const roleColumns = `id, name, display_name, priority, color, created_at, updated_at`

func (r *RoleRepo) GetRoleByID(ctx context.Context, id string) (*entity.Role, error) {
	return r.getOne(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
}

func (r *RoleRepo) GetRoleByName(ctx context.Context, name string) (*entity.Role, error) {
	return r.getOne(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
}

// ListRoles por prioridad descendente, con sus permisos.
func (r *RoleRepo) ListRoles(ctx context.Context) ([]entity.Role, error) {
	rows, err := r.q.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY priority DESC, name`)
	if err != nil {
		return nil, classifyError("list roles", err)
	}
	roles, err := pgx.CollectRows(rows, scanRole)
	if err != nil {
		return nil, classifyError("list roles", err)
	}
	for i := range roles {
		if roles[i].Permissions, err = r.PermissionsForRole(ctx, roles[i].ID); err != nil {
			return nil, err
		}
	}
	if roles == nil {
		roles = []entity.Role{}
	}
	return roles, nil
}

func (r *RoleRepo) UpsertPermission(ctx context.Context, perm entity.Permission) error {
	query := `
		INSERT INTO permissions (name, category, description) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET category = EXCLUDED.category, description = EXCLUDED.description`
	_, err := r.q.Exec(ctx, query, perm.Name, perm.Category, perm.Description)
	return classifyError("upsert permission", err)
}

func (r *RoleRepo) ListPermissions(ctx context.Context) ([]entity.Permission, error) {
	rows, err := r.q.Query(ctx, `SELECT name, category, description FROM permissions ORDER BY category, name`)
	if err != nil {
		return nil, classifyError("list permissions", err)
	}
	perms, err := pgx.CollectRows(rows, pgx.RowToStructByPos[entity.Permission])
	if err != nil {
		return nil, classifyError("list permissions", err)
	}
	if perms == nil {
		perms = []entity.Permission{}
	}
	return perms, nil
}

func (r *RoleRepo) PermissionsForRole(ctx context.Context, roleID string) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT permission_name FROM role_permissions WHERE role_id = $1 ORDER BY permission_name`, roleID)
	if err != nil {
		return nil, classifyError("list role permissions", err)
	}
	perms, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, classifyError("list role permissions", err)
	}
	if perms == nil {
		perms = []string{}
	}
	return perms, nil
}

// SetRolePermissions reemplaza el conjunto completo. Con pool (fuera de tx) abre su propia
// transacción para que DELETE e INSERT sean atómicos.
func (r *RoleRepo) SetRolePermissions(ctx context.Context, roleID string, permissions []string) error {
	if b, ok := r.q.(interface {
		Begin(ctx context.Context) (pgx.Tx, error)
	}); ok {
		tx, err := b.Begin(ctx)
		if err != nil {
			return classifyError("begin set role permissions", err)
		}
		defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()
		if err := setRolePermissions(ctx, tx, roleID, permissions); err != nil {
			return err
		}
		return classifyError("commit set role permissions", tx.Commit(ctx))
	}
	return setRolePermissions(ctx, r.q, roleID, permissions)
}

func setRolePermissions(ctx context.Context, q Querier, roleID string, permissions []string) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists); err != nil {
		return classifyError("check role", err)
	}
	if !exists {
		return fmt.Errorf("rol %s: %w", roleID, domain.ErrNotFound)
	}
	perms := append([]string(nil), permissions...)
	sort.Strings(perms)

	if _, err := q.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return classifyError("clear role permissions", err)
	}
	if len(perms) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_name)
		SELECT $1, unnest($2::text[]) ON CONFLICT DO NOTHING`, roleID, perms)
	return classifyError("insert role permissions", err)
}

func (r *RoleRepo) getOne(ctx context.Context, query, arg string) (*entity.Role, error) {
	rows, err := r.q.Query(ctx, query, arg)
	if err != nil {
		return nil, classifyError("get role", err)
	}
	role, err := pgx.CollectOneRow(rows, scanRole)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, classifyError("get role", err)
	}
	if role.Permissions, err = r.PermissionsForRole(ctx, role.ID); err != nil {
		return nil, err
	}
	return &role, nil
}

func scanRole(row pgx.CollectableRow) (entity.Role, error) {
	var role entity.Role
	err := row.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Priority, &role.Color, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}
