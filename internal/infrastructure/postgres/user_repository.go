package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var _ repository.UserRepository = (*UserRepo)(nil)

// UserRepo implementación de UserRepository sobre PostgreSQL. El email se guarda en minúsculas.
type UserRepo struct {
	q Querier
}

// NewUserRepository construye el adaptador.
func NewUserRepository(q Querier) *UserRepo {
	return &UserRepo{q: q}
}

func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, role_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		u.ID, u.Name, strings.ToLower(u.Email), u.PasswordHash, u.RoleID, u.Status, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailAlreadyExists
		}
		return classifyError("insert user", err)
	}
	return nil
}

const userColumns = `id, name, email, password_hash, COALESCE(role_id, ''), status, created_at, updated_at`

func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
}

// UpdateRole reemplaza el rol del usuario.
func (r *UserRepo) UpdateRole(ctx context.Context, userID, roleID string) error {
	tag, err := r.q.Exec(ctx, `UPDATE users SET role_id = NULLIF($2, ''), updated_at = $3 WHERE id = $1`,
		userID, roleID, time.Now().UTC())
	if err != nil {
		return classifyError("update user role", err)
	}
	return requireAffected(tag, userID, domain.ErrUserNotFound)
}

// UpdateStatus cambia el estado del usuario.
func (r *UserRepo) UpdateStatus(ctx context.Context, userID, status string) error {
	tag, err := r.q.Exec(ctx, `UPDATE users SET status = $2, updated_at = $3 WHERE id = $1`,
		userID, status, time.Now().UTC())
	if err != nil {
		return classifyError("update user status", err)
	}
	return requireAffected(tag, userID, domain.ErrUserNotFound)
}

func (r *UserRepo) List(ctx context.Context) ([]entity.User, error) {
	rows, err := r.q.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, classifyError("list users", err)
	}
	defer rows.Close()
	var list []entity.User
	for rows.Next() {
		var u entity.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.RoleID, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, classifyError("scan user", err)
		}
		list = append(list, u)
	}
	return list, classifyError("list users", rows.Err())
}

func (r *UserRepo) getOne(ctx context.Context, query, arg string) (*entity.User, error) {
	var u entity.User
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.RoleID, &u.Status, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, classifyError("get user", err)
	}
	return &u, nil
}
