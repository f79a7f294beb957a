package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
	"github.com/jhoicas/stockledger-api/pkg/validator"
)

// UserUseCase administración de usuarios: alta, listado y estado.
// El cambio de rol vive en auth.RoleUseCase porque invalida el cache del gate.
type UserUseCase struct {
	repo  repository.UserRepository
	roles repository.RoleRepository
	gate  Authorizer
	audit AuditSink
}

// NewUserUseCase construye el caso de uso con el puerto de persistencia.
func NewUserUseCase(repo repository.UserRepository, roles repository.RoleRepository, gate Authorizer, audit AuditSink) *UserUseCase {
	return &UserUseCase{repo: repo, roles: roles, gate: gate, audit: audit}
}

// Create da de alta un usuario activo con el rol indicado.
func (uc *UserUseCase) Create(ctx context.Context, actor entity.Actor, in dto.CreateUserRequest) (*dto.UserResponse, error) {
	if err := require(ctx, uc.gate, actor, entity.PermUsersManage); err != nil {
		return nil, err
	}
	in.Email = strings.TrimSpace(in.Email)
	if err := validator.Struct(in); err != nil {
		return nil, err
	}
	role, err := uc.roles.GetRoleByID(ctx, in.RoleID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("rol %s: %w", in.RoleID, domain.NewValidationError("role_id", "exists"))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &entity.User{
		ID:           uuid.New().String(),
		Name:         in.Name,
		Email:        strings.ToLower(in.Email),
		PasswordHash: string(hash),
		RoleID:       role.ID,
		Status:       entity.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	record(ctx, uc.audit, actor, entity.AuditCreate, "user", user.ID, map[string]any{
		"email":     user.Email,
		"role_id":   role.ID,
		"role_name": role.Name,
	})
	return toUserResponse(user, role.Name), nil
}

// List lista los usuarios con el nombre de su rol. No incluye permisos efectivos.
func (uc *UserUseCase) List(ctx context.Context, actor entity.Actor) ([]dto.UserResponse, error) {
	if err := require(ctx, uc.gate, actor, entity.PermUsersManage); err != nil {
		return nil, err
	}
	users, err := uc.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	roles, err := uc.roles.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(roles))
	for _, r := range roles {
		names[r.ID] = r.Name
	}
	out := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, *toUserResponse(&users[i], names[users[i].RoleID]))
	}
	return out, nil
}

// SetStatus activa o desactiva un usuario. Aplica en la siguiente petición del
// usuario, que se resuelve de nuevo en cada llamada. Nadie puede desactivarse a sí mismo.
func (uc *UserUseCase) SetStatus(ctx context.Context, actor entity.Actor, userID string, in dto.UpdateUserStatusRequest) error {
	if err := require(ctx, uc.gate, actor, entity.PermUsersManage); err != nil {
		return err
	}
	if err := validator.Struct(in); err != nil {
		return err
	}
	if userID == actor.UserID && in.Status != entity.UserStatusActive {
		return domain.NewValidationError("id", "self")
	}
	user, err := uc.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return domain.ErrUserNotFound
	}
	if user.Status == in.Status {
		return nil
	}
	if err := uc.repo.UpdateStatus(ctx, userID, in.Status); err != nil {
		return err
	}
	record(ctx, uc.audit, actor, entity.AuditUpdate, "user", userID, map[string]any{
		"field": "status",
		"from":  user.Status,
		"to":    in.Status,
	})
	return nil
}

func toUserResponse(u *entity.User, roleName string) *dto.UserResponse {
	return &dto.UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		RoleID:    u.RoleID,
		RoleName:  roleName,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
