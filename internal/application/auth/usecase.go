package auth

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
	"github.com/jhoicas/stockledger-api/pkg/jwt"
)

// JWTConfig configuración para generación de tokens.
type JWTConfig struct {
	Secret     string
	ExpMinutes int
	Issuer     string
}

// AuditSink recibe entradas de auditoría sin bloquear.
type AuditSink interface {
	Record(ctx context.Context, entry entity.AuditLogEntry)
}

// RequestMeta origen de red de la petición.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// AuthUseCase casos de uso de autenticación: login, logout y resolución del actor.
type AuthUseCase struct {
	userRepo repository.UserRepository
	roleRepo repository.RoleRepository
	gate     *PermissionGate
	audit    AuditSink
	jwtCfg   JWTConfig
}

// NewAuthUseCase construye el caso de uso de auth.
func NewAuthUseCase(userRepo repository.UserRepository, roleRepo repository.RoleRepository, gate *PermissionGate, audit AuditSink, jwtCfg JWTConfig) *AuthUseCase {
	return &AuthUseCase{userRepo: userRepo, roleRepo: roleRepo, gate: gate, audit: audit, jwtCfg: jwtCfg}
}

// Login verifica email/password, genera JWT y retorna token + usuario.
// Todo intento queda auditado; los fallidos llevan el email intentado en details.
func (uc *AuthUseCase) Login(ctx context.Context, in dto.LoginRequest, meta RequestMeta) (*dto.LoginResponse, error) {
	user, err := uc.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		uc.auditLogin(ctx, nil, in.Email, meta, "usuario_inexistente")
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		uc.auditLogin(ctx, user, in.Email, meta, "password_invalido")
		return nil, domain.ErrUnauthorized
	}
	if user.Status != entity.UserStatusActive {
		uc.auditLogin(ctx, user, in.Email, meta, "usuario_"+user.Status)
		return nil, domain.ErrPermissionDenied
	}
	token, err := jwt.Generate(uc.jwtCfg.Secret, user.ID, uc.jwtCfg.Issuer, uc.jwtCfg.ExpMinutes)
	if err != nil {
		return nil, err
	}
	resp, err := uc.toUserResponse(ctx, user)
	if err != nil {
		return nil, err
	}
	uc.auditLogin(ctx, user, in.Email, meta, "")
	return &dto.LoginResponse{
		Token:     token,
		ExpiresIn: uc.jwtCfg.ExpMinutes * 60,
		User:      *resp,
	}, nil
}

// Logout registra la salida. Los tokens no tienen estado: el cliente los descarta.
func (uc *AuthUseCase) Logout(ctx context.Context, actor entity.Actor) {
	uc.record(ctx, entity.AuditLogEntry{
		ActorUserID:  actor.UserID,
		ActorName:    actor.Name,
		Action:       entity.AuditLogout,
		ResourceType: "user",
		ResourceID:   actor.UserID,
		IPAddress:    actor.IPAddress,
		UserAgent:    actor.UserAgent,
	}, map[string]any{"email": actor.Email})
}

// ResolveActor carga el usuario del token. Debe existir y estar activo.
func (uc *AuthUseCase) ResolveActor(ctx context.Context, userID string, meta RequestMeta) (*entity.Actor, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Status != entity.UserStatusActive {
		return nil, domain.ErrUnauthorized
	}
	return &entity.Actor{
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		RoleID:    user.RoleID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	}, nil
}

// Me devuelve el usuario autenticado con sus permisos efectivos.
func (uc *AuthUseCase) Me(ctx context.Context, userID string) (*dto.UserResponse, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return uc.toUserResponse(ctx, user)
}

func (uc *AuthUseCase) auditLogin(ctx context.Context, user *entity.User, email string, meta RequestMeta, failure string) {
	entry := entity.AuditLogEntry{
		Action:       entity.AuditLogin,
		ResourceType: "user",
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	}
	if user != nil {
		entry.ActorUserID = user.ID
		entry.ActorName = user.Name
		entry.ResourceID = user.ID
	}
	details := map[string]any{"email": email, "success": failure == ""}
	if failure != "" {
		details["reason"] = failure
	}
	uc.record(ctx, entry, details)
}

func (uc *AuthUseCase) record(ctx context.Context, entry entity.AuditLogEntry, details map[string]any) {
	if uc.audit == nil {
		return
	}
	raw, err := json.Marshal(details)
	if err != nil {
		raw = []byte(`{}`)
	}
	entry.Details = raw
	entry.OccurredAt = time.Now().UTC()
	uc.audit.Record(context.WithoutCancel(ctx), entry)
}

func (uc *AuthUseCase) toUserResponse(ctx context.Context, u *entity.User) (*dto.UserResponse, error) {
	resp := &dto.UserResponse{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		RoleID:      u.RoleID,
		Status:      u.Status,
		Permissions: []string{},
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
	if u.RoleID == "" {
		return resp, nil
	}
	role, err := uc.roleRepo.GetRoleByID(ctx, u.RoleID)
	if err != nil {
		return nil, err
	}
	if role != nil {
		resp.RoleName = role.Name
	}
	perms, err := uc.gate.PermissionsForUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	resp.Permissions = perms
	return resp, nil
}
