package users

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/assetdesk/assetdesk/internal/audit"
	"github.com/assetdesk/assetdesk/internal/auth"
	"github.com/assetdesk/assetdesk/internal/shared"
)

// AuditRecorder receives best-effort audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service handles principal administration. Every mutation is audited
// after it succeeded.
type Service struct {
	repo  RepositoryPort
	audit AuditRecorder
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, recorder AuditRecorder) *Service {
	return &Service{repo: repo, audit: recorder}
}

// CreateInput is an admin-created principal.
type CreateInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required,oneof=user technician admin"`
}

// ListUsers returns users matching filter.
func (s *Service) ListUsers(ctx context.Context, filter ListFilter) ([]User, error) {
	users, err := s.repo.ListUsers(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// CreateUser stores a new active principal with the requested role.
func (s *Service) CreateUser(ctx context.Context, actor shared.Actor, in CreateInput, sourceAddr string) (User, error) {
	role, ok := shared.ParseRole(in.Role)
	if !ok {
		return User{}, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, in.Role)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	u, err := s.repo.CreateUser(ctx, NewUser{
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return User{}, fmt.Errorf("users: create: %w", err)
	}
	s.record(ctx, actor, "create", u.ID, map[string]any{"email": u.Email, "role": u.Role}, sourceAddr)
	return u, nil
}

// SetActive activates or soft-deletes a principal. Actors cannot
// deactivate themselves.
func (s *Service) SetActive(ctx context.Context, actor shared.Actor, id int64, active bool, sourceAddr string) (User, error) {
	if !active && actor.ID == id {
		return User{}, fmt.Errorf("%w: cannot deactivate yourself", shared.ErrValidation)
	}
	u, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return User{}, fmt.Errorf("users: set active: %w", err)
	}
	action := "deactivate"
	if active {
		action = "activate"
	}
	s.record(ctx, actor, action, id, nil, sourceAddr)
	return u, nil
}

// ChangeRole assigns a new coarse role. Actors cannot demote themselves.
func (s *Service) ChangeRole(ctx context.Context, actor shared.Actor, id int64, rawRole, sourceAddr string) (User, error) {
	role, ok := shared.ParseRole(rawRole)
	if !ok {
		return User{}, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, rawRole)
	}
	if actor.ID == id && role != actor.Role {
		return User{}, fmt.Errorf("%w: cannot change your own role", shared.ErrValidation)
	}
	u, err := s.repo.SetRole(ctx, id, role)
	if err != nil {
		return User{}, fmt.Errorf("users: set role: %w", err)
	}
	s.record(ctx, actor, "change_role", id, map[string]any{"role": role}, sourceAddr)
	return u, nil
}

// AssignSectors replaces the sectors a technician serves.
func (s *Service) AssignSectors(ctx context.Context, actor shared.Actor, id int64, sectorIDs []int64, sourceAddr string) (User, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, fmt.Errorf("users: load: %w", err)
	}
	if u.Role != shared.RoleTechnician && len(sectorIDs) > 0 {
		return User{}, fmt.Errorf("%w: only technicians serve sectors", shared.ErrValidation)
	}
	if err := s.repo.SetSectors(ctx, id, sectorIDs); err != nil {
		return User{}, fmt.Errorf("users: set sectors: %w", err)
	}
	u.SectorIDs = sectorIDs
	s.record(ctx, actor, "assign_sectors", id, map[string]any{"sectorIds": sectorIDs}, sourceAddr)
	return u, nil
}

func (s *Service) record(ctx context.Context, actor shared.Actor, action string, target int64, detail map[string]any, sourceAddr string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, audit.Entry{
		ActorID:    actor.ID,
		Action:     action,
		Module:     "users",
		TargetID:   strconv.FormatInt(target, 10),
		Detail:     detail,
		SourceAddr: sourceAddr,
	})
}
