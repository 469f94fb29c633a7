package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/assetdesk/assetdesk/internal/audit"
	"github.com/assetdesk/assetdesk/internal/shared"
)

// AuditRecorder receives best-effort audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	issuer *Issuer
	audit  AuditRecorder
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, issuer *Issuer, recorder AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, issuer: issuer, audit: recorder, logger: logger}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Principal, error) {
	principal, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrAuthInvalid
		}
		return nil, fmt.Errorf("auth: find principal: %w", err)
	}
	if !principal.IsActive {
		return nil, shared.ErrAuthInvalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrAuthInvalid
	}
	return principal, nil
}

// Login authenticates and issues a token. Only a successful login is audited.
func (s *Service) Login(ctx context.Context, email, password, sourceAddr string) (LoginResult, error) {
	principal, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return LoginResult{}, err
	}
	token, expiresAt, err := s.issuer.Issue(*principal)
	if err != nil {
		return LoginResult{}, err
	}
	s.record(ctx, audit.Entry{
		ActorID:    principal.ID,
		Action:     "login",
		Module:     "auth",
		TargetID:   strconv.FormatInt(principal.ID, 10),
		SourceAddr: sourceAddr,
	})
	return LoginResult{Token: token, ExpiresAt: expiresAt, Principal: principal.Actor()}, nil
}

// Register creates an active principal with the user role.
func (s *Service) Register(ctx context.Context, name, email, password, sourceAddr string) (*Principal, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	principal, err := s.repo.Create(ctx, NewPrincipal{
		Name:         strings.TrimSpace(name),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Role:         shared.RoleUser,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, audit.Entry{
		ActorID:    principal.ID,
		Action:     "register",
		Module:     "auth",
		TargetID:   strconv.FormatInt(principal.ID, 10),
		SourceAddr: sourceAddr,
	})
	return principal, nil
}

// Verify re-derives the principal from the token and re-reads its current
// state, so a deactivated principal cannot keep using an unexpired token.
func (s *Service) Verify(ctx context.Context, token string) (VerifyResult, error) {
	claims, err := s.issuer.Parse(token)
	if err != nil {
		return VerifyResult{Valid: false}, nil
	}
	principal, err := s.repo.FindByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return VerifyResult{Valid: false}, nil
		}
		return VerifyResult{}, fmt.Errorf("auth: verify: %w", err)
	}
	if !principal.IsActive {
		return VerifyResult{Valid: false}, nil
	}
	actor := principal.Actor()
	return VerifyResult{Valid: true, Principal: &actor}, nil
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, entry)
}

// HashPassword hashes a secret with bcrypt.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hashed), nil
}
