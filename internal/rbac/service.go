package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/assetdesk/assetdesk/internal/shared"
)

// Service resolves per-module capabilities.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Check decides whether actor holds capability on module. Admins are
// allowed without consulting storage.
func (s *Service) Check(ctx context.Context, actor shared.Actor, module string, capability Capability) (bool, error) {
	if _, ok := capabilityNames[capability]; !ok {
		return false, ErrUnknownCapability
	}
	if actor.IsAdmin() {
		return true, nil
	}
	caps, found, err := s.repo.Capabilities(ctx, actor.ID, module)
	if err != nil {
		return false, fmt.Errorf("rbac: load capabilities: %w", err)
	}
	if !found {
		return false, nil
	}
	return caps.Allows(capability), nil
}

// CheckByID parses action and resolves the principal's role from storage.
func (s *Service) CheckByID(ctx context.Context, principalID int64, module, action string) (bool, error) {
	capability, err := ParseCapability(action)
	if err != nil {
		return false, err
	}
	role, err := s.repo.PrincipalRole(ctx, principalID)
	if err != nil {
		return false, fmt.Errorf("rbac: load principal: %w", err)
	}
	return s.Check(ctx, shared.Actor{ID: principalID, Role: role}, strings.TrimSpace(module), capability)
}

// Permissions returns the stored capability map of a principal.
func (s *Service) Permissions(ctx context.Context, principalID int64) (PermissionSet, error) {
	if _, err := s.repo.PrincipalRole(ctx, principalID); err != nil {
		return nil, fmt.Errorf("rbac: load principal: %w", err)
	}
	set, err := s.repo.Permissions(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("rbac: load permissions: %w", err)
	}
	return set, nil
}

// Save replaces the full capability map of a principal. Modules with no
// bit set are not stored, matching the absent-row semantics.
func (s *Service) Save(ctx context.Context, principalID int64, set PermissionSet) (PermissionSet, error) {
	normalized := make(PermissionSet, len(set))
	seen := make(map[string]struct{}, len(set))
	for module, caps := range set {
		name := strings.ToLower(strings.TrimSpace(module))
		if !KnownModule(name) {
			return nil, fmt.Errorf("%w %q", ErrUnknownModule, module)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w %q", ErrDuplicateModule, name)
		}
		seen[name] = struct{}{}
		if caps.Empty() {
			continue
		}
		normalized[name] = caps
	}
	if _, err := s.repo.PrincipalRole(ctx, principalID); err != nil {
		return nil, fmt.Errorf("rbac: load principal: %w", err)
	}
	if err := s.repo.Replace(ctx, principalID, normalized); err != nil {
		return nil, fmt.Errorf("rbac: replace permissions: %w", err)
	}
	return normalized, nil
}
