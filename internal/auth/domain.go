package auth

import (
	"time"

	"github.com/assetdesk/assetdesk/internal/shared"
)

// Principal represents an account able to authenticate.
type Principal struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         shared.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor projects the principal onto the claims carried in a token.
func (p Principal) Actor() shared.Actor {
	return shared.Actor{ID: p.ID, Email: p.Email, Name: p.Name, Role: p.Role}
}

// NewPrincipal carries the fields required to create an account.
type NewPrincipal struct {
	Name         string
	Email        string
	PasswordHash string
	Role         shared.Role
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Principal shared.Actor `json:"principal"`
}

// VerifyResult reports whether a token still identifies an active principal.
type VerifyResult struct {
	Valid     bool          `json:"valid"`
	Principal *shared.Actor `json:"principal,omitempty"`
}
