package users

import (
	"time"

	"github.com/assetdesk/assetdesk/internal/shared"
)

// User is the administrative view of a principal.
type User struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      shared.Role `json:"role"`
	IsActive  bool        `json:"isActive"`
	SectorIDs []int64     `json:"sectorIds,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// NewUser carries the fields of an admin-created principal.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
	Role         shared.Role
}

// ListFilter narrows a listing.
type ListFilter struct {
	Role       shared.Role
	ActiveOnly bool
}
