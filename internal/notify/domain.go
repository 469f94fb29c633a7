// Package notify persists user-facing notifications and pushes them to
// connected clients over per-principal topics.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/assetdesk/assetdesk/internal/shared"
)

// Kind classifies a notification for display.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// ParseKind validates a kind name. An empty value defaults to info.
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case "":
		return KindInfo, nil
	case KindInfo, KindSuccess, KindWarning, KindError:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown notification kind %q", shared.ErrValidation, raw)
	}
}

// Notification is a stored notification row.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is the content of a notification independent of its recipient.
type Message struct {
	Kind  Kind   `json:"kind" validate:"required,oneof=info success warning error"`
	Title string `json:"title" validate:"required,max=200"`
	Body  string `json:"body" validate:"max=2000"`
	Link  string `json:"link,omitempty" validate:"omitempty,max=500"`
}

// ListFilter narrows a recipient's notification listing.
type ListFilter struct {
	Read  *bool
	Limit int
}
