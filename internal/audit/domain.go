package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/assetdesk/assetdesk/internal/shared"
)

// Entry is a security-relevant action to be appended to the trail.
type Entry struct {
	ActorID    int64
	Action     string
	Module     string
	TargetID   string
	Detail     map[string]any
	SourceAddr string
	At         time.Time
}

// Record is a stored audit entry.
type Record struct {
	ID         int64          `json:"id"`
	ActorID    int64          `json:"actorId"`
	Action     string         `json:"action"`
	Module     string         `json:"module"`
	TargetID   string         `json:"targetId,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	SourceAddr string         `json:"sourceAddr"`
	At         time.Time      `json:"at"`
}

// Filters narrows a listing. Zero values mean "any".
type Filters struct {
	ActorID int64
	Module  string
	Action  string
	From    time.Time
	To      time.Time
	Limit   int
}

// Window is the bucket size used by summaries.
type Window string

const (
	WindowHour Window = "hour"
	WindowDay  Window = "day"
	WindowWeek Window = "week"
)

// ParseWindow validates a bucket name, defaulting to day.
func ParseWindow(raw string) (Window, error) {
	switch w := Window(strings.ToLower(strings.TrimSpace(raw))); w {
	case "":
		return WindowDay, nil
	case WindowHour, WindowDay, WindowWeek:
		return w, nil
	default:
		return "", fmt.Errorf("%w: unknown window %q", shared.ErrValidation, raw)
	}
}

// SummaryFilters bounds a summary query.
type SummaryFilters struct {
	From   time.Time
	To     time.Time
	Window Window
}

// Summary is the result of a summary query together with the bounds and
// window that were applied.
type Summary struct {
	From   time.Time    `json:"from"`
	To     time.Time    `json:"to"`
	Window Window       `json:"window"`
	Rows   []SummaryRow `json:"rows"`
}

// SummaryRow counts entries for one (module, action) pair in one bucket.
type SummaryRow struct {
	Bucket time.Time `json:"bucket"`
	Module string    `json:"module"`
	Action string    `json:"action"`
	Count  int64     `json:"count"`
}
