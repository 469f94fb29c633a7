package shared

const (
	// DefaultListLimit applies when a caller does not request a limit.
	DefaultListLimit = 50
	// MaxListLimit caps any list endpoint.
	MaxListLimit = 500
)

// ClampLimit normalises a requested list size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
