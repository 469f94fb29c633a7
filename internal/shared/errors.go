package shared

import "errors"

// Error kinds shared by every core component. Handlers map them to HTTP
// responses through httpx.RespondError.
var (
	// ErrAuthInvalid indicates a missing, malformed or expired credential.
	ErrAuthInvalid = errors.New("authentication invalid")
	// ErrLicenseExpired indicates the installation has no usable license.
	ErrLicenseExpired = errors.New("license expired")
	// ErrPermissionDenied indicates a failed capability check.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
)
