// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/assetdesk/assetdesk/internal/shared"
)

// Machine-readable error codes returned to the client application.
const (
	CodeAuthInvalid      = "AUTH_INVALID"
	CodeLicenseExpired   = "LICENSE_EXPIRED"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeInternal         = "INTERNAL_ERROR"
)

// RespondError maps domain errors to HTTP responses. Internal errors never
// leak their detail to the client.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrAuthInvalid):
		Error(w, http.StatusUnauthorized, CodeAuthInvalid, "authentication required")
	case errors.Is(err, shared.ErrPermissionDenied):
		Error(w, http.StatusForbidden, CodePermissionDenied, "permission denied")
	case errors.Is(err, shared.ErrLicenseExpired):
		Error(w, http.StatusForbidden, CodeLicenseExpired, "license expired or missing")
	case errors.Is(err, shared.ErrValidation):
		Error(w, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Error(w, http.StatusNotFound, CodeNotFound, "resource not found")
	default:
		Error(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

// LicenseExpired writes the distinguished license response carrying the
// support contact.
func LicenseExpired(w http.ResponseWriter, support string) {
	JSON(w, http.StatusForbidden, ErrorBody{
		Code:    CodeLicenseExpired,
		Message: "license expired or missing",
		Support: support,
	})
}
