package httpx

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/assetdesk/assetdesk/internal/shared"
)

// Validate runs struct validation and folds field failures into a single
// ErrValidation so handlers can pass the result straight to RespondError.
func Validate(v *validator.Validate, target any) error {
	err := v.Struct(target)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
	}
	sort.Strings(fields)
	return fmt.Errorf("%w: invalid %s", shared.ErrValidation, strings.Join(fields, ", "))
}
