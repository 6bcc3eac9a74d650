// Package validate checks request structs with go-playground/validator tags.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/and161185/goph-share/internal/errs"
)

var v = validator.New(validator.WithRequiredStructEnabled())

// Struct validates s and reports failures as a MISSING_INPUT error.
func Struct(s any) error {
	if err := v.Struct(s); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, fe := range ve {
				msgs = append(msgs, fieldError(fe))
			}
			return errs.Invalid(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// Each validates every element of list, prefixing messages with the element index.
func Each[T any](list []T) error {
	var msgs []string
	for i := range list {
		if err := Struct(&list[i]); err != nil {
			var e *errs.Error
			if !errors.As(err, &e) {
				return err
			}
			msgs = append(msgs, fmt.Sprintf("[%d] %s", i, e.Message))
		}
	}
	if len(msgs) > 0 {
		return errs.Invalid(strings.Join(msgs, "; "))
	}
	return nil
}

// fieldError converts a single ValidationError into a human-readable message.
func fieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
