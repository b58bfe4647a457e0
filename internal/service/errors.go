package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrFeedSoldLocked is returned when an edit tries to move a unit that
// the sales feed lists as sold away from sold.
var ErrFeedSoldLocked = errors.New("unit is sold according to the sales feed")

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError reports malformed input.  Handlers render it as 400
// with the field details.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalidField(field, code, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Code: code, Message: message}}}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *InventoryService) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return &ValidationError{Fields: formatValidationErrors(verrs)}
	}
	return err
}

// formatValidationErrors converts validator errors into user-facing
// messages.
func formatValidationErrors(errs validator.ValidationErrors) []FieldError {
	details := make([]FieldError, 0, len(errs))
	for _, err := range errs {
		var message string
		switch err.Tag() {
		case "required":
			message = "is required"
		case "min", "gte":
			message = fmt.Sprintf("must be at least %s", err.Param())
		case "max", "lte":
			message = fmt.Sprintf("must not exceed %s", err.Param())
		case "gt":
			message = fmt.Sprintf("must be greater than %s", err.Param())
		case "oneof":
			message = fmt.Sprintf("must be one of [%s]", err.Param())
		default:
			message = fmt.Sprintf("failed on the '%s' rule", err.Tag())
		}
		details = append(details, FieldError{
			Field:   err.Field(),
			Code:    "validation_" + err.Tag(),
			Message: message,
		})
	}
	return details
}
