package middleware

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/techtwins/user-api/internal/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report errors against the JSON field name, not the Go struct field.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateRequest runs struct validation and returns one FieldError per
// failing field, or nil when the request is valid. Pointer fields tagged
// omitempty are skipped when absent, which gives partial-update semantics.
func ValidateRequest(obj any) []apperr.FieldError {
	err := validate.Struct(obj)
	if err == nil {
		return nil
	}

	var fieldErrors []apperr.FieldError
	for _, err := range err.(validator.ValidationErrors) {
		fieldErrors = append(fieldErrors, apperr.FieldError{
			Field:   err.Field(),
			Message: getErrorMsg(err),
			Type:    err.Tag(),
		})
	}
	return fieldErrors
}

func getErrorMsg(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gt":
		return "Value must be greater than " + err.Param()
	case "lt":
		return "Value must be less than " + err.Param()
	default:
		return "Invalid value"
	}
}
