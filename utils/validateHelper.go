package utils

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
	})
	return validate
}

// ValidateStruct checks `validate` tags and reports the first failure as a
// ValidationError named after the json field.
func ValidateStruct(input any) error {
	err := getValidator().Struct(input)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		switch fe.Tag() {
		case "required":
			return NewValidationError(fe.Field(), "is required")
		case "gt":
			return NewValidationError(fe.Field(), "must be greater than %s", fe.Param())
		case "gte", "min":
			return NewValidationError(fe.Field(), "must be at least %s", fe.Param())
		case "oneof":
			return NewValidationError(fe.Field(), "must be one of %s", fe.Param())
		default:
			return NewValidationError(fe.Field(), "failed %s validation", fe.Tag())
		}
	}
	return NewValidationError("", "%s", err.Error())
}
