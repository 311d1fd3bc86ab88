package usecase

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"storefront-backend/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateInput checks v against its validate tags and reports the first
// failure as a domain.ErrValidation.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.ErrValidation("invalid input")
	}
	fe := fieldErrs[0]
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return domain.ErrValidation(field + " required")
	case "email":
		return domain.ErrValidation(field + " must be a valid email")
	case "oneof":
		return domain.ErrValidation(field + " must be one of: " + fe.Param())
	case "min", "gte", "gt":
		return domain.ErrValidation(field + " must be at least " + fe.Param())
	case "max", "lte":
		return domain.ErrValidation(field + " must be at most " + fe.Param())
	}
	return domain.ErrValidation(field + " is invalid")
}
