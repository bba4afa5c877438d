package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/studentdesk/internal/repository"
)

// RequestValidator plugs go-playground/validator into echo.Validator.
// Failures are reported as repository.ErrValidation naming the first
// offending JSON field.
type RequestValidator struct {
	v *validator.Validate
}

func NewValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{v: v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		if fe.Tag() == "required" {
			return fmt.Errorf("%w: %s is required", repository.ErrValidation, fe.Field())
		}
		return fmt.Errorf("%w: %s is invalid", repository.ErrValidation, fe.Field())
	}
	return fmt.Errorf("%w: %v", repository.ErrValidation, err)
}
