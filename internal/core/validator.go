package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"graphbridge/internal/types"
)

// Validator wraps go-playground/validator so that validation failures come
// back as AppErrors naming the offending field by its JSON name.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator that reports fields by their json tag.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// ValidateStruct validates s against its struct tags. The first failure is
// converted to a client-facing AppError; a missing required field yields a
// message naming that field, which is the contract the trigger mechanism
// relies on to correct its payload.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return types.NewAppError(
				types.ErrCodeValidationMissingField,
				fmt.Sprintf("missing required field: %s", fe.Field()),
				nil,
			)
		}
		return types.NewAppError(
			types.ErrCodeValidationInvalidField,
			fmt.Sprintf("invalid value for field: %s", fe.Field()),
			nil,
		)
	}

	return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
}
