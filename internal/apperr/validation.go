package apperr

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
)

// FromValidation turns the result of an ozzo Validate call into a
// validation error carrying per-field messages. nil stays nil.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return Wrap(err, KindValidation, err.Error())
	}
	fields := make(map[string]string, len(fieldErrs))
	for name, fieldErr := range fieldErrs {
		if fieldErr != nil {
			fields[name] = fieldErr.Error()
		}
	}
	return Validation("invalid input", fields)
}
