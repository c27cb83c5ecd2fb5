// Package validator runs struct-tag validation outside the HTTP binding
// layer, so service methods reached by internal callers (the sweep binary,
// background jobs) enforce the same rules as gin's binding does for requests.
package validator

import (
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks v's `validate` tags and returns a field→tag map of
// failures, or nil when v is valid.
func Validate(v interface{}) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		errors[err.Field()] = err.Tag()
	}
	return errors
}
