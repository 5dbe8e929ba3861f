package utils

import (
	"errors"
	"fmt"
	"sort"
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
		validate = validator.New()
	})
	return validate
}

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

// ValidateStruct runs `validate` tags on input and returns a ValidationError
// naming the failing fields.
func ValidateStruct(input any) error {
	err := getValidator().Struct(input)
	if err == nil {
		return nil
	}
	fields := ProcessValidationErrors(err)
	if len(fields) == 0 {
		return ValidationError("Solicitud inválida", err)
	}
	names := make([]string, 0, len(fields))
	for f, tag := range fields {
		names = append(names, fmt.Sprintf("%s (%s)", f, tag))
	}
	sort.Strings(names)
	return ValidationError("Campos inválidos: "+strings.Join(names, ", "), err)
}
