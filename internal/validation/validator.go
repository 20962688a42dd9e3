// Livesync - Storefront Live Resource Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/livesync

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/livesync/internal/models"
)

// singleton validator instance
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

var (
	// resourceIDPattern matches registry keys such as "orders" or "chatroom:room-1".
	resourceIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,127}$`)
	// localIDPattern matches optimistic message ids.
	localIDPattern = regexp.MustCompile(`^temp_[0-9]+$`)
)

// ValidationError represents a single field validation error with structured information.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the struct field name that failed validation.
func (e *ValidationError) Field() string {
	return e.field
}

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string {
	return e.tag
}

// Param returns the parameter for the validation tag (e.g., "100" for "max=100").
func (e *ValidationError) Param() string {
	return e.param
}

// Value returns the actual value that failed validation.
func (e *ValidationError) Value() interface{} {
	return e.value
}

// Error returns a human-readable error message.
func (e *ValidationError) Error() string {
	return e.message
}

// RequestValidationError represents a collection of validation errors.
// It provides methods to convert errors to the application's APIError format.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the slice of validation errors.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

// Error implements the error interface, returning a combined error message.
func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}

	var messages []string
	for _, err := range ve.errors {
		messages = append(messages, err.Error())
	}

	return strings.Join(messages, "; ")
}

// ErrorCode is the API error code of every validation failure.
const ErrorCode = "VALIDATION_ERROR"

// ToAPIError converts the failures to the API error shape. One failure
// keeps its message; several are joined and listed under details.fields.
func (ve *RequestValidationError) ToAPIError() *models.APIError {
	switch len(ve.errors) {
	case 0:
		return &models.APIError{Code: ErrorCode, Message: "Validation failed"}
	case 1:
		e := ve.errors[0]
		return &models.APIError{
			Code:    ErrorCode,
			Message: e.message,
			Details: map[string]interface{}{"field": e.field, "tag": e.tag, "value": e.value},
		}
	}

	fields := make([]map[string]interface{}, 0, len(ve.errors))
	messages := make([]string, 0, len(ve.errors))
	for _, e := range ve.errors {
		fields = append(fields, map[string]interface{}{"field": e.field, "tag": e.tag, "message": e.message})
		messages = append(messages, e.field+": "+e.message)
	}
	return &models.APIError{
		Code:    ErrorCode,
		Message: strings.Join(messages, "; "),
		Details: map[string]interface{}{"fields": fields},
	}
}

// GetValidator returns the shared validator with the resourceid, localid and
// notblank tags registered.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Registration only fails for an empty tag or nil func.
		_ = validate.RegisterValidation("resourceid", func(fl validator.FieldLevel) bool {
			return resourceIDPattern.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("localid", func(fl validator.FieldLevel) bool {
			return localIDPattern.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})

	return validate
}

// ValidateStruct validates s with the shared validator. It returns nil when
// every field passes.
func ValidateStruct(s interface{}) *RequestValidationError {
	v := GetValidator()

	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		// InvalidValidationError: s was not a struct.
		return &RequestValidationError{errors: []ValidationError{{field: "unknown", tag: "unknown", message: err.Error()}}}
	}

	fieldErrors := make([]ValidationError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = ValidationError{
			field:   fieldErr.Field(),
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			value:   fieldErr.Value(),
			message: translateError(fieldErr),
		}
	}

	return &RequestValidationError{errors: fieldErrors}
}

// tagMessages renders a failed tag; param is the tag argument and str
// reports whether the field is a string.
var tagMessages = map[string]func(field, param string, str bool) string{
	"required":   func(f, _ string, _ bool) string { return f + " is required" },
	"notblank":   func(f, _ string, _ bool) string { return f + " must not be blank" },
	"resourceid": func(f, _ string, _ bool) string { return f + " must be a valid resource id" },
	"localid":    func(f, _ string, _ bool) string { return f + " must be a local message id (temp_<ms>)" },
	"oneof":      func(f, p string, _ bool) string { return f + " must be one of: " + p },
	"min": func(f, p string, str bool) string {
		if str {
			return fmt.Sprintf("%s must be at least %s characters", f, p)
		}
		return fmt.Sprintf("%s must be at least %s", f, p)
	},
	"max": func(f, p string, str bool) string {
		if str {
			return fmt.Sprintf("%s must be at most %s characters", f, p)
		}
		return fmt.Sprintf("%s must be at most %s", f, p)
	},
}

func translateError(fe validator.FieldError) string {
	if render, ok := tagMessages[fe.Tag()]; ok {
		return render(fe.Field(), fe.Param(), fe.Kind() == reflect.String)
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
