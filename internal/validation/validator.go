// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

// Package validation wraps go-playground/validator v10 for the API's
// request structs: one shared validator instance plus translation of
// field failures into the VALIDATION_ERROR response shape.
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    // respond 400 with apiErr.Code / Message / Details
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var getValidate = sync.OnceValue(func() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
})

// GetValidator returns the shared validator. It caches struct metadata,
// so all callers use the one instance.
func GetValidator() *validator.Validate {
	return getValidate()
}

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string
	Tag     string
	Param   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string { return e.Message }

// RequestValidationError is the full set of failures for one request.
type RequestValidationError struct {
	fields []ValidationError
}

// Errors lists the individual field failures.
func (ve *RequestValidationError) Errors() []ValidationError { return ve.fields }

func (ve *RequestValidationError) Error() string {
	if len(ve.fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(ve.fields))
	for i, fe := range ve.fields {
		parts[i] = fe.Message
	}
	return strings.Join(parts, "; ")
}

// APIError carries the response error shape. It mirrors models.APIError
// rather than importing it, keeping this package free of model deps.
type APIError struct {
	Code    string
	Message string
	Details map[string]interface{}
}

// ToAPIError renders the failures for the HTTP response: a single
// failure keeps its field/tag/value as details, several failures list
// per-field entries under "fields".
func (ve *RequestValidationError) ToAPIError() *APIError {
	out := &APIError{Code: "VALIDATION_ERROR", Message: "Validation failed"}
	switch len(ve.fields) {
	case 0:
	case 1:
		fe := ve.fields[0]
		out.Message = fe.Message
		out.Details = map[string]interface{}{
			"field": fe.Field,
			"tag":   fe.Tag,
			"value": fe.Value,
		}
	default:
		entries := make([]map[string]interface{}, len(ve.fields))
		parts := make([]string, len(ve.fields))
		for i, fe := range ve.fields {
			entries[i] = map[string]interface{}{
				"field":   fe.Field,
				"tag":     fe.Tag,
				"message": fe.Message,
			}
			parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
		}
		out.Message = strings.Join(parts, "; ")
		out.Details = map[string]interface{}{"fields": entries}
	}
	return out
}

// ValidateStruct runs the shared validator over s. A nil return means s
// passed.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// validator only returns InvalidValidationError here (non-struct
		// input), which is a programming error on the caller's side.
		return &RequestValidationError{fields: []ValidationError{
			{Field: "unknown", Tag: "unknown", Message: err.Error()},
		}}
	}

	fields := make([]ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, ValidationError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: describe(fe),
		})
	}
	return &RequestValidationError{fields: fields}
}

// describe turns a field error into the message the API returns.
func describe(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_without":
		return fmt.Sprintf("%s is required when %s is absent", field, param)
	case "datetime":
		return field + " must be a valid date/time in RFC3339 format"
	case "url":
		return field + " must be a valid URL"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "gte", "gtefield":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "gt", "gtfield":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, param)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
