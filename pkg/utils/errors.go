package utils

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration     = errors.New("configuration error")
	ErrValidation        = errors.New("validation failed")
	ErrBackend           = errors.New("backend error")
	ErrSchema            = errors.New("invalid schema")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
)

const (
	CodeConfiguration     = "CONFIGURATION_ERROR"
	CodeValidation        = "VALIDATION_ERROR"
	CodeBackend           = "BACKEND_ERROR"
	CodeSchema            = "SCHEMA_ERROR"
	CodeInvalidIdentifier = "INVALID_IDENTIFIER"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidInput      = "INVALID_INPUT"
)

var sentinels = map[string]error{
	CodeConfiguration:     ErrConfiguration,
	CodeValidation:        ErrValidation,
	CodeBackend:           ErrBackend,
	CodeSchema:            ErrSchema,
	CodeInvalidIdentifier: ErrInvalidIdentifier,
	CodeNotFound:          ErrNotFound,
	CodeInvalidInput:      ErrInvalidInput,
}

type AppError struct {
	Code    string
	Message string
	Err     error
	Details map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for the error's code.
func (e *AppError) Is(target error) bool {
	sentinel, ok := sentinels[e.Code]
	return ok && sentinel == target
}

func NewAppError(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func NewConfigurationError(message string) *AppError {
	return NewAppError(CodeConfiguration, message, nil)
}

func NewValidationError(message string, err error) *AppError {
	return NewAppError(CodeValidation, message, err)
}

func NewBackendError(message string, err error) *AppError {
	return NewAppError(CodeBackend, message, err)
}

// NewSchemaError names the structural requirement the schema failed.
func NewSchemaError(requirement, message string) *AppError {
	return NewAppError(CodeSchema, message, nil).WithDetail("requirement", requirement)
}

func NewInvalidIdentifierError(value string) *AppError {
	return NewAppError(CodeInvalidIdentifier, fmt.Sprintf("%q is not a 24 character hex identifier", value), nil).
		WithDetail("value", value)
}

func hasCode(err error, code string) bool {
	var appErr *AppError
	return err != nil && errors.As(err, &appErr) && appErr.Code == code
}

func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration) || hasCode(err, CodeConfiguration)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || hasCode(err, CodeValidation)
}

func IsBackend(err error) bool {
	return errors.Is(err, ErrBackend) || hasCode(err, CodeBackend)
}

func IsSchema(err error) bool {
	return errors.Is(err, ErrSchema) || hasCode(err, CodeSchema)
}

func IsInvalidIdentifier(err error) bool {
	return errors.Is(err, ErrInvalidIdentifier) || hasCode(err, CodeInvalidIdentifier)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || hasCode(err, CodeNotFound)
}

func WrapError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
