package notion

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned by the workspace API.
const (
	CodeObjectNotFound     = "object_not_found"
	CodeValidationError    = "validation_error"
	CodeUnauthorized       = "unauthorized"
	CodeRestrictedResource = "restricted_resource"
	CodeRateLimited        = "rate_limited"
	CodeConflictError      = "conflict_error"
	CodeInternalError      = "internal_server_error"
)

// APIError is the error body the workspace API returns for non 2xx replies.
type APIError struct {
	Object  string `json:"object,omitempty"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion %d %s: %s", e.Status, e.Code, e.Message)
}

// IsClientError reports whether the request itself was at fault. Such
// replies do not count against the circuit breaker.
func (e *APIError) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500 && e.Status != http.StatusTooManyRequests
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusNotFound || apiErr.Code == CodeObjectNotFound
	}
	return false
}

func IsValidation(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == CodeValidationError
	}
	return false
}

func IsRateLimited(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Code == CodeRateLimited
	}
	return false
}

// IsClientError reports whether err is an API reply blaming the request.
func IsClientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsClientError()
}
