// Package apierror provides the standardized error envelope for the reporting
// API. All errors returned to clients go through this package so that
// internal details (paths, stack traces) never leak.
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}
