package client

import (
	"errors"
	"fmt"
)

// CodeNameConflict is the error code the server uses for duplicate resource names
const CodeNameConflict = "NAME_CONFLICT"

// APIError represents an error returned by the API
type APIError struct {
	StatusCode int                    `json:"-"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error [%s]: %s (status: %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("API error: %s (status: %d)", e.Message, e.StatusCode)
}

// IsNotFound returns true if the error is a 404 not found error
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsUnauthorized returns true if the error is a 401 unauthorized error
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

// IsForbidden returns true if the error is a 403 forbidden error
func (e *APIError) IsForbidden() bool {
	return e.StatusCode == 403
}

// IsConflict returns true if the error is a 409 conflict error
func (e *APIError) IsConflict() bool {
	return e.StatusCode == 409
}

// IsNameCollision returns true if the server rejected a resource name as taken
func (e *APIError) IsNameCollision() bool {
	return e.IsConflict() || e.Code == CodeNameConflict
}

// IsValidationError returns true if the error is a 400 validation error
func (e *APIError) IsValidationError() bool {
	return e.StatusCode == 400
}

// IsServerError returns true if the error is a 5xx server error
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// AsAPIError extracts an APIError from err's chain
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
