package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a problem response returned by the API.
type APIError struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return e.Title
}

// IsAuthError reports a rejected or insufficient credential.
func (e *APIError) IsAuthError() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// IsUnavailable reports a 503, returned by readiness when every session
// slot is taken.
func (e *APIError) IsUnavailable() bool {
	return e.Status == http.StatusServiceUnavailable
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
