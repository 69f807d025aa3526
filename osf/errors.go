package osf

import (
	"errors"
	"fmt"
	"strings"
)

// Common OSF errors.
var (
	// ErrNotFound is returned when the API answers 404 or a referenced
	// resource is missing from a document.
	ErrNotFound = errors.New("osf resource not found")

	// ErrUnexpectedType is returned when a resource has the wrong JSON-API type.
	ErrUnexpectedType = errors.New("unexpected resource type")
)

// APIError is a non-success API response.
type APIError struct {
	StatusCode int
	URL        string
	Errors     []ErrorObject
}

// Error implements error.
func (e *APIError) Error() string {
	var details []string
	for _, o := range e.Errors {
		if o.Detail != "" {
			details = append(details, o.Detail)
		} else if o.Title != "" {
			details = append(details, o.Title)
		}
	}
	msg := fmt.Sprintf("osf api: %s: status %d", e.URL, e.StatusCode)
	if len(details) > 0 {
		msg += ": " + strings.Join(details, "; ")
	}
	return msg
}

// Is reports ErrNotFound for 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}
