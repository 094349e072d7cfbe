// Package errors defines the error types returned by the Reddit session core.
//
// Every failure surfaced by the client is one of four kinds:
//
//   - ConfigError: the client was asked to do something its configuration cannot support
//   - AuthError: Reddit rejected a grant exchange
//   - APIError: Reddit answered, but marked the response as a failure
//   - TransportError: no usable response was obtained
//
// Use errors.As to branch on the kind.
package errors

import (
	"fmt"
	"strings"
)

// Provider is the name used when formatting API errors.
const Provider = "Reddit"

// ConfigError indicates a problem with the client configuration.
type ConfigError struct {
	// Field contains the name of the configuration field that caused the error
	Field string
	// Message contains the detailed error message
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// AuthError indicates that a grant exchange was rejected.
type AuthError struct {
	// Grant is the OAuth grant type that was attempted (e.g. "password")
	Grant string
	// StatusCode is the HTTP status code (if from an HTTP response)
	StatusCode int
	// Message contains the detailed error message, usually Reddit's error code
	Message string
	// Body contains the raw response body (if available)
	Body string
	// Err contains the underlying error if available
	Err error
}

func (e *AuthError) Error() string {
	var parts []string

	if e.Grant != "" {
		parts = append(parts, "grant "+e.Grant)
	}

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status code %d", e.StatusCode))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Body != "" {
		parts = append(parts, fmt.Sprintf("body: %q", e.Body))
	}

	if e.Err != nil {
		parts = append(parts, fmt.Sprintf("err: %v", e.Err))
	}

	if len(parts) == 0 {
		return "auth error"
	}
	return "auth error: " + strings.Join(parts, ", ")
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// APIError represents a response that Reddit delivered but marked as a failure,
// either through the errors list of a result wrapper or a top-level error field.
type APIError struct {
	// StatusCode is the HTTP status code, zero when the failure came from a 2xx body
	StatusCode int
	// Message is the primary error text (first wrapper error, or the error field)
	Message string
	// Description is the optional accompanying description
	Description string
	// Details holds the raw error entry as returned by Reddit
	Details any
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s returned an error: %s", Provider, e.Message)
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}

// TransportError indicates the request failed before a usable response was
// obtained: network failures, cancelled contexts, and undecodable bodies.
type TransportError struct {
	// Operation describes what the client was trying to do
	Operation string
	// URL is the URL that was being accessed
	URL string
	// Err contains the underlying error
	Err error
}

func (e *TransportError) Error() string {
	msg := "unknown failure"
	if e.Err != nil {
		msg = e.Err.Error()
	}

	if e.Operation != "" && e.URL != "" {
		return fmt.Sprintf("transport error during %s to %s: %s", e.Operation, e.URL, msg)
	} else if e.Operation != "" {
		return fmt.Sprintf("transport error during %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("transport error: %s", msg)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
