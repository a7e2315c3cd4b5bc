package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed backend call.
type ErrorKind int

const (
	ErrorUnknown ErrorKind = iota
	ErrorUnauthorized
	ErrorForbidden
	ErrorValidation
	ErrorNetworkUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorUnauthorized:
		return "unauthorized"
	case ErrorForbidden:
		return "forbidden"
	case ErrorValidation:
		return "validation"
	case ErrorNetworkUnavailable:
		return "network_unavailable"
	default:
		return "unknown"
	}
}

// Sentinel errors used across service boundaries.
var (
	ErrNoCredential = errors.New("no stored credential")
)

// APIError is the uniform failure returned for any backend call.
// Status is zero when no response was received (network failure).
// Fields holds per-field validation messages for validation failures.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *APIError) Unwrap() error { return e.Err }

func kindIs(err error, kind ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// IsUnauthorized reports whether err is a 401-class backend failure.
func IsUnauthorized(err error) bool { return kindIs(err, ErrorUnauthorized) }

// IsForbidden reports whether err is a 403-class backend failure.
func IsForbidden(err error) bool { return kindIs(err, ErrorForbidden) }

// IsValidation reports whether err is a 422-class backend failure.
func IsValidation(err error) bool { return kindIs(err, ErrorValidation) }

// IsNetworkUnavailable reports whether err means no response was received.
func IsNetworkUnavailable(err error) bool { return kindIs(err, ErrorNetworkUnavailable) }

// UserMessage translates a failed login/register call into a human-readable
// message distinguishing bad credentials, inactive accounts, validation
// problems and connectivity problems.
func UserMessage(err error) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return "Something went wrong. Please try again."
	}
	switch apiErr.Kind {
	case ErrorUnauthorized:
		return "The credentials you entered are incorrect."
	case ErrorForbidden:
		return "Your account is inactive. Contact an administrator."
	case ErrorValidation:
		return "Some fields are invalid. Please review the form."
	case ErrorNetworkUnavailable:
		return "Cannot reach the server. Check your connection."
	default:
		return "Something went wrong. Please try again."
	}
}

// ErrorResponse is the standard JSON error envelope the console returns.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}
