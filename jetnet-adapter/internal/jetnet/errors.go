package jetnet

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

const (
	credentialsMissingMessage     = "No credentials provided"
	credentialsMissingDescription = "Please add JetNet API credentials"
)

// CredentialsMissingError is returned before any HTTP call when no usable
// credentials exist for the requested account.
type CredentialsMissingError struct {
	Account string
	cause   error
}

func (e *CredentialsMissingError) Error() string {
	return credentialsMissingMessage + ": " + credentialsMissingDescription
}

// Description is the operator-facing hint.
func (e *CredentialsMissingError) Description() string { return credentialsMissingDescription }

func (e *CredentialsMissingError) Unwrap() error { return e.cause }

// APIError is any failed data call other than an authentication failure.
// Message and Description are sanitized; the raw cause is kept for errors.Is
// but never rendered.
type APIError struct {
	StatusCode  int
	Message     string
	Description string
	timeout     bool
	cause       error
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return e.Message
	}
	return e.Message + ": " + e.Description
}

// Timeout reports whether the call hit the per-request deadline.
func (e *APIError) Timeout() bool { return e.timeout }

func (e *APIError) Unwrap() error { return e.cause }

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func statusMessage(code int) string {
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("JetNet API returned %d %s", code, text)
	}
	return fmt.Sprintf("JetNet API returned %d", code)
}
