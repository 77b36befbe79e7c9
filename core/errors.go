package core

import (
	"context"
	"net"
	"net/url"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError is returned when input is rejected before reaching the persistence layer.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// ConflictError is returned when the authoritative store rejects a write
// because of a uniqueness or state constraint.
type ConflictError struct {
	Err   error
	Field string
}

func NewConflictError(err error, field ...string) error {
	ce := &ConflictError{Err: err}
	if len(field) > 0 {
		ce.Field = field[0]
	}
	return ce
}

func (err ConflictError) Error() string {
	if err.Err == nil {
		return "conflict"
	}
	return err.Err.Error()
}

// NotFoundError is returned when an entity does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func (err NotFoundError) Error() string {
	if err.ID == "" {
		return err.Resource + " not found"
	}
	return err.Resource + " not found: " + err.ID
}

// AuthError is returned for bad credentials, wrong PINs and missing permissions.
type AuthError struct {
	Message string
}

func NewAuthError(msg string) error {
	return &AuthError{Message: msg}
}

func (err AuthError) Error() string {
	return err.Message
}

// NetworkError wraps transport failures while talking to a remote collaborator.
type NetworkError struct {
	Err error
}

func NewNetworkError(err error) error {
	return &NetworkError{Err: err}
}

func (err NetworkError) Error() string {
	if err.Err == nil {
		return "network unavailable"
	}
	return "network: " + err.Err.Error()
}

// ExternalServiceError wraps failures of optional collaborators (renderers, summarizers, messaging).
type ExternalServiceError struct {
	Service string
	Err     error
}

func NewExternalServiceError(service string, err error) error {
	return &ExternalServiceError{Service: service, Err: err}
}

func (err ExternalServiceError) Error() string {
	if err.Err == nil {
		return err.Service + " failed"
	}
	return err.Service + ": " + err.Err.Error()
}

func IsValidation(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsAuth(err error) bool {
	_, ok := errors.Cause(err).(*AuthError)
	return ok
}

func IsNetwork(err error) bool {
	_, ok := errors.Cause(err).(*NetworkError)
	return ok
}

func IsExternalService(err error) bool {
	_, ok := errors.Cause(err).(*ExternalServiceError)
	return ok
}

// IsTyped reports whether err is one of the error kinds above.
func IsTyped(err error) bool {
	switch errors.Cause(err).(type) {
	case *ValidationError, *ConflictError, *NotFoundError, *AuthError, *NetworkError, *ExternalServiceError:
		return true
	}
	return false
}

// ClassifyTransportError turns connection level failures into a NetworkError.
// Typed errors and unrecognised errors are returned unchanged.
func ClassifyTransportError(err error) error {
	if err == nil || IsTyped(err) {
		return err
	}
	cause := errors.Cause(err)
	if cause == context.DeadlineExceeded || cause == context.Canceled {
		return NewNetworkError(err)
	}
	var netErr net.Error
	if errors.As(cause, &netErr) {
		return NewNetworkError(err)
	}
	var urlErr *url.Error
	if errors.As(cause, &urlErr) {
		return NewNetworkError(err)
	}
	return err
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
