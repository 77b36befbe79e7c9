package core

import (
	"net/http"

	"github.com/pkg/errors"
)

// error kinds on the wire
const (
	KindValidation = "validation"
	KindConflict   = "conflict"
	KindNotFound   = "not_found"
	KindAuth       = "auth"
	KindNetwork    = "network"
	KindExternal   = "external"
	KindHTTP       = "http"
	KindInternal   = "internal"
)

// ErrorPayload is the JSON body of a failed API call.
type ErrorPayload struct {
	Error    string       `json:"error"`
	Kind     string       `json:"kind"`
	Field    string       `json:"field,omitempty"`
	Fields   []FieldError `json:"fields,omitempty"`
	Resource string       `json:"resource,omitempty"`
	ID       string       `json:"id,omitempty"`
}

// NewErrorPayload describes a typed error and the HTTP status it maps to.
// Untyped errors are reported as internal server errors without details.
func NewErrorPayload(err error) (ErrorPayload, int) {
	switch e := errors.Cause(err).(type) {
	case *ValidationError:
		msg := e.Error()
		if msg == "" && len(e.Fields) > 0 {
			msg = e.Fields[0].Error
		}
		return ErrorPayload{Error: msg, Kind: KindValidation, Fields: e.Fields}, http.StatusBadRequest
	case *AuthError:
		return ErrorPayload{Error: e.Error(), Kind: KindAuth}, http.StatusUnauthorized
	case *NotFoundError:
		return ErrorPayload{Error: e.Error(), Kind: KindNotFound, Resource: e.Resource, ID: e.ID}, http.StatusNotFound
	case *ConflictError:
		return ErrorPayload{Error: e.Error(), Kind: KindConflict, Field: e.Field}, http.StatusConflict
	case *NetworkError:
		return ErrorPayload{Error: e.Error(), Kind: KindNetwork}, http.StatusBadGateway
	case *ExternalServiceError:
		return ErrorPayload{Error: e.Error(), Kind: KindExternal}, http.StatusBadGateway
	}
	return ErrorPayload{Error: http.StatusText(http.StatusInternalServerError), Kind: KindInternal}, http.StatusInternalServerError
}

// Err rebuilds the typed error described by the payload.
func (p ErrorPayload) Err() error {
	switch p.Kind {
	case KindValidation:
		return NewValidationError(errors.New(p.Error), p.Fields...)
	case KindAuth:
		return NewAuthError(p.Error)
	case KindNotFound:
		return NewNotFoundError(p.Resource, p.ID)
	case KindConflict:
		return NewConflictError(errors.New(p.Error), p.Field)
	case KindNetwork:
		return NewNetworkError(errors.New(p.Error))
	case KindExternal:
		return NewExternalServiceError("remote", errors.New(p.Error))
	}
	return errors.New(p.Error)
}
