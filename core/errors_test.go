package core

import (
	"context"
	"net"
	"net/url"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsKind(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{name: "validation", err: NewValidationError(errInvalidInput), check: IsValidation},
		{name: "conflict", err: NewConflictError(errors.New("taken"), "email"), check: IsConflict},
		{name: "not found", err: NewNotFoundError("student", "st1"), check: IsNotFound},
		{name: "auth", err: NewAuthError("incorrect PIN"), check: IsAuth},
		{name: "network", err: NewNetworkError(nil), check: IsNetwork},
		{name: "external", err: NewExternalServiceError("pdf", nil), check: IsExternalService},
		{name: "shutdown", err: NewShutdownError("bye"), check: IsShutdown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.True(t, tt.check(errors.Wrap(tt.err, "context")), "wrapped")
			assert.False(t, tt.check(errors.New("plain")))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "student not found: st1", NewNotFoundError("student", "st1").Error())
	assert.Equal(t, "school not found", NewNotFoundError("school", "").Error())
	assert.Equal(t, "network unavailable", NewNetworkError(nil).Error())
	assert.Equal(t, "network: timeout", NewNetworkError(errors.New("timeout")).Error())
	assert.Equal(t, "conflict", NewConflictError(nil).Error())
	assert.Equal(t, "pdf failed", NewExternalServiceError("pdf", nil).Error())
}

func TestClassifyTransportError(t *testing.T) {
	typed := NewAuthError("nope")
	plain := errors.New("boom")

	tests := []struct {
		name        string
		err         error
		wantNetwork bool
	}{
		{name: "deadline", err: errors.Wrap(context.DeadlineExceeded, "GET /schools"), wantNetwork: true},
		{name: "canceled", err: context.Canceled, wantNetwork: true},
		{name: "dial", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, wantNetwork: true},
		{name: "url", err: &url.Error{Op: "Get", URL: "http://api", Err: errors.New("EOF")}, wantNetwork: true},
		{name: "typed", err: typed},
		{name: "plain", err: plain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyTransportError(tt.err)
			assert.Equal(t, tt.wantNetwork, IsNetwork(got))
			if !tt.wantNetwork {
				assert.Equal(t, tt.err, got)
			}
		})
	}
	assert.Nil(t, ClassifyTransportError(nil))
}

func TestValidators(t *testing.T) {
	assert.True(t, IsValidPIN("0123"))
	assert.False(t, IsValidPIN("123"))
	assert.False(t, IsValidPIN("12a4"))
	assert.False(t, IsValidPIN("١٢٣٤"), "ascii digits only")

	assert.True(t, IsValidDate("2024-02-29"))
	assert.False(t, IsValidDate("2023-02-29"))
	assert.False(t, IsValidDate("2024-3-1"))
}
