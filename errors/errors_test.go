package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "error with detail",
			err:      New(ValidationError, "invalid input", "lat is required"),
			expected: "VALIDATION_ERROR: invalid input (lat is required)",
		},
		{
			name:     "error without detail",
			err:      InternalServerError("something broke"),
			expected: "SERVER_ERROR: something broke",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{ValidationFailed("bad request", ""), http.StatusBadRequest},
		{NotFound("location", "55.755:37.617"), http.StatusNotFound},
		{ProviderUnavailable("openweather", errors.New("timeout")), http.StatusBadGateway},
		{DeliveryFailed("ExponentPushToken[abc]", errors.New("boom")), http.StatusBadGateway},
		{InternalServerError("oops"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Type), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.GetHTTPStatus())
		})
	}
}

func TestWrap(t *testing.T) {
	raw := fmt.Errorf("connection refused")
	err := Wrap(raw, StoreError, "failed to read snapshot")

	assert.Equal(t, StoreError, err.Type)
	assert.Equal(t, "connection refused", err.Detail)
	assert.ErrorIs(t, err, raw)

	assert.Nil(t, Wrap(nil, StoreError, "no-op"))
}
