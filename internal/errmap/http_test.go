package errmap_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aelexs/notification-dispatch/internal/domain"
	"github.com/aelexs/notification-dispatch/internal/errmap"
)

func TestToHTTPError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"nil error", nil, http.StatusOK, ""},
		{"invalid recipient", domain.ErrInvalidRecipient, http.StatusBadRequest, "INVALID_RECIPIENT"},
		{"invalid phone", domain.ErrInvalidPhone, http.StatusBadRequest, "INVALID_PHONE"},
		{"invalid email", domain.ErrInvalidEmail, http.StatusBadRequest, "INVALID_EMAIL"},
		{"empty message", domain.ErrEmptyMessage, http.StatusBadRequest, "EMPTY_MESSAGE"},
		{"message too long", domain.ErrMessageTooLong, http.StatusBadRequest, "MESSAGE_TOO_LONG"},
		{"circuit open", domain.ErrCircuitOpen, http.StatusServiceUnavailable, "CIRCUIT_OPEN"},
		{"queue unavailable", domain.ErrQueueUnavailable, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE"},
		{"transient transport", domain.ErrTransportTransient, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"},
		{"terminal transport", domain.ErrTransportTerminal, http.StatusBadGateway, "UPSTREAM_REJECTED"},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errmap.ToHTTPError(tt.err)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
			assert.Equal(t, tt.wantCode, got.Code)
		})
	}
}

func TestToHTTPErrorWrapped(t *testing.T) {
	wrapped := fmt.Errorf("dispatch sms: %w", domain.ErrCircuitOpen)

	got := errmap.ToHTTPError(wrapped)

	assert.Equal(t, http.StatusServiceUnavailable, got.StatusCode)
	assert.Equal(t, "CIRCUIT_OPEN", got.Code)
	assert.Contains(t, got.Message, "circuit breaker")
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	got := errmap.ToHTTPError(errors.New("redis: connection pool exhausted"))

	assert.Equal(t, "internal error", got.Message, "internal details must not leak to clients")
}

func TestToHTTPStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, errmap.ToHTTPStatusCode(domain.ErrInvalidPhone))
	assert.Equal(t, http.StatusOK, errmap.ToHTTPStatusCode(nil))
}
