package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aelexs/notification-dispatch/internal/domain"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ErrTransportTransient", domain.ErrTransportTransient, true},
		{"ErrQueueUnavailable", domain.ErrQueueUnavailable, true},
		{"ErrTransportTerminal", domain.ErrTransportTerminal, false},
		{"ErrCircuitOpen", domain.ErrCircuitOpen, false},
		{"ErrInvalidRecipient", domain.ErrInvalidRecipient, false},
		{"wrapped transient", fmt.Errorf("gateway: %w", domain.ErrTransportTransient), true},
		{"unrelated error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.IsTransient(tt.err))
		})
	}
}

func TestIsValidation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ErrInvalidInput", domain.ErrInvalidInput, true},
		{"ErrInvalidRecipient", domain.ErrInvalidRecipient, true},
		{"ErrInvalidEmail", domain.ErrInvalidEmail, true},
		{"ErrInvalidPhone", domain.ErrInvalidPhone, true},
		{"ErrEmptyMessage", domain.ErrEmptyMessage, true},
		{"ErrMessageTooLong", domain.ErrMessageTooLong, true},
		{"ErrMalformedEvent", domain.ErrMalformedEvent, true},
		{"ErrTransportTransient", domain.ErrTransportTransient, false},
		{"ErrTransportTerminal", domain.ErrTransportTerminal, false},
		{"ErrCircuitOpen", domain.ErrCircuitOpen, false},
		{"wrapped validation", fmt.Errorf("sms %q: %w", "x", domain.ErrInvalidPhone), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.IsValidation(tt.err))
		})
	}
}

func TestIsCircuitOpen(t *testing.T) {
	assert.True(t, domain.IsCircuitOpen(domain.ErrCircuitOpen))
	assert.True(t, domain.IsCircuitOpen(fmt.Errorf("sms: %w", domain.ErrCircuitOpen)))
	assert.False(t, domain.IsCircuitOpen(domain.ErrTransportTerminal))
	assert.False(t, domain.IsCircuitOpen(nil))
}

func TestErrorWrapping(t *testing.T) {
	t.Run("wrapped errors match with errors.Is", func(t *testing.T) {
		wrapped := fmt.Errorf("smtp dial: %w", domain.ErrTransportTransient)
		assert.ErrorIs(t, wrapped, domain.ErrTransportTransient)
	})

	t.Run("sentinels are distinct", func(t *testing.T) {
		assert.NotErrorIs(t, domain.ErrTransportTransient, domain.ErrTransportTerminal)
		assert.NotErrorIs(t, domain.ErrInvalidPhone, domain.ErrInvalidEmail)
	})
}

func TestIsValidChannel(t *testing.T) {
	assert.True(t, domain.IsValidChannel(domain.ChannelSMS))
	assert.True(t, domain.IsValidChannel(domain.ChannelEmail))
	assert.False(t, domain.IsValidChannel(domain.Channel("push")))
	assert.False(t, domain.IsValidChannel(domain.Channel("")))
}
