package domain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aelexs/notification-dispatch/internal/domain"
)

func TestIsValidEmail(t *testing.T) {
	t.Run("accepts common addresses", func(t *testing.T) {
		for _, addr := range []string{
			"user@example.com",
			"first.last@example.co.uk",
			"user+tag@example.io",
			"u@sub.example.com",
		} {
			assert.True(t, domain.IsValidEmail(addr), "address %q", addr)
		}
	})

	t.Run("rejects malformed addresses", func(t *testing.T) {
		for _, addr := range []string{
			"",
			"plainaddress",
			"@example.com",
			"user@",
			"user@nodot",
			"user @example.com",
			"user@example.com ",
		} {
			assert.False(t, domain.IsValidEmail(addr), "address %q", addr)
		}
	})

	t.Run("rejects oversized addresses", func(t *testing.T) {
		addr := strings.Repeat("a", 250) + "@example.com"
		assert.False(t, domain.IsValidEmail(addr))
	})
}
