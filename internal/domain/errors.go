package domain

import "errors"

// Sentinel errors for domain error conditions.
// Use errors.Is() for matching - never compare error strings.
var (
	// Validation errors — attributable to the caller's input, terminal,
	// and never counted against a channel's circuit breaker.
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrInvalidPhone     = errors.New("invalid phone number format")
	ErrEmptyMessage     = errors.New("message body cannot be empty")
	ErrMessageTooLong   = errors.New("message exceeds maximum length")

	// Transport errors — adapters wrap every transport failure with exactly
	// one of these so retry decisions are driven by data, not error type
	// inspection at the call site.
	ErrTransportTransient = errors.New("transient transport failure")
	ErrTransportTerminal  = errors.New("terminal transport failure")

	// Dispatch errors
	ErrCircuitOpen = errors.New("channel circuit breaker is open")

	// Queue errors
	ErrQueueUnavailable = errors.New("message queue unavailable")
	ErrMalformedEvent   = errors.New("malformed queue event")

	// Configuration errors
	ErrConfigRequired = errors.New("required configuration key missing")
)

// IsTransient returns true if the error represents a transient condition
// that may succeed on retry (network timeout, connection reset, malformed
// transient protocol response).
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransportTransient) ||
		errors.Is(err, ErrQueueUnavailable)
}

// validationErrors enumerates all domain errors that represent bad caller
// input. Validation failures short-circuit a dispatch before any transport
// call and must not increment circuit breaker failure counts.
var validationErrors = []error{
	ErrInvalidInput,
	ErrInvalidRecipient,
	ErrInvalidEmail,
	ErrInvalidPhone,
	ErrEmptyMessage,
	ErrMessageTooLong,
	ErrMalformedEvent,
}

// IsValidation returns true if the error represents a caller-input issue
// that will not succeed on retry without the caller changing the request.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsCircuitOpen returns true if the error represents a fast-fail rejection
// by an open circuit breaker (no transport attempt was made).
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}
