// Package errmap translates domain errors into transport-level error
// representations for the HTTP port.
package errmap

import (
	"errors"
	"net/http"

	"github.com/aelexs/notification-dispatch/internal/domain"
)

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e HTTPError) Error() string {
	return e.Message
}

// httpMapping defines a domain error to HTTP status/code mapping.
type httpMapping struct {
	err        error
	statusCode int
	code       string
}

// httpMappings maps domain errors to HTTP status codes and error codes.
// Order matters: first match wins (via errors.Is).
var httpMappings = []httpMapping{
	// Validation errors — 400 (caller's bad input, not an infrastructure fault)
	{domain.ErrInvalidInput, http.StatusBadRequest, "INVALID_ARGUMENT"},
	{domain.ErrInvalidRecipient, http.StatusBadRequest, "INVALID_RECIPIENT"},
	{domain.ErrInvalidEmail, http.StatusBadRequest, "INVALID_EMAIL"},
	{domain.ErrInvalidPhone, http.StatusBadRequest, "INVALID_PHONE"},
	{domain.ErrEmptyMessage, http.StatusBadRequest, "EMPTY_MESSAGE"},
	{domain.ErrMessageTooLong, http.StatusBadRequest, "MESSAGE_TOO_LONG"},
	{domain.ErrMalformedEvent, http.StatusBadRequest, "MALFORMED_EVENT"},

	// Availability — 503 (fast-fail, retry later)
	{domain.ErrCircuitOpen, http.StatusServiceUnavailable, "CIRCUIT_OPEN"},
	{domain.ErrQueueUnavailable, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE"},

	// Transport failures — 502 (upstream gateway/SMTP rejected or timed out)
	{domain.ErrTransportTransient, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"},
	{domain.ErrTransportTerminal, http.StatusBadGateway, "UPSTREAM_REJECTED"},
}

// ToHTTPError converts a domain error to an HTTP error.
func ToHTTPError(err error) HTTPError {
	if err == nil {
		return HTTPError{StatusCode: http.StatusOK}
	}
	for _, m := range httpMappings {
		if errors.Is(err, m.err) {
			return HTTPError{StatusCode: m.statusCode, Code: m.code, Message: err.Error()}
		}
	}
	// Never expose internal error details to clients
	return HTTPError{StatusCode: http.StatusInternalServerError, Code: "INTERNAL", Message: "internal error"}
}

// ToHTTPStatusCode extracts just the HTTP status code for a domain error.
func ToHTTPStatusCode(err error) int {
	return ToHTTPError(err).StatusCode
}
