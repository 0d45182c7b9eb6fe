// Package adapter contains implementations of the ports defined in app:
// the HTTP SMS gateway and SMTP email transports, the DynamoDB audit store,
// the Redis Streams OTP queue client, and log-only transports for local
// development.
package adapter

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("notify/adapter")
