package domain

import "time"

// Compiled defaults for the dispatch-reliability engine.
// All of these can be overridden via configuration.
const (
	// Per-channel admission control: maximum concurrent in-flight sends.
	DefaultSMSRateLimit   = 10
	DefaultEmailRateLimit = 5

	// Retry policy
	DefaultRetryAttempts = 3                // attempts per dispatch, including the first
	RetryBackoffFloor    = 4 * time.Second  // minimum wait before a retry
	RetryBackoffCap      = 10 * time.Second // maximum wait before a retry

	// Circuit breaker
	DefaultSMSBreakerThreshold   = 5
	DefaultEmailBreakerThreshold = 3
	DefaultBreakerOpenDuration   = 60 * time.Second

	// Message limits
	MaxSMSTextLength = 1600 // gateway hard limit

	// Timeout contracts
	SMSGatewayTimeout = 30 * time.Second // max time for one gateway HTTP call
	SMTPTimeout       = 30 * time.Second // max time for one SMTP conversation
	RedisTimeout      = 2 * time.Second  // max time for Redis operations
	DynamoDBTimeout   = 5 * time.Second  // max time for DynamoDB operations

	// OTP delivery
	OTPValidityDuration = 5 * time.Minute // copy rendered into OTP payloads

	// Audit log retention — enforced by the store's TTL mechanism, not by
	// the dispatch core.
	AuditRetention = 7 * 24 * time.Hour

	// Consumer lifecycle
	ConsumerStopTimeout = 5 * time.Second // bounded join on Stop()

	// Graceful shutdown
	ShutdownDrainDelay  = 1 * time.Second
	ShutdownHTTPTimeout = 10 * time.Second
	ShutdownOTELTimeout = 5 * time.Second

	// GracefulShutdownTimeout is the end-to-end budget: drain delay, HTTP
	// drain, consumer stop, and OTEL flush must all fit inside it.
	GracefulShutdownTimeout = 30 * time.Second
)

// Channel identifies a delivery channel.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// IsValidChannel checks if a channel identifier is supported.
func IsValidChannel(c Channel) bool {
	return c == ChannelSMS || c == ChannelEmail
}
