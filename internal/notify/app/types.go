// Package app contains the dispatch-reliability engine: per-channel
// circuit breakers, concurrency limiters, retry policies, the channel
// dispatcher that composes them around a transport, and the OTP queue
// consumer. Transports, audit storage, and the queue broker are ports
// implemented under internal/notify/adapter.
package app

import (
	"context"
	"time"

	"github.com/aelexs/notification-dispatch/internal/domain"
)

// SendRequest is an already-shaped send request for one channel.
// Immutable once constructed; the dispatcher works on normalized copies.
type SendRequest struct {
	Channel domain.Channel

	// To is the recipient identifier: a phone number for SMS (any accepted
	// form — the dispatcher normalizes it) or an email address.
	To string

	// From optionally overrides the channel's default sender.
	From string

	// Subject applies to email only. Empty means "use the default template".
	Subject string

	// Body is the message text. For email it may be HTML (see HTML).
	Body string

	// HTML marks the email body as text/html rather than text/plain.
	HTML bool
}

// Outcome classifies how a dispatch call ended.
type Outcome string

const (
	// OutcomeSent — the transport accepted the message.
	OutcomeSent Outcome = "sent"
	// OutcomeRejected — the request failed validation before any transport
	// call; attributable to the caller, not to infrastructure.
	OutcomeRejected Outcome = "rejected"
	// OutcomeFailed — the transport (or the circuit breaker) failed the send.
	OutcomeFailed Outcome = "failed"
)

// DispatchResult is produced exactly once per Dispatch call and never
// mutated after creation.
type DispatchResult struct {
	Outcome     Outcome
	ExternalID  string // channel-assigned identifier, may be absent
	Recipient   string
	CompletedAt time.Time
	Detail      string // human-readable status detail
}

// TransportResult is the explicit schema a transport adapter produces from
// the upstream API response. It is validated once at the adapter boundary;
// the core never inspects raw responses.
type TransportResult struct {
	ExternalID string // provider message/receipt ID, may be empty
	RawStatus  string // provider's raw status string, for audit
}

// AuditEntry records one dispatch attempt, success or failure. Entries are
// append-only; retention is the store's concern, not the core's.
type AuditEntry struct {
	Timestamp  time.Time
	Channel    domain.Channel
	Recipient  string
	Sender     string
	Summary    string // channel-specific content summary
	ExternalID string // optional
	Status     string
}

// OTPEvent is a decoded one-time-password delivery event from the queue.
// Consumed exactly once per delivery attempt; its lifetime ends at ack or
// nack.
type OTPEvent struct {
	Channel    domain.Channel
	Identifier string // email address or phone number
	Code       string
	IssuedAt   time.Time
}

// MessageHandle identifies a queued message for ack/nack.
type MessageHandle struct {
	Queue string
	ID    string
}

// ChannelTransport performs the actual send for one channel. Errors must be
// wrapped with domain.ErrTransportTransient or domain.ErrTransportTerminal
// so the retry policy can classify them as data.
type ChannelTransport interface {
	Send(ctx context.Context, req SendRequest) (*TransportResult, error)
}

// AuditSink records dispatch attempts. Implementations must not panic;
// the dispatcher treats a Record error as log-only and never lets it abort
// a dispatch.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// Dispatcher is the consumer-side view of a channel dispatcher.
// *ChannelDispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req SendRequest) (DispatchResult, error)
}

// EventHandler processes one decoded OTP event. The queue client invokes it
// synchronously — one event in flight per callback invocation.
type EventHandler func(ctx context.Context, event OTPEvent, handle MessageHandle)

// QueueClient abstracts the message broker. Redelivery of nacked messages
// is the broker's responsibility; the core never re-queues on its own.
type QueueClient interface {
	// Subscribe registers the handler for one queue. Must be called before
	// Consume.
	Subscribe(queue string, handler EventHandler) error

	// Consume blocks delivering messages to registered handlers until ctx
	// is cancelled or the broker connection fails.
	Consume(ctx context.Context) error

	// Ack removes the message from the queue.
	Ack(ctx context.Context, handle MessageHandle) error

	// Nack returns the message to the broker; with requeue it becomes
	// eligible for redelivery.
	Nack(ctx context.Context, handle MessageHandle, requeue bool) error

	// Close releases broker resources held by this client.
	Close() error
}
