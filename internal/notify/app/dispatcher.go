package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/notification-dispatch/internal/domain"
)

var tracer = otel.Tracer("notify/app")

var (
	dispatchSentTotal     metric.Int64Counter
	dispatchRejectedTotal metric.Int64Counter
	dispatchFailedTotal   metric.Int64Counter
	circuitOpenTotal      metric.Int64Counter
	retryAttemptsTotal    metric.Int64Counter
	otpEventsTotal        metric.Int64Counter
	otpDroppedTotal       metric.Int64Counter
)

func init() {
	m := otel.Meter("notify/app")

	dispatchSentTotal, _ = m.Int64Counter("dispatch_sent_total",
		metric.WithDescription("Total successful dispatches"))
	dispatchRejectedTotal, _ = m.Int64Counter("dispatch_rejected_total",
		metric.WithDescription("Total dispatches rejected by validation"))
	dispatchFailedTotal, _ = m.Int64Counter("dispatch_failed_total",
		metric.WithDescription("Total failed dispatches"))
	circuitOpenTotal, _ = m.Int64Counter("dispatch_circuit_open_total",
		metric.WithDescription("Total dispatches rejected by an open circuit breaker"))
	retryAttemptsTotal, _ = m.Int64Counter("dispatch_retry_attempts_total",
		metric.WithDescription("Total transport retry attempts"))
	otpEventsTotal, _ = m.Int64Counter("otp_events_total",
		metric.WithDescription("Total OTP events consumed"))
	otpDroppedTotal, _ = m.Int64Counter("otp_events_dropped_total",
		metric.WithDescription("Total OTP events dropped for bad event data"))
}

// ChannelDispatcherConfig holds the dependencies for one ChannelDispatcher.
type ChannelDispatcherConfig struct {
	Channel   domain.Channel
	Transport ChannelTransport
	Audit     AuditSink
	Breaker   *CircuitBreaker
	Limiter   *RateLimiter
	Retry     *RetryPolicy
	Clock     domain.Clock
	Logger    *slog.Logger

	// DefaultSender is used when the request carries no sender override.
	DefaultSender string
}

// ChannelDispatcher composes the circuit breaker, concurrency limiter, and
// retry policy around one channel's transport. It exclusively owns its
// breaker and limiter; those are never shared with another channel.
//
// Every Dispatch call produces exactly one DispatchResult and one audit
// entry — there are no silent drops.
type ChannelDispatcher struct {
	channel       domain.Channel
	transport     ChannelTransport
	audit         AuditSink
	breaker       *CircuitBreaker
	limiter       *RateLimiter
	retry         *RetryPolicy
	clock         domain.Clock
	logger        *slog.Logger
	defaultSender string
}

// NewChannelDispatcher creates a ChannelDispatcher with the given dependencies.
func NewChannelDispatcher(cfg ChannelDispatcherConfig) *ChannelDispatcher {
	return &ChannelDispatcher{
		channel:       cfg.Channel,
		transport:     cfg.Transport,
		audit:         cfg.Audit,
		breaker:       cfg.Breaker,
		limiter:       cfg.Limiter,
		retry:         cfg.Retry,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
		defaultSender: cfg.DefaultSender,
	}
}

// Channel returns the channel this dispatcher serves.
func (d *ChannelDispatcher) Channel() domain.Channel {
	return d.channel
}

// Dispatch runs one send through the reliability pipeline:
//
//  1. Circuit breaker check — open means fast-fail, no permit, no
//     transport call, still audited.
//  2. Validation and normalization — failures are audited as rejected but
//     never counted against the breaker (bad input is not an
//     infrastructure failure).
//  3. Permit acquisition — suspends while the channel is saturated.
//  4. Transport attempts with backoff, the permit held across retries to
//     throttle retry storms. Caller cancellation is honored only up to
//     permit acquisition; a held permit means the attempt runs to
//     completion.
//  5. Breaker bookkeeping, audit record, result.
func (d *ChannelDispatcher) Dispatch(ctx context.Context, req SendRequest) (DispatchResult, error) {
	ctx, span := tracer.Start(ctx, "notify.dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("notify.channel", string(d.channel)))

	attrs := metric.WithAttributes(attribute.String("channel", string(d.channel)))

	// 1. Fast-fail while the breaker is open.
	if d.breaker.IsOpen() {
		circuitOpenTotal.Add(ctx, 1, attrs)
		span.SetStatus(codes.Error, "circuit open")
		err := fmt.Errorf("dispatch %s to %q: %w", d.channel, req.To, domain.ErrCircuitOpen)
		d.record(ctx, req, "", "failed: circuit open")
		return d.result(OutcomeFailed, req, "", "circuit open"), err
	}

	// 2. Validate and normalize. Rejections are audited but do not touch
	// the breaker.
	prepared, err := d.prepare(req)
	if err != nil {
		dispatchRejectedTotal.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.record(ctx, req, "", "rejected: "+err.Error())
		return d.result(OutcomeRejected, req, "", err.Error()), err
	}

	// 3. One permit per in-flight transport call. Released on every exit
	// path below.
	if err := d.limiter.Acquire(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		err = fmt.Errorf("dispatch %s: acquire permit: %w", d.channel, err)
		d.record(ctx, prepared, "", "failed: "+err.Error())
		return d.result(OutcomeFailed, prepared, "", err.Error()), err
	}
	defer d.limiter.Release()

	// 4. Attempt loop. The backoff wait happens with the permit still held.
	// Once the permit is held the send runs to completion: the attempt
	// loop and the closing audit write are detached from caller
	// cancellation, so a dropped HTTP client cannot abort a retry
	// mid-backoff or count a spurious failure against the breaker.
	sendCtx := context.WithoutCancel(ctx)
	res, sendErr := d.attempt(sendCtx, prepared)

	// 5. Resolve.
	if sendErr != nil {
		d.breaker.RecordFailure()
		dispatchFailedTotal.Add(sendCtx, 1, attrs)
		span.RecordError(sendErr)
		span.SetStatus(codes.Error, sendErr.Error())
		d.logger.ErrorContext(sendCtx, "dispatch failed",
			slog.String("channel", string(d.channel)),
			slog.String("recipient", prepared.To),
			slog.Any("error", sendErr),
		)
		d.record(sendCtx, prepared, "", "failed: "+sendErr.Error())
		return d.result(OutcomeFailed, prepared, "", sendErr.Error()),
			fmt.Errorf("dispatch %s to %q: %w", d.channel, prepared.To, sendErr)
	}

	d.breaker.RecordSuccess()
	dispatchSentTotal.Add(sendCtx, 1, attrs)
	d.logger.InfoContext(sendCtx, "dispatch sent",
		slog.String("channel", string(d.channel)),
		slog.String("recipient", prepared.To),
		slog.String("external_id", res.ExternalID),
	)
	d.record(sendCtx, prepared, res.ExternalID, "sent")
	return d.result(OutcomeSent, prepared, res.ExternalID, res.RawStatus), nil
}

// attempt runs the transport call with retries per the policy. The caller
// holds the channel permit for the whole loop.
func (d *ChannelDispatcher) attempt(ctx context.Context, req SendRequest) (*TransportResult, error) {
	attrs := metric.WithAttributes(attribute.String("channel", string(d.channel)))

	for attempt := 1; ; attempt++ {
		res, err := d.transport.Send(ctx, req)
		if err == nil {
			if res == nil {
				// A transport returning (nil, nil) violates its contract.
				return &TransportResult{}, nil
			}
			return res, nil
		}

		if !d.retry.ShouldRetry(attempt, err) {
			return nil, err
		}

		wait := d.retry.Backoff(attempt)
		retryAttemptsTotal.Add(ctx, 1, attrs)
		d.logger.WarnContext(ctx, "transient transport failure, retrying",
			slog.String("channel", string(d.channel)),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", wait),
			slog.Any("error", err),
		)
		if sleepErr := sleepCtx(ctx, wait); sleepErr != nil {
			return nil, fmt.Errorf("backoff interrupted: %w", err)
		}
	}
}

// prepare validates the request and returns a normalized copy.
func (d *ChannelDispatcher) prepare(req SendRequest) (SendRequest, error) {
	if req.From == "" {
		req.From = d.defaultSender
	}

	switch d.channel {
	case domain.ChannelSMS:
		return d.prepareSMS(req)
	case domain.ChannelEmail:
		return d.prepareEmail(req)
	default:
		return req, fmt.Errorf("unsupported channel %q: %w", d.channel, domain.ErrInvalidInput)
	}
}

func (d *ChannelDispatcher) prepareSMS(req SendRequest) (SendRequest, error) {
	req.To = domain.NormalizePhone(req.To)
	if !domain.IsValidPhone(req.To) {
		return req, fmt.Errorf("recipient %q: %w", req.To, domain.ErrInvalidPhone)
	}

	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		return req, domain.ErrEmptyMessage
	}
	if len(req.Body) > domain.MaxSMSTextLength {
		return req, fmt.Errorf("%d characters: %w", len(req.Body), domain.ErrMessageTooLong)
	}
	return req, nil
}

func (d *ChannelDispatcher) prepareEmail(req SendRequest) (SendRequest, error) {
	if !domain.IsValidEmail(req.To) {
		return req, fmt.Errorf("recipient %q: %w", req.To, domain.ErrInvalidEmail)
	}

	// Callers that supply no content get the fixed default template.
	if req.Subject == "" && strings.TrimSpace(req.Body) == "" {
		req.Subject = DefaultEmailSubject
		req.Body = DefaultEmailBody
		req.HTML = false
		return req, nil
	}
	if req.Subject == "" {
		req.Subject = DefaultEmailSubject
	}
	if strings.TrimSpace(req.Body) == "" {
		req.Body = DefaultEmailBody
		req.HTML = false
	}
	return req, nil
}

// record writes the audit entry for one attempt. Audit failures are logged
// and never abort a dispatch.
func (d *ChannelDispatcher) record(ctx context.Context, req SendRequest, externalID, status string) {
	entry := AuditEntry{
		Timestamp:  d.clock.Now().UTC(),
		Channel:    d.channel,
		Recipient:  req.To,
		Sender:     req.From,
		Summary:    d.contentSummary(req),
		ExternalID: externalID,
		Status:     status,
	}
	if err := d.audit.Record(ctx, entry); err != nil {
		d.logger.ErrorContext(ctx, "audit record failed",
			slog.String("channel", string(d.channel)),
			slog.String("recipient", req.To),
			slog.Any("error", err),
		)
	}
}

func (d *ChannelDispatcher) result(outcome Outcome, req SendRequest, externalID, detail string) DispatchResult {
	return DispatchResult{
		Outcome:     outcome,
		ExternalID:  externalID,
		Recipient:   req.To,
		CompletedAt: d.clock.Now().UTC(),
		Detail:      detail,
	}
}

// contentSummary produces the audit-log content column: the subject for
// email, a truncated body for SMS. Keyed on the dispatcher's channel, not
// the request's, so a request with an unset Channel field audits correctly.
func (d *ChannelDispatcher) contentSummary(req SendRequest) string {
	if d.channel == domain.ChannelEmail {
		return req.Subject
	}
	const maxSummary = 120
	if len(req.Body) > maxSummary {
		return req.Body[:maxSummary]
	}
	return req.Body
}

// sleepCtx waits d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
