package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/aelexs/notification-dispatch/internal/domain"
)

// ConsumerState tracks the OTPConsumer lifecycle.
type ConsumerState int32

const (
	ConsumerStopped ConsumerState = iota
	ConsumerStarting
	ConsumerConsuming
	ConsumerStopping
)

func (s ConsumerState) String() string {
	switch s {
	case ConsumerStopped:
		return "stopped"
	case ConsumerStarting:
		return "starting"
	case ConsumerConsuming:
		return "consuming"
	case ConsumerStopping:
		return "stopping"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// OTPConsumerConfig holds the dependencies for the OTP queue consumer.
type OTPConsumerConfig struct {
	Queue      QueueClient
	EmailQueue string
	SMSQueue   string
	SMS        Dispatcher
	Email      Dispatcher
	Logger     *slog.Logger
}

// OTPConsumer subscribes to the email and SMS OTP queues and routes each
// event through the matching channel dispatcher. One consumer owns the queue
// client; Stop closes it.
type OTPConsumer struct {
	queue      QueueClient
	emailQueue string
	smsQueue   string
	sms        Dispatcher
	email      Dispatcher
	logger     *slog.Logger

	mu     sync.Mutex
	state  ConsumerState
	cancel context.CancelFunc
	done   chan struct{}

	loopAlive atomic.Bool
}

// NewOTPConsumer creates a stopped OTPConsumer.
func NewOTPConsumer(cfg OTPConsumerConfig) *OTPConsumer {
	return &OTPConsumer{
		queue:      cfg.Queue,
		emailQueue: cfg.EmailQueue,
		smsQueue:   cfg.SMSQueue,
		sms:        cfg.SMS,
		email:      cfg.Email,
		logger:     cfg.Logger,
		state:      ConsumerStopped,
	}
}

// Start registers both queue subscriptions and launches the consume loop.
// It returns an error if the consumer is already running or if either
// subscription fails; a failed Start leaves the consumer stopped with no
// partial subscriptions running.
func (c *OTPConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != ConsumerStopped {
		return fmt.Errorf("otp consumer: start in state %s: %w", c.state, domain.ErrInvalidInput)
	}
	c.state = ConsumerStarting

	if err := c.queue.Subscribe(c.emailQueue, c.handlerFor(domain.ChannelEmail, c.email)); err != nil {
		c.state = ConsumerStopped
		return fmt.Errorf("otp consumer: subscribe %q: %w", c.emailQueue, err)
	}
	if err := c.queue.Subscribe(c.smsQueue, c.handlerFor(domain.ChannelSMS, c.sms)); err != nil {
		c.state = ConsumerStopped
		return fmt.Errorf("otp consumer: subscribe %q: %w", c.smsQueue, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(loopCtx)

	c.state = ConsumerConsuming
	c.logger.InfoContext(ctx, "otp consumer started",
		slog.String("email_queue", c.emailQueue),
		slog.String("sms_queue", c.smsQueue),
	)
	return nil
}

// run drives the blocking consume loop, reconnecting after broker errors
// until the context is cancelled.
func (c *OTPConsumer) run(ctx context.Context) {
	defer close(c.done)
	defer c.loopAlive.Store(false)
	c.loopAlive.Store(true)

	for {
		err := c.queue.Consume(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.ErrorContext(ctx, "otp consume loop failed, reconnecting",
				slog.Any("error", err),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// handlerFor wraps one dispatcher into a queue event handler. A panic in
// handling is trapped and the message requeued so one malformed event
// cannot kill the loop.
func (c *OTPConsumer) handlerFor(channel domain.Channel, dispatch Dispatcher) EventHandler {
	return func(ctx context.Context, ev OTPEvent, h MessageHandle) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.ErrorContext(ctx, "otp handler panic",
					slog.String("channel", string(channel)),
					slog.Any("panic", r),
				)
				if err := c.queue.Nack(ctx, h, true); err != nil {
					c.logger.ErrorContext(ctx, "nack after panic failed", slog.Any("error", err))
				}
			}
		}()

		attrs := metric.WithAttributes(attribute.String("channel", string(channel)))
		otpEventsTotal.Add(ctx, 1, attrs)

		// Events with no recipient or no code can never succeed. Ack and
		// drop instead of requeuing them forever.
		if ev.Identifier == "" || ev.Code == "" {
			otpDroppedTotal.Add(ctx, 1, attrs)
			c.logger.WarnContext(ctx, "dropping malformed otp event",
				slog.String("channel", string(channel)),
				slog.String("queue", h.Queue),
				slog.String("message_id", h.ID),
			)
			c.ack(ctx, h)
			return
		}

		req, err := c.render(channel, ev)
		if err != nil {
			otpDroppedTotal.Add(ctx, 1, attrs)
			c.logger.ErrorContext(ctx, "dropping unrenderable otp event",
				slog.String("channel", string(channel)),
				slog.Any("error", err),
			)
			c.ack(ctx, h)
			return
		}

		res, err := dispatch.Dispatch(ctx, req)
		switch {
		case err == nil:
			c.ack(ctx, h)
		case domain.IsValidation(err):
			// Retrying invalid input yields the same rejection. Drop it;
			// the dispatcher already audited the rejection.
			otpDroppedTotal.Add(ctx, 1, attrs)
			c.logger.WarnContext(ctx, "dropping rejected otp event",
				slog.String("channel", string(channel)),
				slog.String("detail", res.Detail),
			)
			c.ack(ctx, h)
		default:
			if nackErr := c.queue.Nack(ctx, h, true); nackErr != nil {
				c.logger.ErrorContext(ctx, "nack failed",
					slog.String("message_id", h.ID),
					slog.Any("error", nackErr),
				)
			}
		}
	}
}

func (c *OTPConsumer) render(channel domain.Channel, ev OTPEvent) (SendRequest, error) {
	if channel == domain.ChannelEmail {
		return RenderOTPEmail(ev)
	}
	return RenderOTPSMS(ev), nil
}

func (c *OTPConsumer) ack(ctx context.Context, h MessageHandle) {
	if err := c.queue.Ack(ctx, h); err != nil {
		c.logger.ErrorContext(ctx, "ack failed",
			slog.String("message_id", h.ID),
			slog.Any("error", err),
		)
	}
}

// Stop cancels the consume loop, waits for it to drain, and closes the
// queue client. Safe to call more than once.
func (c *OTPConsumer) Stop() error {
	c.mu.Lock()
	if c.state == ConsumerStopped || c.state == ConsumerStopping {
		c.mu.Unlock()
		return nil
	}
	c.state = ConsumerStopping
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(domain.ConsumerStopTimeout):
			c.logger.Warn("otp consume loop did not stop in time")
		}
	}

	err := c.queue.Close()

	c.mu.Lock()
	c.state = ConsumerStopped
	c.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("otp consumer: close queue: %w", err)
	}
	return nil
}

// State reports the current lifecycle state.
func (c *OTPConsumer) State() ConsumerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsHealthy reports whether the consumer is running and its consume loop is
// alive. Health endpoints use this to gate readiness.
func (c *OTPConsumer) IsHealthy() bool {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	return state == ConsumerConsuming && c.loopAlive.Load()
}
