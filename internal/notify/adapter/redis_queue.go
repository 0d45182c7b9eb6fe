package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aelexs/notification-dispatch/internal/domain"
	"github.com/aelexs/notification-dispatch/internal/notify/app"
	redisclient "github.com/aelexs/notification-dispatch/internal/redis"
)

// Compile-time interface satisfaction check.
var _ app.QueueClient = (*StreamQueue)(nil)

// StreamQueueConfig holds consumer-group parameters for the OTP queue.
type StreamQueueConfig struct {
	// Group is the consumer group name. All dispatcher instances share it
	// so each message is delivered to exactly one instance.
	Group string

	// Consumer is this instance's name within the group.
	Consumer string

	// Block bounds one XREADGROUP wait. Shorter values make shutdown more
	// responsive at the cost of more round trips.
	Block time.Duration

	// Closer, when set, is closed by Close. Wire the owning redis client
	// here when the queue should tear down the connection on stop.
	Closer io.Closer
}

// StreamQueue implements the OTP queue over Redis Streams with consumer
// groups. Each subscribed queue name is a stream; events are JSON-free
// flat field maps. Nack with requeue re-appends the message to the tail of
// its stream with an incremented delivery counter and acknowledges the old
// entry, so redelivery survives instance crashes between the two steps
// (the original stays pending until the XACK).
type StreamQueue struct {
	rdb    redisclient.Cmdable
	cfg    StreamQueueConfig
	logger *slog.Logger

	mu       sync.Mutex
	handlers map[string]app.EventHandler
	streams  []string
}

// NewStreamQueue creates a StreamQueue on the given Redis handle.
func NewStreamQueue(rdb redisclient.Cmdable, cfg StreamQueueConfig, logger *slog.Logger) *StreamQueue {
	if cfg.Block <= 0 {
		cfg.Block = 2 * time.Second
	}
	return &StreamQueue{
		rdb:      rdb,
		cfg:      cfg,
		logger:   logger,
		handlers: make(map[string]app.EventHandler),
	}
}

// Subscribe registers the handler for one stream and ensures the consumer
// group exists, creating the stream if needed. Group creation is retried
// with exponential backoff so a dispatcher starting before Redis is up does
// not fail permanently.
func (q *StreamQueue) Subscribe(queue string, handler app.EventHandler) error {
	if err := q.ensureGroup(queue); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, dup := q.handlers[queue]; !dup {
		q.streams = append(q.streams, queue)
	}
	q.handlers[queue] = handler
	return nil
}

func (q *StreamQueue) ensureGroup(queue string) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	policy.MaxElapsedTime = 15 * time.Second

	op := func() error {
		err := q.rdb.XGroupCreateMkStream(context.Background(), queue, q.cfg.Group, "0").Err()
		if err == nil || isBusyGroup(err) {
			return nil
		}
		return err
	}

	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("stream queue: create group %q on %q: %v: %w",
			q.cfg.Group, queue, err, domain.ErrQueueUnavailable)
	}
	return nil
}

// isBusyGroup reports whether err is the BUSYGROUP reply Redis returns when
// the consumer group already exists.
func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

// Consume blocks reading all subscribed streams and invoking handlers until
// ctx is cancelled or the broker connection fails. Handlers run
// synchronously, one message at a time; concurrency is the dispatcher's
// concern, not the queue's.
func (q *StreamQueue) Consume(ctx context.Context) error {
	q.mu.Lock()
	streams := append([]string(nil), q.streams...)
	q.mu.Unlock()

	if len(streams) == 0 {
		return fmt.Errorf("stream queue: consume with no subscriptions: %w", domain.ErrInvalidInput)
	}

	// XREADGROUP takes stream names followed by one ">" cursor per stream.
	args := make([]string, 0, len(streams)*2)
	args = append(args, streams...)
	for range streams {
		args = append(args, ">")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := q.rdb.XReadGroup(ctx, &redisclient.XReadGroupArgs{
			Group:    q.cfg.Group,
			Consumer: q.cfg.Consumer,
			Streams:  args,
			Count:    16,
			Block:    q.cfg.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redisclient.Nil) {
				continue // block timed out with no messages
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("stream queue: read: %v: %w", err, domain.ErrQueueUnavailable)
		}

		for _, stream := range res {
			q.dispatchStream(ctx, stream)
		}
	}
}

func (q *StreamQueue) dispatchStream(ctx context.Context, stream redisclient.XStream) {
	q.mu.Lock()
	handler := q.handlers[stream.Stream]
	q.mu.Unlock()
	if handler == nil {
		return
	}

	for _, msg := range stream.Messages {
		ev := decodeOTPEvent(msg)
		handler(ctx, ev, app.MessageHandle{Queue: stream.Stream, ID: msg.ID})
	}
}

// decodeOTPEvent maps stream fields onto an OTPEvent. Missing fields yield
// zero values; the consumer decides what to do with incomplete events.
func decodeOTPEvent(msg redisclient.XMessage) app.OTPEvent {
	ev := app.OTPEvent{}
	if v, ok := msg.Values["channel"].(string); ok {
		ev.Channel = domain.Channel(v)
	}
	if v, ok := msg.Values["identifier"].(string); ok {
		ev.Identifier = v
	}
	if v, ok := msg.Values["code"].(string); ok {
		ev.Code = v
	}
	if v, ok := msg.Values["issued_at"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			ev.IssuedAt = ts
		}
	}
	return ev
}

// Publish appends one OTP event to a stream. Producers elsewhere in the
// platform use the same field layout.
func (q *StreamQueue) Publish(ctx context.Context, queue string, ev app.OTPEvent) (string, error) {
	values := map[string]any{
		"channel":    string(ev.Channel),
		"identifier": ev.Identifier,
		"code":       ev.Code,
	}
	if !ev.IssuedAt.IsZero() {
		values["issued_at"] = ev.IssuedAt.UTC().Format(time.RFC3339Nano)
	}

	id, err := q.rdb.XAdd(ctx, &redisclient.XAddArgs{
		Stream: queue,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("stream queue: publish to %q: %v: %w", queue, err, domain.ErrQueueUnavailable)
	}
	return id, nil
}

// Ack acknowledges one message, removing it from the group's pending list.
func (q *StreamQueue) Ack(ctx context.Context, h app.MessageHandle) error {
	if err := q.rdb.XAck(ctx, h.Queue, q.cfg.Group, h.ID).Err(); err != nil {
		return fmt.Errorf("stream queue: ack %s: %v: %w", h.ID, err, domain.ErrQueueUnavailable)
	}
	return nil
}

// Nack rejects one message. With requeue it re-appends the message payload
// to the tail of its stream with delivery incremented, then acknowledges
// the original; without requeue it only acknowledges (the message is
// dropped).
func (q *StreamQueue) Nack(ctx context.Context, h app.MessageHandle, requeue bool) error {
	if requeue {
		if err := q.requeueMessage(ctx, h); err != nil {
			return err
		}
	}
	return q.Ack(ctx, h)
}

func (q *StreamQueue) requeueMessage(ctx context.Context, h app.MessageHandle) error {
	msgs, err := q.rdb.XRange(ctx, h.Queue, h.ID, h.ID).Result()
	if err != nil {
		return fmt.Errorf("stream queue: fetch %s for requeue: %v: %w", h.ID, err, domain.ErrQueueUnavailable)
	}
	if len(msgs) == 0 {
		// Already trimmed; nothing to redeliver.
		q.logger.Warn("requeue target missing from stream",
			slog.String("stream", h.Queue),
			slog.String("id", h.ID),
		)
		return nil
	}

	values := make(map[string]any, len(msgs[0].Values)+1)
	for k, v := range msgs[0].Values {
		values[k] = v
	}
	values["delivery"] = strconv.Itoa(deliveryCount(msgs[0].Values) + 1)

	if err := q.rdb.XAdd(ctx, &redisclient.XAddArgs{
		Stream: h.Queue,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("stream queue: requeue %s: %v: %w", h.ID, err, domain.ErrQueueUnavailable)
	}
	return nil
}

func deliveryCount(values map[string]any) int {
	v, ok := values["delivery"].(string)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// Close releases the configured closer, if any. The Redis connection itself
// is owned by whoever constructed the client.
func (q *StreamQueue) Close() error {
	if q.cfg.Closer != nil {
		return q.cfg.Closer.Close()
	}
	return nil
}
