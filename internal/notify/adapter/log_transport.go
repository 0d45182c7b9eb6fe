package adapter

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aelexs/notification-dispatch/internal/notify/app"
)

// Compile-time interface satisfaction checks.
var _ app.ChannelTransport = (*LogSMSTransport)(nil)
var _ app.ChannelTransport = (*LogEmailTransport)(nil)

// LogSMSTransport is a fake transport that logs deliveries instead of
// sending real SMS. Suitable for local development and testing
// environments.
type LogSMSTransport struct {
	logger *slog.Logger
}

// NewLogSMSTransport creates a LogSMSTransport writing to the given logger.
func NewLogSMSTransport(logger *slog.Logger) *LogSMSTransport {
	return &LogSMSTransport{logger: logger}
}

// Send logs the delivery with a masked recipient and never fails.
func (t *LogSMSTransport) Send(ctx context.Context, req app.SendRequest) (*app.TransportResult, error) {
	t.logger.InfoContext(ctx, "sms delivery (log-only)",
		slog.String("to", maskPhone(req.To)),
		slog.Int("chars", len(req.Body)),
	)
	return &app.TransportResult{
		ExternalID: "log-" + uuid.NewString(),
		RawStatus:  "logged",
	}, nil
}

// LogEmailTransport is a fake transport that logs deliveries instead of
// sending real email.
type LogEmailTransport struct {
	logger *slog.Logger
}

// NewLogEmailTransport creates a LogEmailTransport writing to the given logger.
func NewLogEmailTransport(logger *slog.Logger) *LogEmailTransport {
	return &LogEmailTransport{logger: logger}
}

// Send logs the delivery and never fails.
func (t *LogEmailTransport) Send(ctx context.Context, req app.SendRequest) (*app.TransportResult, error) {
	t.logger.InfoContext(ctx, "email delivery (log-only)",
		slog.String("to", req.To),
		slog.String("subject", req.Subject),
		slog.Bool("html", req.HTML),
	)
	return &app.TransportResult{
		ExternalID: "log-" + uuid.NewString(),
		RawStatus:  "logged",
	}, nil
}

// maskPhone returns a masked representation of the phone number showing
// only the last 4 digits. Numbers shorter than 5 characters are fully
// masked.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "***" + phone[len(phone)-4:]
}
