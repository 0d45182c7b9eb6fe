package adapter

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/aelexs/notification-dispatch/internal/domain"
	"github.com/aelexs/notification-dispatch/internal/notify/app"
)

// sendMailFunc matches smtp.SendMail. Injected so tests can capture the
// assembled message without a live SMTP server.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Compile-time interface satisfaction check.
var _ app.ChannelTransport = (*SMTPEmailTransport)(nil)

// SMTPEmailConfig holds SMTP connection parameters.
type SMTPEmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// From is the envelope and header sender used when the request carries
	// none.
	From string
}

// SMTPEmailTransport delivers email over SMTP with PLAIN auth. SMTP reply
// codes are classified at this boundary: 4xx replies are transient, 5xx
// terminal, connection-level failures transient.
type SMTPEmailTransport struct {
	cfg      SMTPEmailConfig
	sendMail sendMailFunc
}

// NewSMTPEmailTransport creates a transport that dials cfg.Host:cfg.Port.
func NewSMTPEmailTransport(cfg SMTPEmailConfig) *SMTPEmailTransport {
	return &SMTPEmailTransport{cfg: cfg, sendMail: smtp.SendMail}
}

// Send assembles a MIME message and submits it. The ctx deadline is not
// plumbed into the dial — smtp.SendMail offers no hook for it — so callers
// rely on the server-side timeout; ctx cancellation is checked before
// dialing.
func (t *SMTPEmailTransport) Send(ctx context.Context, req app.SendRequest) (*app.TransportResult, error) {
	_, span := tracer.Start(ctx, "smtp.email.send")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("smtp email: %v: %w", err, domain.ErrTransportTransient)
	}

	from := req.From
	if from == "" {
		from = t.cfg.From
	}

	msg := buildMIMEMessage(from, req)

	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)
	var auth smtp.Auth
	if t.cfg.Username != "" {
		auth = smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
	}

	if err := t.sendMail(addr, auth, from, []string{req.To}, msg); err != nil {
		return nil, fmt.Errorf("smtp email: send to %s: %v: %w", req.To, err, classifySMTPErr(err))
	}

	return &app.TransportResult{RawStatus: "accepted"}, nil
}

// buildMIMEMessage assembles the RFC 5322 message with CRLF line endings.
func buildMIMEMessage(from string, req app.SendRequest) []byte {
	contentType := "text/plain; charset=UTF-8"
	if req.HTML {
		contentType = "text/html; charset=UTF-8"
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + req.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("UTF-8", req.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: " + contentType + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(req.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// classifySMTPErr maps an SMTP failure to an error kind. The smtp package
// surfaces server replies as *textproto.Error with the reply code.
func classifySMTPErr(err error) error {
	var replyErr *textproto.Error
	if errors.As(err, &replyErr) {
		if replyErr.Code >= 400 && replyErr.Code < 500 {
			return domain.ErrTransportTransient
		}
		return domain.ErrTransportTerminal
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.ErrTransportTransient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return domain.ErrTransportTransient
	}

	// Anything else (TLS handshake, protocol violations) is not worth
	// hammering the server over.
	return domain.ErrTransportTerminal
}
