package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/aelexs/notification-dispatch/internal/domain"
	"github.com/aelexs/notification-dispatch/internal/notify/app"
)

// httpDoer is a narrow, consumer-defined interface for the single HTTP
// operation the gateway transport needs. *http.Client satisfies it, and
// test stubs implement it directly.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Compile-time interface satisfaction check.
var _ app.ChannelTransport = (*GatewaySMSTransport)(nil)

// GatewaySMSConfig holds the SMS gateway connection parameters.
type GatewaySMSConfig struct {
	// URL is the gateway's message-submission endpoint.
	URL string

	// APIKey authenticates requests as a bearer token.
	APIKey string

	// From is the sender number used when the request carries none.
	From string
}

// GatewaySMSTransport delivers SMS through an HTTP gateway. Every error it
// returns is classified as transient or terminal at this boundary so the
// retry policy upstream treats the classification as data.
type GatewaySMSTransport struct {
	client httpDoer
	cfg    GatewaySMSConfig
}

// NewGatewaySMSTransport creates a transport backed by the given HTTP client.
func NewGatewaySMSTransport(client httpDoer, cfg GatewaySMSConfig) *GatewaySMSTransport {
	return &GatewaySMSTransport{client: client, cfg: cfg}
}

// gatewayRequest is the JSON body the gateway accepts.
type gatewayRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Text string `json:"text"`
}

// gatewayResponse is the subset of the gateway's response the transport
// reads. Unknown fields are ignored.
type gatewayResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error"`
}

// Send submits one SMS to the gateway.
//
// Classification:
//   - network/transport failures, HTTP 408, 429, and 5xx → transient
//   - any other non-2xx status → terminal
//   - unparseable success bodies → terminal (the provider contract is broken)
func (t *GatewaySMSTransport) Send(ctx context.Context, req app.SendRequest) (*app.TransportResult, error) {
	ctx, span := tracer.Start(ctx, "gateway.sms.send")
	defer span.End()

	from := req.From
	if from == "" {
		from = t.cfg.From
	}

	body, err := json.Marshal(gatewayRequest{To: req.To, From: from, Text: req.Body})
	if err != nil {
		return nil, fmt.Errorf("gateway sms: encode request: %w", domain.ErrTransportTerminal)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateway sms: build request: %w", domain.ErrTransportTerminal)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway sms: %v: %w", err, classifyNetErr(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("gateway sms: read response: %w", domain.ErrTransportTransient)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := domain.ErrTransportTerminal
		if retryableStatus(resp.StatusCode) {
			kind = domain.ErrTransportTransient
		}
		detail := gatewayErrorDetail(respBody)
		return nil, fmt.Errorf("gateway sms: status %d%s: %w", resp.StatusCode, detail, kind)
	}

	var decoded gatewayResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("gateway sms: decode response: %w", domain.ErrTransportTerminal)
	}

	return &app.TransportResult{
		ExternalID: decoded.MessageID,
		RawStatus:  decoded.Status,
	}, nil
}

// classifyNetErr maps a client/network error to an error kind. Timeouts and
// connection failures are transient; a cancelled context is surfaced as
// transient too since the caller decides whether to retry.
func classifyNetErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrTransportTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.ErrTransportTransient
	}
	// url.Error wraps dial/DNS failures that are worth retrying.
	return domain.ErrTransportTransient
}

func retryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout:
		return true
	case code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}

// gatewayErrorDetail extracts the gateway's error string for wrapping; bodies
// that are not the expected JSON contribute nothing.
func gatewayErrorDetail(body []byte) string {
	var decoded gatewayResponse
	if err := json.Unmarshal(body, &decoded); err != nil || decoded.Error == "" {
		return ""
	}
	return " (" + decoded.Error + ")"
}
