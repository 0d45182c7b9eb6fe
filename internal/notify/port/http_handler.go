// Package port exposes the notification dispatch HTTP API: direct send
// endpoints for both channels, recent-audit-log queries, and a health view
// that includes the OTP consumer state.
package port

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aelexs/notification-dispatch/internal/domain"
	"github.com/aelexs/notification-dispatch/internal/errmap"
	"github.com/aelexs/notification-dispatch/internal/notify/app"
)

// auditReader is a narrow, consumer-defined interface for audit queries.
// The *adapter.AuditStore satisfies it.
type auditReader interface {
	QueryRecent(ctx context.Context, channel domain.Channel, since time.Time) ([]app.AuditEntry, error)
}

// consumerStatus is the view of the OTP consumer the health endpoint needs.
// The *app.OTPConsumer satisfies it.
type consumerStatus interface {
	IsHealthy() bool
	State() app.ConsumerState
}

// HandlerConfig holds the dependencies for the HTTP API handler.
type HandlerConfig struct {
	SMS      app.Dispatcher
	Email    app.Dispatcher
	Audit    auditReader
	Consumer consumerStatus
	Clock    domain.Clock
	Logger   *slog.Logger
}

// Handler serves the notification dispatch HTTP API.
type Handler struct {
	sms      app.Dispatcher
	email    app.Dispatcher
	audit    auditReader
	consumer consumerStatus
	clock    domain.Clock
	logger   *slog.Logger
}

// NewHandler creates a Handler with the given dependencies.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		sms:      cfg.SMS,
		email:    cfg.Email,
		audit:    cfg.Audit,
		consumer: cfg.Consumer,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}
}

// Register mounts all API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/sms/send", h.handleSendSMS)
	mux.HandleFunc("POST /v1/email/send", h.handleSendEmail)
	mux.HandleFunc("GET /v1/sms/logs", h.handleLogs(domain.ChannelSMS))
	mux.HandleFunc("GET /v1/email/logs", h.handleLogs(domain.ChannelEmail))
	mux.HandleFunc("GET /v1/health", h.handleHealth)
}

// sendSMSRequest is the POST /v1/sms/send body.
type sendSMSRequest struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Body string `json:"body"`
}

// sendEmailRequest is the POST /v1/email/send body.
type sendEmailRequest struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
	HTML    bool   `json:"html,omitempty"`
}

// sendResponse is the success body for both send endpoints.
type sendResponse struct {
	Outcome     string `json:"outcome"`
	Recipient   string `json:"recipient"`
	ExternalID  string `json:"external_id,omitempty"`
	CompletedAt string `json:"completed_at"`
}

func (h *Handler) handleSendSMS(w http.ResponseWriter, r *http.Request) {
	var body sendSMSRequest
	if !h.decodeBody(w, r, &body) {
		return
	}

	res, err := h.sms.Dispatch(r.Context(), app.SendRequest{
		Channel: domain.ChannelSMS,
		To:      body.To,
		From:    body.From,
		Body:    body.Body,
	})
	h.writeDispatchResult(w, r, res, err)
}

func (h *Handler) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	var body sendEmailRequest
	if !h.decodeBody(w, r, &body) {
		return
	}

	res, err := h.email.Dispatch(r.Context(), app.SendRequest{
		Channel: domain.ChannelEmail,
		To:      body.To,
		From:    body.From,
		Subject: body.Subject,
		Body:    body.Body,
		HTML:    body.HTML,
	})
	h.writeDispatchResult(w, r, res, err)
}

// logEntry is one row in the logs responses.
type logEntry struct {
	Timestamp  string `json:"timestamp"`
	Recipient  string `json:"recipient"`
	Sender     string `json:"sender,omitempty"`
	Summary    string `json:"summary,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
	Status     string `json:"status"`
}

// logsResponse is the GET /v1/{channel}/logs body.
type logsResponse struct {
	Channel string     `json:"channel"`
	Days    int        `json:"days"`
	Entries []logEntry `json:"entries"`
}

func (h *Handler) handleLogs(channel domain.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := parseDays(r.URL.Query().Get("days"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		since := h.clock.Now().UTC().AddDate(0, 0, -days)
		entries, err := h.audit.QueryRecent(r.Context(), channel, since)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		out := logsResponse{
			Channel: string(channel),
			Days:    days,
			Entries: make([]logEntry, 0, len(entries)),
		}
		for _, e := range entries {
			out.Entries = append(out.Entries, logEntry{
				Timestamp:  e.Timestamp.UTC().Format(time.RFC3339Nano),
				Recipient:  e.Recipient,
				Sender:     e.Sender,
				Summary:    e.Summary,
				ExternalID: e.ExternalID,
				Status:     e.Status,
			})
		}
		h.writeJSON(w, http.StatusOK, out)
	}
}

// healthResponse is the GET /v1/health body. The service degrades rather
// than dies when the consumer is down, so the endpoint reports 200 with the
// consumer marked unhealthy instead of failing the whole check.
type healthResponse struct {
	Status   string `json:"status"`
	Consumer struct {
		State   string `json:"state"`
		Healthy bool   `json:"healthy"`
	} `json:"consumer"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	var out healthResponse
	out.Status = "ok"
	out.Consumer.State = h.consumer.State().String()
	out.Consumer.Healthy = h.consumer.IsHealthy()
	if !out.Consumer.Healthy {
		out.Status = "degraded"
	}
	h.writeJSON(w, http.StatusOK, out)
}

// parseDays bounds the logs window: default 1, max the retention window.
func parseDays(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 {
		return 0, fmt.Errorf("days must be a positive integer: %w", domain.ErrInvalidInput)
	}
	if maxDays := int(domain.AuditRetention.Hours() / 24); days > maxDays {
		days = maxDays
	}
	return days, nil
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.writeError(w, r, fmt.Errorf("decode request body: %v: %w", err, domain.ErrInvalidInput))
		return false
	}
	return true
}

func (h *Handler) writeDispatchResult(w http.ResponseWriter, r *http.Request, res app.DispatchResult, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sendResponse{
		Outcome:     string(res.Outcome),
		Recipient:   res.Recipient,
		ExternalID:  res.ExternalID,
		CompletedAt: res.CompletedAt.Format(time.RFC3339Nano),
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := errmap.ToHTTPError(err)
	if httpErr.StatusCode >= 500 {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	h.writeJSON(w, httpErr.StatusCode, httpErr)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", slog.Any("error", err))
	}
}
