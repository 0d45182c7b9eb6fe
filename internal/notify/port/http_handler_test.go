package port_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelexs/notification-dispatch/internal/domain"
	"github.com/aelexs/notification-dispatch/internal/domain/domaintest"
	"github.com/aelexs/notification-dispatch/internal/notify/app"
	"github.com/aelexs/notification-dispatch/internal/notify/port"
)

type stubDispatcher struct {
	lastReq app.SendRequest
	result  app.DispatchResult
	err     error
}

func (s *stubDispatcher) Dispatch(_ context.Context, req app.SendRequest) (app.DispatchResult, error) {
	s.lastReq = req
	return s.result, s.err
}

type stubAuditReader struct {
	lastChannel domain.Channel
	lastSince   time.Time
	entries     []app.AuditEntry
	err         error
}

func (s *stubAuditReader) QueryRecent(_ context.Context, channel domain.Channel, since time.Time) ([]app.AuditEntry, error) {
	s.lastChannel = channel
	s.lastSince = since
	return s.entries, s.err
}

type stubConsumer struct {
	healthy bool
	state   app.ConsumerState
}

func (s *stubConsumer) IsHealthy() bool          { return s.healthy }
func (s *stubConsumer) State() app.ConsumerState { return s.state }

type handlerFixture struct {
	mux      *http.ServeMux
	sms      *stubDispatcher
	email    *stubDispatcher
	audit    *stubAuditReader
	consumer *stubConsumer
	clock    *domaintest.FakeClock
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	fx := &handlerFixture{
		mux:      http.NewServeMux(),
		sms:      &stubDispatcher{},
		email:    &stubDispatcher{},
		audit:    &stubAuditReader{},
		consumer: &stubConsumer{healthy: true, state: app.ConsumerConsuming},
		clock:    domaintest.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	h := port.NewHandler(port.HandlerConfig{
		SMS:      fx.sms,
		Email:    fx.email,
		Audit:    fx.audit,
		Consumer: fx.consumer,
		Clock:    fx.clock,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	h.Register(fx.mux)
	return fx
}

func (fx *handlerFixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	fx.mux.ServeHTTP(rec, req)
	return rec
}

func TestHandler_SendSMS(t *testing.T) {
	t.Run("dispatches and returns the result", func(t *testing.T) {
		fx := newHandlerFixture(t)
		fx.sms.result = app.DispatchResult{
			Outcome:     app.OutcomeSent,
			ExternalID:  "msg-1",
			Recipient:   "09121234567",
			CompletedAt: fx.clock.Now(),
		}

		rec := fx.do(t, http.MethodPost, "/v1/sms/send",
			`{"to":"+989121234567","body":"hello"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "sent", resp["outcome"])
		assert.Equal(t, "msg-1", resp["external_id"])
		assert.Equal(t, "09121234567", resp["recipient"])

		assert.Equal(t, domain.ChannelSMS, fx.sms.lastReq.Channel)
		assert.Equal(t, "+989121234567", fx.sms.lastReq.To)
	})

	t.Run("invalid phone maps to 400", func(t *testing.T) {
		fx := newHandlerFixture(t)
		fx.sms.result = app.DispatchResult{Outcome: app.OutcomeRejected}
		fx.sms.err = fmt.Errorf("recipient %q: %w", "0123", domain.ErrInvalidPhone)

		rec := fx.do(t, http.MethodPost, "/v1/sms/send", `{"to":"0123","body":"hi"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_PHONE")
	})

	t.Run("open circuit maps to 503", func(t *testing.T) {
		fx := newHandlerFixture(t)
		fx.sms.result = app.DispatchResult{Outcome: app.OutcomeFailed}
		fx.sms.err = fmt.Errorf("dispatch sms: %w", domain.ErrCircuitOpen)

		rec := fx.do(t, http.MethodPost, "/v1/sms/send", `{"to":"09121234567","body":"hi"}`)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "CIRCUIT_OPEN")
	})

	t.Run("transport failure maps to 502", func(t *testing.T) {
		fx := newHandlerFixture(t)
		fx.sms.result = app.DispatchResult{Outcome: app.OutcomeFailed}
		fx.sms.err = fmt.Errorf("gateway: %w", domain.ErrTransportTransient)

		rec := fx.do(t, http.MethodPost, "/v1/sms/send", `{"to":"09121234567","body":"hi"}`)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("malformed json maps to 400", func(t *testing.T) {
		fx := newHandlerFixture(t)

		rec := fx.do(t, http.MethodPost, "/v1/sms/send", `{not json`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		fx := newHandlerFixture(t)

		rec := fx.do(t, http.MethodPost, "/v1/sms/send", `{"to":"09121234567","text":"hi"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_SendEmail(t *testing.T) {
	t.Run("dispatches with subject and html flag", func(t *testing.T) {
		fx := newHandlerFixture(t)
		fx.email.result = app.DispatchResult{
			Outcome:     app.OutcomeSent,
			Recipient:   "user@example.com",
			CompletedAt: fx.clock.Now(),
		}

		rec := fx.do(t, http.MethodPost, "/v1/email/send",
			`{"to":"user@example.com","subject":"hi","body":"<b>x</b>","html":true}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.ChannelEmail, fx.email.lastReq.Channel)
		assert.Equal(t, "hi", fx.email.lastReq.Subject)
		assert.True(t, fx.email.lastReq.HTML)
	})

	t.Run("invalid email maps to 400", func(t *testing.T) {
		fx := newHandlerFixture(t)
		fx.email.result = app.DispatchResult{Outcome: app.OutcomeRejected}
		fx.email.err = fmt.Errorf("recipient: %w", domain.ErrInvalidEmail)

		rec := fx.do(t, http.MethodPost, "/v1/email/send", `{"to":"nope"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_EMAIL")
	})
}

func TestHandler_Logs(t *testing.T) {
	t.Run("returns entries for the requested window", func(t *testing.T) {
		fx := newHandlerFixture(t)
		fx.audit.entries = []app.AuditEntry{
			{
				Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
				Channel:   domain.ChannelSMS,
				Recipient: "09121234567",
				Status:    "sent",
			},
		}

		rec := fx.do(t, http.MethodGet, "/v1/sms/logs?days=3", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "sms", resp["channel"])
		assert.Equal(t, float64(3), resp["days"])
		assert.Len(t, resp["entries"], 1)

		assert.Equal(t, domain.ChannelSMS, fx.audit.lastChannel)
		expectedSince := fx.clock.Now().UTC().AddDate(0, 0, -3)
		assert.True(t, fx.audit.lastSince.Equal(expectedSince))
	})

	t.Run("defaults to one day", func(t *testing.T) {
		fx := newHandlerFixture(t)

		rec := fx.do(t, http.MethodGet, "/v1/email/logs", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.ChannelEmail, fx.audit.lastChannel)
		expectedSince := fx.clock.Now().UTC().AddDate(0, 0, -1)
		assert.True(t, fx.audit.lastSince.Equal(expectedSince))
	})

	t.Run("clamps to the retention window", func(t *testing.T) {
		fx := newHandlerFixture(t)

		rec := fx.do(t, http.MethodGet, "/v1/sms/logs?days=90", "")

		require.Equal(t, http.StatusOK, rec.Code)
		maxDays := int(domain.AuditRetention.Hours() / 24)
		expectedSince := fx.clock.Now().UTC().AddDate(0, 0, -maxDays)
		assert.True(t, fx.audit.lastSince.Equal(expectedSince))
	})

	t.Run("rejects non-positive days", func(t *testing.T) {
		fx := newHandlerFixture(t)

		rec := fx.do(t, http.MethodGet, "/v1/sms/logs?days=0", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("audit failures map to 500", func(t *testing.T) {
		fx := newHandlerFixture(t)
		fx.audit.err = fmt.Errorf("table missing")

		rec := fx.do(t, http.MethodGet, "/v1/sms/logs", "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "table missing",
			"internal detail must not leak to callers")
	})
}

func TestHandler_Health(t *testing.T) {
	t.Run("ok while the consumer is healthy", func(t *testing.T) {
		fx := newHandlerFixture(t)

		rec := fx.do(t, http.MethodGet, "/v1/health", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp["status"])
		consumer := resp["consumer"].(map[string]any)
		assert.Equal(t, "consuming", consumer["state"])
		assert.Equal(t, true, consumer["healthy"])
	})

	t.Run("degraded while the consumer is down", func(t *testing.T) {
		fx := newHandlerFixture(t)
		fx.consumer.healthy = false
		fx.consumer.state = app.ConsumerStopped

		rec := fx.do(t, http.MethodGet, "/v1/health", "")

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "degraded", resp["status"])
		consumer := resp["consumer"].(map[string]any)
		assert.Equal(t, "stopped", consumer["state"])
	})
}
