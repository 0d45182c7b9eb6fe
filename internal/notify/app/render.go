package app

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/aelexs/notification-dispatch/internal/domain"
)

// Default content for email requests that arrive without any.
const (
	DefaultEmailSubject = "Welcome to Our Service"
	DefaultEmailBody    = "Thank you for joining us! We're excited to have you on board."
)

var otpEmailTemplate = template.Must(template.New("otp-email").Parse(`<html>
<body style="font-family: Arial, sans-serif; margin: 0; padding: 24px;">
  <h2 style="color: #333;">Your Verification Code</h2>
  <p>Use the code below to complete your sign-in:</p>
  <p style="font-size: 28px; font-weight: bold; letter-spacing: 4px; color: #1a73e8;">{{.Code}}</p>
  <p>This code expires in {{.ValidityMinutes}} minutes.</p>
  <p style="color: #888; font-size: 12px;">If you did not request this code, you can safely ignore this message. Never share this code with anyone.</p>
</body>
</html>
`))

// RenderOTPEmail builds the email send request for one OTP event.
func RenderOTPEmail(ev OTPEvent) (SendRequest, error) {
	var sb strings.Builder
	data := struct {
		Code            string
		ValidityMinutes int
	}{
		Code:            ev.Code,
		ValidityMinutes: int(domain.OTPValidityDuration.Minutes()),
	}
	if err := otpEmailTemplate.Execute(&sb, data); err != nil {
		return SendRequest{}, fmt.Errorf("render otp email: %w", err)
	}
	return SendRequest{
		Channel: domain.ChannelEmail,
		To:      ev.Identifier,
		Subject: fmt.Sprintf("Verification Code: %s", ev.Code),
		Body:    sb.String(),
		HTML:    true,
	}, nil
}

// RenderOTPSMS builds the SMS send request for one OTP event.
func RenderOTPSMS(ev OTPEvent) SendRequest {
	return SendRequest{
		Channel: domain.ChannelSMS,
		To:      ev.Identifier,
		Body:    fmt.Sprintf("Your verification code is: %s", ev.Code),
	}
}
