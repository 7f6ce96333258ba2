package notify

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/samber/oops"
)

const (
	ResetSubject = "Password Reset Code - HCG GIS Portal"
	TestSubject  = "Test Email - HCG Portal"
)

var resetTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Password Reset Request</h2>
  <p>Hello {{.Name}},</p>
  <p>We received a request to reset your password. Use the code below to continue:</p>
  <p style="font-size: 28px; font-weight: bold; letter-spacing: 6px;">{{.OTP}}</p>
  <p>This code expires in {{.Expiry}}.</p>
  <p>If you did not request a password reset, you can ignore this email.</p>
  <hr>
  <p style="color: #94a3b8; font-size: 12px;">HCG GIS Portal - Haryana City Gas</p>
</body>
</html>
`))

var textPolicy = bluemonday.StrictPolicy()

// ResetCodeMessage renders the email carrying a password reset OTP.
func ResetCodeMessage(to, name, otp string, ttl time.Duration) (Message, error) {
	var buf bytes.Buffer
	err := resetTemplate.Execute(&buf, struct {
		Name   string
		OTP    string
		Expiry string
	}{Name: name, OTP: otp, Expiry: humanDuration(ttl)})
	if err != nil {
		return Message{}, oops.Code("NOTIFY_RENDER_FAILED").Wrap(err)
	}

	body := buf.String()
	return Message{
		To:      to,
		Subject: ResetSubject,
		HTML:    body,
		Text:    PlainText(body),
	}, nil
}

// TestMessage is the message sent by the test-email command.
func TestMessage(to string) Message {
	body := "<h2>Email Configuration Successful!</h2>\n" +
		"<p>Your HCG Portal email system is working correctly.</p>\n" +
		"<p>Test OTP: <strong>123456</strong></p>\n"
	return Message{To: to, Subject: TestSubject, HTML: body, Text: PlainText(body)}
}

// PlainText strips markup and collapses blank lines.
func PlainText(htmlBody string) string {
	stripped := html.UnescapeString(textPolicy.Sanitize(htmlBody))

	var lines []string
	for _, line := range strings.Split(stripped, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	case d >= time.Second && d%time.Second == 0:
		return plural(int(d/time.Second), "second")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
