package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"

	"github.com/samber/oops"

	"github.com/Kyz7/hcg-auth/internal/config"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends multipart/alternative mail through an authenticated
// SMTP relay. net/smtp upgrades to STARTTLS when the server offers it.
type SMTPNotifier struct {
	host     string
	port     string
	username string
	password string
	from     string
	sendMail sendMailFunc
}

func NewSMTPNotifier(cfg config.MailConfig) *SMTPNotifier {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &SMTPNotifier{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.User,
		password: cfg.Password,
		from:     from,
		sendMail: smtp.SendMail,
	}
}

func (n *SMTPNotifier) Name() string { return "smtp" }

func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	if n.host == "" || n.username == "" || n.password == "" {
		return oops.Code("NOTIFY_NOT_CONFIGURED").With("driver", "smtp").
			Errorf("email credentials are not configured")
	}
	if err := ctx.Err(); err != nil {
		return oops.Code("DELIVERY_FAILED").With("driver", "smtp").Wrap(err)
	}

	raw, err := buildMIME(n.from, msg)
	if err != nil {
		return oops.Code("DELIVERY_FAILED").With("driver", "smtp").Wrap(err)
	}

	auth := smtp.PlainAuth("", n.username, n.password, n.host)
	if err := n.sendMail(n.host+":"+n.port, auth, n.from, []string{msg.To}, raw); err != nil {
		return oops.Code("DELIVERY_FAILED").
			With("driver", "smtp").
			With("host", n.host).
			Wrap(err)
	}
	return nil
}

func buildMIME(from string, msg Message) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=\"utf-8\"", msg.Text},
		{"text/html; charset=\"utf-8\"", msg.HTML},
	}
	for _, p := range parts {
		if p.content == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "From: %s\r\n", from)
	fmt.Fprintf(&out, "To: %s\r\n", msg.To)
	fmt.Fprintf(&out, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	out.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&out, "Content-Type: multipart/alternative; boundary=%q\r\n", mw.Boundary())
	out.WriteString("\r\n")
	out.Write(body.Bytes())
	return out.Bytes(), nil
}
