// Package notify delivers user-facing messages such as password reset codes.
package notify

import (
	"context"
	"strings"

	"github.com/samber/oops"
	"go.uber.org/zap"

	"github.com/Kyz7/hcg-auth/internal/config"
)

// Message is one email. Text is the plain-text alternative of HTML.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// New picks the notifier named by cfg.Driver.
func New(cfg config.MailConfig, log *zap.Logger) (Notifier, error) {
	switch strings.ToLower(cfg.Driver) {
	case "smtp":
		return NewSMTPNotifier(cfg), nil
	case "ses":
		return NewSESNotifierFromConfig(cfg)
	case "log", "":
		return NewLogNotifier(log), nil
	default:
		return nil, oops.Code("CONFIG_INVALID").With("key", "MAIL_DRIVER").
			Errorf("unsupported mail driver %q", cfg.Driver)
	}
}
