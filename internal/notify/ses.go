package notify

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
	"github.com/samber/oops"

	"github.com/Kyz7/hcg-auth/internal/config"
)

// SESNotifier sends through Amazon SES. Credentials come from the usual AWS
// environment chain.
type SESNotifier struct {
	client sesiface.SESAPI
	from   string
}

func NewSESNotifier(client sesiface.SESAPI, from string) *SESNotifier {
	return &SESNotifier{client: client, from: from}
}

func NewSESNotifierFromConfig(cfg config.MailConfig) (*SESNotifier, error) {
	if cfg.From == "" {
		return nil, oops.Code("CONFIG_INVALID").With("key", "EMAIL_FROM").
			Errorf("EMAIL_FROM is required for the ses mail driver")
	}
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWSRegion),
	})
	if err != nil {
		return nil, oops.Code("NOTIFY_NOT_CONFIGURED").With("driver", "ses").Wrap(err)
	}
	return NewSESNotifier(ses.New(sess), cfg.From), nil
}

func (n *SESNotifier) Name() string { return "ses" }

func (n *SESNotifier) Send(ctx context.Context, msg Message) error {
	body := &ses.Body{}
	if msg.HTML != "" {
		body.Html = &ses.Content{Charset: aws.String("UTF-8"), Data: aws.String(msg.HTML)}
	}
	if msg.Text != "" {
		body.Text = &ses.Content{Charset: aws.String("UTF-8"), Data: aws.String(msg.Text)}
	}

	_, err := n.client.SendEmailWithContext(ctx, &ses.SendEmailInput{
		Source:      aws.String(n.from),
		Destination: &ses.Destination{ToAddresses: []*string{aws.String(msg.To)}},
		Message: &ses.Message{
			Subject: &ses.Content{Charset: aws.String("UTF-8"), Data: aws.String(msg.Subject)},
			Body:    body,
		},
	})
	if err != nil {
		return oops.Code("DELIVERY_FAILED").With("driver", "ses").Wrap(err)
	}
	return nil
}
