// internal/notify/notifier.go

// Package notify announces terminal submission states over SES email and
// SNS SMS. Delivery is best effort; a failed notification never changes the
// submission outcome.
package notify

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/gitcoinco/grants-stack-sub000/internal/common/aws"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/config"
	stderrors "github.com/gitcoinco/grants-stack-sub000/internal/common/errors"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/logger"
)

// EmailSender sends one email. *aws.SESClient satisfies it.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SMSSender publishes one SMS. *aws.SNSClient satisfies it.
type SMSSender interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// Notifier fans terminal-state events out to the configured channels.
type Notifier struct {
	cfg    config.NotificationConfig
	email  EmailSender
	sms    SMSSender
	logger logger.Logger
}

// New builds a notifier from config, constructing AWS clients only for the
// enabled channels.
func New(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*Notifier, error) {
	n := &Notifier{cfg: cfg, logger: log}

	if cfg.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, stderrors.NewNotificationSendFailedError("email", err)
		}
		n.email = sesClient
	}
	if cfg.SMS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, stderrors.NewNotificationSendFailedError("sms", err)
		}
		n.sms = snsClient
	}
	return n, nil
}

// NewWithClients injects senders directly; used in tests.
func NewWithClients(cfg config.NotificationConfig, email EmailSender, sms SMSSender, log logger.Logger) *Notifier {
	return &Notifier{cfg: cfg, email: email, sms: sms, logger: log}
}

// SubmissionSent announces a completed submission.
func (n *Notifier) SubmissionSent(ctx context.Context, roundID, projectID, txHash string) {
	subject := "Application submitted"
	body := fmt.Sprintf("Project %s applied to round %s.\nTransaction: %s", projectID, roundID, txHash)
	n.deliver(ctx, subject, body)
}

// SubmissionFailed announces a failed submission with its error.
func (n *Notifier) SubmissionFailed(ctx context.Context, roundID, projectID string, cause error) {
	stdErr := stderrors.Normalize(cause)
	subject := "Application submission failed"
	body := fmt.Sprintf("Project %s failed to apply to round %s.\nError %s: %s",
		projectID, roundID, stdErr.Code, stdErr.Message)
	n.deliver(ctx, subject, body)
}

func (n *Notifier) deliver(ctx context.Context, subject, body string) {
	if n.cfg.Email.Enabled && n.email != nil {
		if err := n.sendEmail(ctx, subject, body); err != nil {
			n.logger.Warn("email notification failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	if n.cfg.SMS.Enabled && n.sms != nil {
		if err := n.sendSMS(ctx, subject); err != nil {
			n.logger.Warn("sms notification failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

func (n *Notifier) sendEmail(ctx context.Context, subject, body string) error {
	_, err := n.email.SendEmail(ctx, &ses.SendEmailInput{
		Source: sdkaws.String(n.cfg.Email.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{n.cfg.Email.ToEmail},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: sdkaws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: sdkaws.String(body)},
			},
		},
	})
	if err != nil {
		return stderrors.NewNotificationSendFailedError("email", err)
	}
	return nil
}

func (n *Notifier) sendSMS(ctx context.Context, message string) error {
	_, err := n.sms.Publish(ctx, &sns.PublishInput{
		PhoneNumber: sdkaws.String(n.cfg.SMS.ToPhone),
		Message:     sdkaws.String(message),
	})
	if err != nil {
		return stderrors.NewNotificationSendFailedError("sms", err)
	}
	return nil
}
