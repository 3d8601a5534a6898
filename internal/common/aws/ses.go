// internal/common/aws/ses.go

// Package aws holds the AWS SDK v2 client constructors used by the
// notification channels. Credentials and region come from the default
// provider chain, so the rest of the tree never touches SDK configuration.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
)

// SESClient delivers the submission-outcome emails.
type SESClient struct {
	ses *ses.Client
}

// NewSESClient builds an SES client for the given region using the default
// credential chain.
func NewSESClient(ctx context.Context, region string) (*SESClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SESClient{ses: ses.NewFromConfig(cfg)}, nil
}

// SendEmail forwards one email to SES. The notifier owns retry and
// best-effort semantics; this layer only transports.
func (c *SESClient) SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	return c.ses.SendEmail(ctx, input)
}
