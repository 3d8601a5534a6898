// internal/common/aws/sns.go
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSClient delivers the submission-outcome SMS messages.
type SNSClient struct {
	sns *sns.Client
}

// NewSNSClient builds an SNS client for the given region using the default
// credential chain.
func NewSNSClient(ctx context.Context, region string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSClient{sns: sns.NewFromConfig(cfg)}, nil
}

// Publish forwards one SMS publish call to SNS.
func (c *SNSClient) Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	return c.sns.Publish(ctx, input)
}
