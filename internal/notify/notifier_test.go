// internal/notify/notifier_test.go
package notify

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitcoinco/grants-stack-sub000/internal/common/config"
	stderrors "github.com/gitcoinco/grants-stack-sub000/internal/common/errors"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/logger"
)

type fakeEmail struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeEmail) SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, input)
	return &ses.SendEmailOutput{}, f.err
}

type fakeSMS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSMS) Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, input)
	return &sns.PublishOutput{}, f.err
}

func testConfig(email, sms bool) config.NotificationConfig {
	var cfg config.NotificationConfig
	cfg.Email.Enabled = email
	cfg.Email.FromEmail = "noreply@example.com"
	cfg.Email.ToEmail = "ops@example.com"
	cfg.SMS.Enabled = sms
	cfg.SMS.ToPhone = "+15550100"
	cfg.AWS.Region = "us-east-1"
	return cfg
}

// ==========================
// Notifier Tests
// ==========================

func TestSubmissionSent_EmailAndSMS(t *testing.T) {
	email := &fakeEmail{}
	sms := &fakeSMS{}
	n := NewWithClients(testConfig(true, true), email, sms, logger.NewTestLogger(t))

	n.SubmissionSent(context.Background(), "0xRound", "0xProject", "0xTx")

	require.Len(t, email.inputs, 1)
	assert.Equal(t, "noreply@example.com", *email.inputs[0].Source)
	assert.Contains(t, *email.inputs[0].Message.Body.Text.Data, "0xTx")

	require.Len(t, sms.inputs, 1)
	assert.Equal(t, "+15550100", *sms.inputs[0].PhoneNumber)
}

func TestSubmissionFailed_IncludesErrorCode(t *testing.T) {
	email := &fakeEmail{}
	n := NewWithClients(testConfig(true, false), email, nil, logger.NewTestLogger(t))

	n.SubmissionFailed(context.Background(), "0xRound", "0xProject",
		stderrors.NewTransactionRevertedError("0xTx"))

	require.Len(t, email.inputs, 1)
	assert.Contains(t, *email.inputs[0].Message.Body.Text.Data, "TRANSACTION_REVERTED")
}

func TestDisabledChannelsStaySilent(t *testing.T) {
	email := &fakeEmail{}
	sms := &fakeSMS{}
	n := NewWithClients(testConfig(false, false), email, sms, logger.NewTestLogger(t))

	n.SubmissionSent(context.Background(), "0xRound", "0xProject", "0xTx")

	assert.Empty(t, email.inputs)
	assert.Empty(t, sms.inputs)
}

func TestDeliveryFailureDoesNotPanic(t *testing.T) {
	email := &fakeEmail{err: assert.AnError}
	sms := &fakeSMS{err: assert.AnError}
	n := NewWithClients(testConfig(true, true), email, sms, logger.NewTestLogger(t))

	assert.NotPanics(t, func() {
		n.SubmissionFailed(context.Background(), "0xRound", "0xProject", assert.AnError)
	})
}
