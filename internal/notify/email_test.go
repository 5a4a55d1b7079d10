package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/rs/zerolog"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSendGrid struct {
	sent     []*mail.SGMailV3
	response *rest.Response
	err      error
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, email)
	return f.response, f.err
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestNewSendGridSenderNilWithoutAPIKey(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{FromEmail: "no-reply@clinic.test"}, zerolog.Nop()))
}

func TestNewSendGridSenderDefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "key", FromEmail: "no-reply@clinic.test"}, zerolog.Nop())
	require.NotNil(t, sender)
	assert.Equal(t, defaultFromName, sender.fromName)
}

func TestSendGridSenderSend(t *testing.T) {
	fake := &fakeSendGrid{response: &rest.Response{StatusCode: 202}}
	sender := &SendGridSender{client: fake, fromEmail: "no-reply@clinic.test", fromName: "Clinic", logger: zerolog.Nop()}

	err := sender.Send(context.Background(), EmailMessage{To: "pat@example.test", Subject: "Hi", Body: "plain"})
	require.NoError(t, err)
	require.Len(t, fake.sent, 1)
	assert.Equal(t, "Hi", fake.sent[0].Subject)
	assert.Equal(t, "no-reply@clinic.test", fake.sent[0].From.Address)
}

func TestSendGridSenderErrorStatus(t *testing.T) {
	fake := &fakeSendGrid{response: &rest.Response{StatusCode: 401, Body: "unauthorized"}}
	sender := &SendGridSender{client: fake, logger: zerolog.Nop()}

	err := sender.Send(context.Background(), EmailMessage{To: "pat@example.test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSendGridSenderNilClient(t *testing.T) {
	err := (&SendGridSender{}).Send(context.Background(), EmailMessage{To: "pat@example.test"})
	assert.Error(t, err)
}

func TestSESSenderSend(t *testing.T) {
	fake := &fakeSES{}
	sender := newSESSender(fake, SESConfig{FromEmail: "no-reply@clinic.test"}, zerolog.Nop())

	err := sender.Send(context.Background(), EmailMessage{To: "pat@example.test", Subject: "Hi", Body: "plain", HTML: "<p>hi</p>"})
	require.NoError(t, err)

	require.NotNil(t, fake.input)
	assert.Equal(t, "Clinic Portal <no-reply@clinic.test>", aws.ToString(fake.input.FromEmailAddress))
	assert.Equal(t, []string{"pat@example.test"}, fake.input.Destination.ToAddresses)
	assert.Equal(t, "plain", aws.ToString(fake.input.Content.Simple.Body.Text.Data))
	assert.Equal(t, "<p>hi</p>", aws.ToString(fake.input.Content.Simple.Body.Html.Data))
}

func TestSESSenderError(t *testing.T) {
	sender := newSESSender(&fakeSES{err: errors.New("throttled")}, SESConfig{}, zerolog.Nop())
	err := sender.Send(context.Background(), EmailMessage{To: "pat@example.test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestNewSESSenderNilClient(t *testing.T) {
	assert.Nil(t, NewSESSender(nil, SESConfig{}, zerolog.Nop()))
}
