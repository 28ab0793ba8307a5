package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/folio/backend/internal/logging"
)

const defaultRegion = "us-east-1"

// SESConfig holds the SES credentials and sender address.
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	From            string
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer sends email through AWS SES v2.
type SESMailer struct {
	client sesAPI
	from   string
}

// NewSESMailer builds an SES client from static credentials. Missing
// credentials or sender yield an unconfigured mailer, not an error.
func NewSESMailer(ctx context.Context, cfg SESConfig) (*SESMailer, error) {
	m := &SESMailer{from: cfg.From}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.From == "" {
		return m, nil
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	m.client = sesv2.NewFromConfig(awsCfg)
	return m, nil
}

func (m *SESMailer) Configured() bool {
	return m.client != nil && m.from != ""
}

func (m *SESMailer) Send(ctx context.Context, e Email) error {
	if !m.Configured() {
		return ErrNotConfigured
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from),
		Destination:      &types.Destination{ToAddresses: []string{e.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(e.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(e.HTML), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if e.Text != "" {
		input.Content.Simple.Body.Text = &types.Content{Data: aws.String(e.Text), Charset: aws.String("UTF-8")}
	}
	if e.ReplyTo != "" {
		input.ReplyToAddresses = []string{e.ReplyTo}
	}

	out, err := m.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}

	messageID := ""
	if out.MessageId != nil {
		messageID = *out.MessageId
	}
	slog.Debug("ses email sent", "to", logging.RedactEmail(e.To), "message_id", messageID)
	return nil
}
