package transport

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/ignite/portal-mailer/internal/pkg/logger"
)

// SESMailer sends through AWS SES using the SDK v2.
type SESMailer struct {
	client   *sesv2.Client
	throttle *Throttle
}

// NewSESMailer creates an SES mailer with static credentials.
func NewSESMailer(accessKey, secretKey, region string, throttle *Throttle) (*SESMailer, error) {
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("init aws config: %w", err)
	}
	return &SESMailer{client: sesv2.NewFromConfig(cfg), throttle: throttle}, nil
}

// Send delivers a single email through SES.
func (m *SESMailer) Send(ctx context.Context, msg *Message) (*Result, error) {
	if m.throttle != nil && !m.throttle.Allow(ctx, "ses") {
		return &Result{Accepted: false, Reason: "provider rate limit exceeded"}, nil
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if msg.TextBody != "" {
		input.Content.Simple.Body.Text = &types.Content{Data: aws.String(msg.TextBody), Charset: aws.String("UTF-8")}
	}
	for k, v := range msg.Metadata {
		input.EmailTags = append(input.EmailTags, types.MessageTag{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}

	result, err := m.client.SendEmail(ctx, input)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("ses rejection", "recipient", msg.To, "reason", err.Error())
		return &Result{Accepted: false, Reason: err.Error()}, nil
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}
	return &Result{Accepted: true, MessageID: messageID}, nil
}
