package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/resend/resend-go/v2"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
	pkglogger "github.com/lalithsaicharan00/cloud-storage-api/pkg/logger"
)

// EmailKind selects the template for a one-time code email.
type EmailKind string

const (
	EmailVerifyAccount EmailKind = "verify_account"
	EmailPasswordReset EmailKind = "password_reset"
	EmailChangeConfirm EmailKind = "email_change"
)

// EmailKindFor maps an OTP purpose to the email that delivers its code.
func EmailKindFor(purpose models.OTPPurpose) EmailKind {
	switch purpose {
	case models.OTPPasswordReset:
		return EmailPasswordReset
	case models.OTPEmailChange:
		return EmailChangeConfirm
	default:
		return EmailVerifyAccount
	}
}

// EmailMessage is a single code delivery.
type EmailMessage struct {
	To        string
	Kind      EmailKind
	Code      string
	ExpiresAt time.Time
}

// EmailService defines the interface for sending emails
type EmailService interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// Notifier hands a message off for delivery without waiting on the
// provider. Implementations must not block the request path.
type Notifier interface {
	Notify(ctx context.Context, msg EmailMessage)
}

type emailContent struct {
	Subject string
	HTML    string
	Text    string
}

var emailSubjects = map[EmailKind]string{
	EmailVerifyAccount: "Verify Your Email Address",
	EmailPasswordReset: "Your Password Reset Code",
	EmailChangeConfirm: "Confirm Your New Email Address",
}

var emailIntros = map[EmailKind]string{
	EmailVerifyAccount: "Thanks for signing up. Enter this code to verify your email address.",
	EmailPasswordReset: "We received a request to reset your password. Enter this code to choose a new one.",
	EmailChangeConfirm: "Enter this code to confirm this address as the new email for your account.",
}

var htmlTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px; }
        .code { font-size: 32px; letter-spacing: 8px; font-weight: bold; text-align: center; padding: 16px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h2>{{.Subject}}</h2></div>
        <p>{{.Intro}}</p>
        <div class="code">{{.Code}}</div>
        <p>This code expires in {{.Minutes}} minutes.</p>
        <div class="footer">If you did not request this, you can ignore this email.</div>
    </div>
</body>
</html>`))

func renderEmail(msg EmailMessage, now time.Time) (emailContent, error) {
	subject, ok := emailSubjects[msg.Kind]
	if !ok {
		return emailContent{}, fmt.Errorf("unknown email kind %q", msg.Kind)
	}
	minutes := int(msg.ExpiresAt.Sub(now).Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	var buf bytes.Buffer
	err := htmlTemplate.Execute(&buf, map[string]any{
		"Subject": subject,
		"Intro":   emailIntros[msg.Kind],
		"Code":    msg.Code,
		"Minutes": minutes,
	})
	if err != nil {
		return emailContent{}, fmt.Errorf("failed to render email: %w", err)
	}

	text := fmt.Sprintf("%s\n\n%s\n\nYour code: %s\n\nThis code expires in %d minutes.\n",
		subject, emailIntros[msg.Kind], msg.Code, minutes)
	return emailContent{Subject: subject, HTML: buf.String(), Text: text}, nil
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

func (s *AWSSESEmailService) Send(ctx context.Context, msg EmailMessage) error {
	content, err := renderEmail(msg, time.Now())
	if err != nil {
		return err
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(content.Subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(content.HTML), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(content.Text), Charset: aws.String("UTF-8")},
			},
		},
	}

	out, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email via SES: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("kind", string(msg.Kind)),
		slog.String("to", pkglogger.SanitizedEmail(msg.To)),
		slog.String("message_id", aws.ToString(out.MessageId)),
	)
	return nil
}

// ResendEmailService sends emails through the Resend API.
type ResendEmailService struct {
	client      *resend.Client
	fromAddress string
	logger      *slog.Logger
}

func NewResendEmailService(apiKey, fromAddress string, logger *slog.Logger) *ResendEmailService {
	return &ResendEmailService{
		client:      resend.NewClient(apiKey),
		fromAddress: fromAddress,
		logger:      logger,
	}
}

func (s *ResendEmailService) Send(ctx context.Context, msg EmailMessage) error {
	content, err := renderEmail(msg, time.Now())
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.fromAddress,
		To:      []string{msg.To},
		Subject: content.Subject,
		Html:    content.HTML,
		Text:    content.Text,
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send email via resend: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("kind", string(msg.Kind)),
		slog.String("to", pkglogger.SanitizedEmail(msg.To)),
		slog.String("message_id", sent.Id),
	)
	return nil
}

// LogEmailService writes emails to the logger instead of sending them. Used
// in development.
type LogEmailService struct {
	logger *slog.Logger
}

func NewLogEmailService(logger *slog.Logger) *LogEmailService {
	return &LogEmailService{logger: logger}
}

func (s *LogEmailService) Send(ctx context.Context, msg EmailMessage) error {
	content, err := renderEmail(msg, time.Now())
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "email sent (dev mode)",
		slog.String("kind", string(msg.Kind)),
		slog.String("to", msg.To),
		slog.String("subject", content.Subject),
		slog.String("code", msg.Code),
	)
	return nil
}
