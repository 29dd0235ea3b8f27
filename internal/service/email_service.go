package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"familytasks/internal/models"
)

// sesAPI is the part of the SES client the email service uses
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService handles sending emails via Amazon SES
type EmailService struct {
	client     sesAPI
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	logger     *zap.Logger
}

// NewEmailService creates a new email service. An empty fromEmail yields a
// disabled service that logs and skips every send.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName, appBaseURL string, logger *zap.Logger) (*EmailService, error) {
	logger = orNop(logger).Named("email")

	if fromEmail == "" {
		logger.Info("Email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false, appBaseURL: appBaseURL, logger: logger}, nil
	}

	logger.Debug("Initializing email service with AWS SES",
		zap.String("region", awsRegion),
		zap.String("from_email", fromEmail),
		zap.String("from_name", fromName),
		zap.String("app_base_url", appBaseURL),
	)

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("Email service enabled", zap.String("from", fromEmail), zap.String("region", awsRegion))
	return newEmailService(sesv2.NewFromConfig(cfg), fromEmail, fromName, appBaseURL, logger), nil
}

func newEmailService(client sesAPI, fromEmail, fromName, appBaseURL string, logger *zap.Logger) *EmailService {
	return &EmailService{
		client:     client,
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
		enabled:    true,
		logger:     orNop(logger),
	}
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

const emailStyle = `
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #4a90e2; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.button { display: inline-block; padding: 12px 30px; background-color: #4a90e2; color: white; text-decoration: none; border-radius: 5px; margin: 20px 0; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }`

func htmlPage(title, content string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>%s
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>%s</h1>
		</div>
		<div class="content">
%s
		</div>
		<div class="footer">
			<p>This is an automated email from Family Tasks. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`, emailStyle, html.EscapeString(title), content)
}

// SendGroupInvitation tells the invitee about a pending invitation
func (s *EmailService) SendGroupInvitation(ctx context.Context, inv *models.Invitation, inviter *models.User) error {
	if !s.enabled {
		s.logger.Info("Skipping email send (service disabled)", zap.String("kind", "invitation"), zap.String("to", inv.InviteeEmail))
		return nil
	}

	inviterName := inviter.DisplayName()
	if inviterName == "" {
		inviterName = "A family member"
	}
	groupName := inv.GroupName
	if groupName == "" {
		groupName = "a family group"
	}
	link := s.appBaseURL + "/invitations"

	subject := fmt.Sprintf("%s invited you to join %s", inviterName, groupName)
	htmlBody := htmlPage("You're Invited!", fmt.Sprintf(`
			<p>Hi,</p>
			<p><strong>%s</strong> invited you to join the family group <strong>%s</strong> on Family Tasks.</p>
			<p>Sign in with this email address to accept or decline the invitation:</p>
			<p style="text-align: center;">
				<a href="%s" class="button">View Invitation</a>
			</p>`,
		html.EscapeString(inviterName), html.EscapeString(groupName), html.EscapeString(link)))

	textBody := fmt.Sprintf(`Hi,

%s invited you to join the family group %s on Family Tasks.

Sign in with this email address to accept or decline the invitation:
%s

---
This is an automated email from Family Tasks. Please do not reply.
`, inviterName, groupName, link)

	return s.sendEmail(ctx, inv.InviteeEmail, subject, htmlBody, textBody)
}

// SendDueDigest lists the tasks due on day
func (s *EmailService) SendDueDigest(ctx context.Context, user *models.User, tasks []models.Task, day time.Time) error {
	if !s.enabled {
		s.logger.Info("Skipping email send (service disabled)", zap.String("kind", "digest"), zap.String("to", user.Email))
		return nil
	}

	date := day.Format("Monday, January 2")
	subject := fmt.Sprintf("Tasks due %s", date)

	var items, lines strings.Builder
	for _, t := range tasks {
		where := "Personal"
		if t.GroupName != "" {
			where = t.GroupName
		}
		fmt.Fprintf(&items, "\t\t\t\t<li><strong>%s</strong> (%s, %s priority)</li>\n",
			html.EscapeString(t.Title), html.EscapeString(where), t.Priority)
		fmt.Fprintf(&lines, "- %s (%s, %s priority)\n", t.Title, where, t.Priority)
	}

	name := user.DisplayName()
	htmlBody := htmlPage("Due Today", fmt.Sprintf(`
			<p>Hi %s,</p>
			<p>You have %d task(s) due %s:</p>
			<ul>
%s			</ul>
			<p style="text-align: center;">
				<a href="%s/tasks" class="button">Open Tasks</a>
			</p>`,
		html.EscapeString(name), len(tasks), html.EscapeString(date), items.String(), html.EscapeString(s.appBaseURL)))

	textBody := fmt.Sprintf(`Hi %s,

You have %d task(s) due %s:
%s
Open your tasks: %s/tasks

---
This is an automated email from Family Tasks. Please do not reply.
`, name, len(tasks), date, lines.String(), s.appBaseURL)

	return s.sendEmail(ctx, user.Email, subject, htmlBody, textBody)
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	s.logger.Debug("Calling SES SendEmail API",
		zap.String("to", toEmail),
		zap.String("subject", subject),
		zap.Int("html_bytes", len(htmlBody)),
		zap.Int("text_bytes", len(textBody)),
	)

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	fields := []zap.Field{zap.String("to", toEmail), zap.String("subject", subject)}
	if result != nil && result.MessageId != nil {
		fields = append(fields, zap.String("message_id", *result.MessageId))
	}
	s.logger.Info("Email sent successfully", fields...)
	return nil
}
