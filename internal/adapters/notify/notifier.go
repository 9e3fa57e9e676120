package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/leadline-ai/leadline-voice-service/pkg/logger"
	twilio "github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// Notifier is the outbound alert boundary. Both methods return the
// provider's message id when one is available. Callers record outcomes but
// never block call flow on delivery.
type Notifier interface {
	SendEmail(ctx context.Context, to, subject, body string) (string, error)
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// Config configures the SMTP and Twilio channels. Empty SMTPHost disables
// email; empty TwilioAccountSID disables SMS.
type Config struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

type Service struct {
	config       Config
	twilioClient *twilio.RestClient
}

func NewService(config Config) *Service {
	s := &Service{config: config}
	if config.TwilioAccountSID != "" && config.TwilioAuthToken != "" {
		s.twilioClient = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: config.TwilioAccountSID,
			Password: config.TwilioAuthToken,
		})
	}
	return s
}

// SendEmail delivers a plain-text email over SMTP.
func (s *Service) SendEmail(ctx context.Context, to, subject, body string) (string, error) {
	if s.config.SMTPHost == "" {
		return "", fmt.Errorf("email channel is not configured")
	}

	msg := strings.Join([]string{
		"From: " + s.config.EmailFrom,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)
	var auth smtp.Auth
	if s.config.SMTPUser != "" {
		auth = smtp.PlainAuth("", s.config.SMTPUser, s.config.SMTPPassword, s.config.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, s.config.EmailFrom, []string{to}, []byte(msg)); err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	logger.Base().Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return "", nil
}

// SendSMS delivers a text message through Twilio.
func (s *Service) SendSMS(ctx context.Context, to, body string) (string, error) {
	if s.twilioClient == nil {
		return "", fmt.Errorf("sms channel is not configured")
	}

	params := &api.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.config.TwilioFromNumber)
	params.SetBody(body)

	resp, err := s.twilioClient.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("failed to send sms: %w", err)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	logger.Base().Info("sms sent", zap.String("to", to), zap.String("message_sid", sid))
	return sid, nil
}
