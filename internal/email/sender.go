package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog/log"

	"github.com/parallax/reboot-hackathon-2025/internal/config"
)

// TemplateHeader carries the template id of a rendered message so mock
// senders can file it without parsing the body.
const TemplateHeader = "X-Swapable-Template"

// Sender defines the interface for sending emails.
// rawMessage is the complete RFC 5322 message, headers included.
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

// SMTPSender implements Sender using net/smtp.
type SMTPSender struct {
	cfg  *config.Config
	auth smtp.Auth
	addr string
}

// NewSMTPSender returns an SMTP sender, or a LoggingSender when no SMTP host is configured.
func NewSMTPSender(cfg *config.Config) Sender {
	if cfg.SmtpHost == "" {
		log.Info().Msg("SMTP host not configured, using logging email sender")
		return &LoggingSender{cfg: cfg}
	}

	auth := smtp.PlainAuth("", cfg.SmtpUsername, cfg.SmtpPassword, cfg.SmtpHost)
	addr := fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort)

	return &SMTPSender{
		cfg:  cfg,
		auth: auth,
		addr: addr,
	}
}

// Send sends an email using SMTP.
func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	from, err := envelopeFrom(s.cfg.SmtpFromAddress)
	if err != nil {
		return err
	}
	if err := smtp.SendMail(s.addr, s.auth, from, to, rawMessage); err != nil {
		log.Error().Err(err).Strs("to", to).Msg("Failed to send email via SMTP")
		return fmt.Errorf("smtp error: %w", err)
	}
	log.Info().Strs("to", to).Str("subject", subject).Msg("Email sent via SMTP")
	return nil
}

// LoggingSender just logs the message. Used when SMTP isn't configured.
type LoggingSender struct {
	cfg *config.Config
}

// Send logs the email details instead of sending.
func (s *LoggingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	log.Info().
		Strs("to", to).
		Str("from", s.cfg.SmtpFromAddress).
		Str("subject", subject).
		Str("raw", string(rawMessage)).
		Msg("Email (logged, not sent)")
	return nil
}
