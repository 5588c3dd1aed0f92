package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/garageroute/services/workshop/config"
)

// Mailer sends customer-facing notification emails.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer implements Mailer over plain SMTP.
type SMTPMailer struct {
	cfg config.MailConfig
}

// NewMailer creates a mailer from config. When mail delivery is disabled the
// returned mailer logs instead of sending.
func NewMailer(cfg config.MailConfig) Mailer {
	if !cfg.Enabled {
		return &noopMailer{}
	}
	return &SMTPMailer{cfg: cfg}
}

// Send delivers a plain-text email
func (m *SMTPMailer) Send(to, subject, body string) error {
	if to == "" {
		return errors.New("recipient address is empty")
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg.String())); err != nil {
		return errors.Wrap(err, "failed to send mail")
	}
	return nil
}

type noopMailer struct{}

func (n *noopMailer) Send(to, subject, _ string) error {
	log.Info().Str("to", to).Str("subject", subject).Msg("mail delivery disabled, skipping")
	return nil
}
