package mail

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/mfdeleon/go-privchat/internal/config"
)

// Mailer delivers one-time-password emails during account verification.
type Mailer interface {
	SendOTP(to, name, code string) error
}

type SMTPMailer struct {
	cfg config.SMTPConfig
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) SendOTP(to, name, code string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	msg := buildOTPMessage(m.cfg.From, to, name, code)
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	return nil
}

func buildOTPMessage(from, to, name, code string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Your verification code\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Hi %s,\r\n\r\n", name)
	fmt.Fprintf(&b, "Your verification code is %s. It expires shortly, so enter it soon.\r\n", code)

	return []byte(b.String())
}

// LogMailer writes codes to the log instead of sending mail. Used when
// no SMTP host is configured, e.g. local development.
type LogMailer struct {
	log *log.Logger
}

func NewLogMailer(logger *log.Logger) *LogMailer {
	return &LogMailer{log: logger}
}

func (m *LogMailer) SendOTP(to, name, code string) error {
	m.log.Printf("otp for %s <%s>: %s", name, to, code)
	return nil
}
