// Package mailer sends transactional mail for the password-reset flow.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"flatnest/internal/config"
)

// Mailer delivers transactional mail.
type Mailer interface {
	SendPasswordReset(to, token string) error
}

type smtpMailer struct {
	host string
	port string
	user string
	pass string
	from string
}

// NewSMTPMailer builds a Mailer from the SMTP section of the config.
func NewSMTPMailer(cfg *config.Config) Mailer {
	return &smtpMailer{
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPass,
		from: cfg.MailFrom,
	}
}

func (m *smtpMailer) SendPasswordReset(to, token string) error {
	subject := "Reset your password"
	body := fmt.Sprintf(
		"A password reset was requested for your account.\r\n\r\n"+
			"Use this token to set a new password: %s\r\n\r\n"+
			"The token expires in 30 minutes. If you did not request a reset, ignore this mail.\r\n",
		token,
	)

	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := m.host + ":" + m.port
	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}
	return smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg))
}
