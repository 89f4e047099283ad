package service

import (
	"fmt"

	"github.com/vibast-solutions/ms-go-account/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Mailer delivers a single HTML message. The session service treats it as an
// external collaborator: registration dispatches best-effort, the password
// reset path blocks on it.
type Mailer interface {
	Send(to, subject, html string) error
}

type SMTPMailer struct {
	cfg *config.Config
}

func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(to, subject, html string) error {
	// Outside production, log instead of dialing SMTP.
	if !m.cfg.IsProduction() {
		logrus.WithFields(logrus.Fields{
			"to":      to,
			"subject": subject,
		}).Info("Email send skipped (non-production)")
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.SMTP.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	d := gomail.NewDialer(m.cfg.SMTP.Host, m.cfg.SMTP.Port, m.cfg.SMTP.User, m.cfg.SMTP.Pass)
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	logrus.WithField("to", to).Info("Email sent")
	return nil
}

func verificationEmailBody(verificationURL string) string {
	return fmt.Sprintf(`<p>Welcome! Please verify your email by clicking <a href="%s">here</a>.</p>
<p>This link will expire in 1 hour.</p>`, verificationURL)
}

func resetEmailBody(resetURL string) string {
	return fmt.Sprintf(`<p>You requested to reset your password. Click the link below to reset it:</p>
<a href="%s">Reset Password</a>
<p>This link will expire in 15 minutes.</p>
<p>If you didn't request this, please ignore this email.</p>`, resetURL)
}
