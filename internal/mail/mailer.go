package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Mailer is the outbound-mail capability the account service calls. Delivery
// is somebody else's problem; the service only hands over address and token.
type Mailer interface {
	SendResetPassword(ctx context.Context, address, token string) error
	SendVerification(ctx context.Context, address, token string) error
}

// SMTPMailer delivers through a plain SMTP relay.
type SMTPMailer struct {
	Addr         string // host:port
	From         string
	User         string
	Password     string
	ResetURLBase string
}

func (m *SMTPMailer) SendResetPassword(ctx context.Context, address, token string) error {
	link := token
	if m.ResetURLBase != "" {
		link = strings.TrimRight(m.ResetURLBase, "/") + "/reset-password/" + token
	}
	body := "Use the link below to reset your password. It expires in one hour.\r\n\r\n" + link + "\r\n"
	return m.send(address, "Password reset", body)
}

func (m *SMTPMailer) SendVerification(ctx context.Context, address, token string) error {
	link := token
	if m.ResetURLBase != "" {
		link = strings.TrimRight(m.ResetURLBase, "/") + "/verify/" + token
	}
	body := "Confirm your email address by opening the link below.\r\n\r\n" + link + "\r\n"
	return m.send(address, "Verify your email", body)
}

func (m *SMTPMailer) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.From, to, subject, body)

	var auth smtp.Auth
	if m.User != "" {
		host := m.Addr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", m.User, m.Password, host)
	}
	if err := smtp.SendMail(m.Addr, auth, m.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// LogMailer is the dev fallback when no SMTP relay is configured: tokens go
// to the log instead of a mailbox.
type LogMailer struct {
	Log *slog.Logger
}

func (m *LogMailer) SendResetPassword(ctx context.Context, address, token string) error {
	m.Log.Info("mail_skipped", "kind", "reset_password", "to", address, "token", token)
	return nil
}

func (m *LogMailer) SendVerification(ctx context.Context, address, token string) error {
	m.Log.Info("mail_skipped", "kind", "verify_email", "to", address, "token", token)
	return nil
}
