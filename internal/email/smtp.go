package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"hiddo/internal/config"
)

const (
	smtpTimeout = 30 * time.Second
)

// Sender delivers verification codes. Dispatch failures are the caller's to
// log; they must never be surfaced to API clients.
type Sender interface {
	SendVerificationCode(to, code string, ttl time.Duration) error
	SendLoginCode(to, code string, ttl time.Duration) error
}

// NewSender returns an SMTP-backed sender when a host is configured and a
// logging simulator otherwise, so the signup flow works without a provider.
func NewSender(cfg config.SMTPConfig) Sender {
	if cfg.Host == "" {
		return &LogSender{}
	}
	return NewSMTPSender(cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.From)
}

type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (s *SMTPSender) SendVerificationCode(to, code string, ttl time.Duration) error {
	subject := "Verify your Hiddo email"
	body := fmt.Sprintf(`Hello!

Your Hiddo verification code is:

    %s

This code will expire in %s.

If you didn't sign up for Hiddo, you can safely ignore this email.

- The Hiddo Team`, code, formatTTL(ttl))

	return s.send(to, subject, body)
}

func (s *SMTPSender) SendLoginCode(to, code string, ttl time.Duration) error {
	subject := "Your Hiddo Login Code"
	body := fmt.Sprintf(`Hello!

Your login code for Hiddo is:

    %s

This code will expire in %d minutes.

If you didn't request this email, you can safely ignore it.

- The Hiddo Team`, code, int(ttl.Minutes()))

	return s.send(to, subject, body)
}

func formatTTL(ttl time.Duration) string {
	if ttl >= time.Hour {
		return fmt.Sprintf("%d hours", int(ttl.Hours()))
	}
	return fmt.Sprintf("%d minutes", int(ttl.Minutes()))
}

func (s *SMTPSender) send(to, subject, body string) error {
	msg := s.buildMessage(to, subject, body)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	ctx, cancel := context.WithTimeout(context.Background(), smtpTimeout)
	defer cancel()

	dialer := net.Dialer{Timeout: smtpTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connecting to SMTP server: %w", err)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsCfg := &tls.Config{ServerName: s.host}
		if err := client.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("STARTTLS: %w", err)
		}
	} else if s.port != 25 && s.port != 1025 {
		return fmt.Errorf("STARTTLS not available on port %d (required for secure auth)", s.port)
	}

	if s.username != "" && s.password != "" {
		auth := smtp.PlainAuth("", s.username, s.password, s.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication: %w", err)
		}
	}

	if err := client.Mail(s.from); err != nil {
		return fmt.Errorf("SMTP MAIL command: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT command: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA command: %w", err)
	}

	_, err = wc.Write([]byte(msg))
	if err != nil {
		wc.Close()
		return fmt.Errorf("writing email body: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	if err := client.Quit(); err != nil {
		slog.Warn("smtp QUIT command failed", "component", "email", "error", err)
	}

	return nil
}

func (s *SMTPSender) buildMessage(to, subject, body string) string {
	return fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s",
		s.from, to, subject, body)
}

// LogSender simulates delivery by logging the code. It always reports success.
type LogSender struct{}

func (s *LogSender) SendVerificationCode(to, code string, ttl time.Duration) error {
	slog.Info("simulated verification email", "component", "email", "to", to, "code", code, "ttl", ttl.String())
	return nil
}

func (s *LogSender) SendLoginCode(to, code string, ttl time.Duration) error {
	slog.Info("simulated login email", "component", "email", "to", to, "code", code, "ttl", ttl.String())
	return nil
}
