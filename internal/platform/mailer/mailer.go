// Package mailer delivers one-time codes and account notices over SMTP.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"
)

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Config holds the EMAIL_SERVICE / EMAIL_USER / EMAIL_PASS options.
// Service is either a well-known provider name ("gmail", "outlook") or a
// literal host:port.
type Config struct {
	Service string
	User    string
	Pass    string
}

// serviceHosts maps provider shorthand names to SMTP submission endpoints.
var serviceHosts = map[string]string{
	"gmail":   "smtp.gmail.com:587",
	"outlook": "smtp-mail.outlook.com:587",
	"yahoo":   "smtp.mail.yahoo.com:587",
}

// SMTPSender sends mail over SMTP. The transport configuration is resolved
// lazily on first send and cached; Clear drops the cache so a configuration
// change takes effect without a restart.
type SMTPSender struct {
	mu   sync.Mutex
	cfg  Config
	addr string
	auth smtp.Auth
}

// NewSMTPSender creates a sender for the given configuration.
func NewSMTPSender(cfg Config) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Configure replaces the sender configuration and clears the cached
// transporter.
func (s *SMTPSender) Configure(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.addr = ""
	s.auth = nil
}

// Clear drops the cached transporter; the next send rebuilds it.
func (s *SMTPSender) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addr = ""
	s.auth = nil
}

// transporter resolves and caches the SMTP address and auth.
func (s *SMTPSender) transporter() (string, smtp.Auth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.addr != "" {
		return s.addr, s.auth, nil
	}

	if s.cfg.User == "" || s.cfg.Pass == "" {
		return "", nil, fmt.Errorf("mailer: EMAIL_USER and EMAIL_PASS are required")
	}

	addr := s.cfg.Service
	if mapped, ok := serviceHosts[strings.ToLower(strings.TrimSpace(addr))]; ok {
		addr = mapped
	}
	if addr == "" {
		return "", nil, fmt.Errorf("mailer: EMAIL_SERVICE is required")
	}

	host := addr
	if i := strings.LastIndex(addr, ":"); i > 0 {
		host = addr[:i]
	} else {
		addr = addr + ":587"
	}

	s.addr = addr
	s.auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, host)
	return s.addr, s.auth, nil
}

// SendEmail sends a plain-text message. The context deadline bounds the
// attempt; SMTP send runs in a goroutine so a hung connection cannot outlive
// the enclosing orchestration.
func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	addr, auth, err := s.transporter()
	if err != nil {
		return err
	}

	msg := []byte("From: " + s.cfg.User + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		body + "\r\n")

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, s.cfg.User, []string{to}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mailer: send to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mailer: send to %s: %w", to, ctx.Err())
	}
}

// MockSender is a test double for EmailSender.
type MockSender struct {
	mu    sync.Mutex
	calls []EmailCall
	Err   error
}

// EmailCall records a single SendEmail invocation.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

func (m *MockSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	return nil
}

// Calls returns a snapshot of recorded sends.
func (m *MockSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}
