package mailer

import (
	"strings"
	"testing"
)

func TestOTPSubject(t *testing.T) {
	cases := []struct {
		purpose string
		want    string
	}{
		{"password_reset", "Your password reset code"},
		{"registration", "Verify your email address"},
		{"email_verification", "Verify your email address"},
		{"login", "Your login verification code"},
		{"", "Your login verification code"},
	}
	for _, tc := range cases {
		if got := OTPSubject(tc.purpose); got != tc.want {
			t.Errorf("OTPSubject(%q) = %q, want %q", tc.purpose, got, tc.want)
		}
	}
}

func TestOTPBodyCarriesCodeAndTTL(t *testing.T) {
	body := OTPBody("login", "123456", 10)
	if !strings.Contains(body, "123456") {
		t.Error("code missing from body")
	}
	if !strings.Contains(body, "10 minutes") {
		t.Error("ttl missing from body")
	}

	reset := OTPBody("password_reset", "654321", 5)
	if !strings.Contains(reset, "reset your password") {
		t.Error("reset body lacks reset wording")
	}
	if !strings.Contains(reset, "5 minutes") {
		t.Error("reset ttl missing")
	}
}

func TestSMTPSenderRequiresConfig(t *testing.T) {
	s := NewSMTPSender(Config{})
	if _, _, err := s.transporter(); err == nil {
		t.Error("empty config accepted")
	}

	s.Configure(Config{Service: "gmail", User: "clinic@example.com", Pass: "secret"})
	addr, auth, err := s.transporter()
	if err != nil {
		t.Fatalf("transporter: %v", err)
	}
	if addr != "smtp.gmail.com:587" {
		t.Errorf("addr = %q", addr)
	}
	if auth == nil {
		t.Error("auth not built")
	}
}

func TestSMTPSenderResolvesHostPort(t *testing.T) {
	s := NewSMTPSender(Config{Service: "mail.internal.test", User: "u", Pass: "p"})
	addr, _, err := s.transporter()
	if err != nil {
		t.Fatalf("transporter: %v", err)
	}
	// A bare host gets the submission port appended.
	if addr != "mail.internal.test:587" {
		t.Errorf("addr = %q", addr)
	}

	s.Configure(Config{Service: "mail.internal.test:2525", User: "u", Pass: "p"})
	addr, _, err = s.transporter()
	if err != nil {
		t.Fatalf("transporter: %v", err)
	}
	if addr != "mail.internal.test:2525" {
		t.Errorf("addr = %q", addr)
	}
}
