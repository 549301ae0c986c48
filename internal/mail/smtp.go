// Package mail delivers plain-text email over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Config describes the SMTP relay.
type Config struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	RatePerMinute int
}

type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends messages through an SMTP relay, throttled to the
// configured rate.
type SMTPSender struct {
	addr    string
	from    string
	auth    smtp.Auth
	limiter *rate.Limiter
	send    sendFunc
	now     func() time.Time
}

// NewSMTPSender constructs a sender. A non-positive rate disables throttling.
func NewSMTPSender(cfg Config) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("mail: smtp host required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("mail: from address required")
	}
	if cfg.Port == 0 {
		cfg.Port = 25
	}
	limit := rate.Inf
	burst := 1
	if cfg.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RatePerMinute))
		burst = cfg.RatePerMinute
	}
	s := &SMTPSender{
		addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from:    cfg.From,
		limiter: rate.NewLimiter(limit, burst),
		send:    smtp.SendMail,
		now:     time.Now,
	}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s, nil
}

// Send delivers one message, waiting for the rate limiter first.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	to = strings.TrimSpace(to)
	if to == "" || strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("mail: invalid recipient %q", to)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("mail: throttle: %w", err)
	}
	msg := s.compose(to, subject, body)
	if err := s.send(s.addr, s.auth, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	return nil
}

func (s *SMTPSender) compose(to, subject, body string) []byte {
	subject = strings.NewReplacer("\r", " ", "\n", " ").Replace(subject)
	var b strings.Builder
	b.WriteString("From: " + s.from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: " + s.now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
