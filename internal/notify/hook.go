// Package notify sends transactional mail for identity creation and new
// reservations. Delivery failures are logged and counted, never surfaced to
// the operation that triggered them.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Sender delivers a single plain-text message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// FailureRecorder counts delivery failures by notification kind.
type FailureRecorder interface {
	NotificationFailed(kind string)
}

// Notification kinds.
const (
	KindActivation = "activation"
	KindRSVP       = "rsvp"
)

// Recipient identifies the addressee of a notification.
type Recipient struct {
	Username  string
	FirstName string
	Email     string
}

func (r Recipient) greeting() string {
	if name := strings.TrimSpace(r.FirstName); name != "" {
		return name
	}
	return r.Username
}

// EventInfo is the subset of an event needed for the confirmation mail.
type EventInfo struct {
	Name     string
	Date     time.Time
	Time     string
	Location string
}

// Hook builds notification messages and hands them to a Sender.
type Hook struct {
	sender   Sender
	logger   *slog.Logger
	failures FailureRecorder
}

// NewHook constructs a Hook. A nil sender disables delivery.
func NewHook(sender Sender, logger *slog.Logger, failures FailureRecorder) *Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hook{sender: sender, logger: logger, failures: failures}
}

// IdentityCreated sends the activation link to a newly registered identity.
func (h *Hook) IdentityCreated(ctx context.Context, to Recipient, activationURL string) {
	subject := "Activate Your Account"
	body := fmt.Sprintf("Hi %s,\n\nPlease activate your account by clicking the link below:\n%s\n\nThank you!", to.Username, activationURL)
	h.deliver(ctx, KindActivation, to, subject, body)
}

// ReservationCreated confirms a newly created reservation.
func (h *Hook) ReservationCreated(ctx context.Context, to Recipient, event EventInfo) {
	subject := "RSVP Confirmation for " + event.Name
	body := fmt.Sprintf("Hi %s,\n\nYou have successfully booked to '%s' on %s at %s.\nLocation: %s\n\nThank you for joining!\n",
		to.greeting(), event.Name, event.Date.Format("2006-01-02"), event.Time, event.Location)
	h.deliver(ctx, KindRSVP, to, subject, body)
}

func (h *Hook) deliver(ctx context.Context, kind string, to Recipient, subject, body string) {
	if h == nil || h.sender == nil {
		return
	}
	if strings.TrimSpace(to.Email) == "" {
		h.logger.Warn("notification skipped: recipient has no email", slog.String("kind", kind), slog.String("username", to.Username))
		return
	}
	if err := h.sender.Send(ctx, to.Email, subject, body); err != nil {
		h.logger.Error("notification delivery failed", slog.String("kind", kind), slog.String("to", to.Email), slog.Any("error", err))
		if h.failures != nil {
			h.failures.NotificationFailed(kind)
		}
	}
}
