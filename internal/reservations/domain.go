// Package reservations records RSVPs. A user holds at most one reservation
// per event; the database unique index is the arbiter when requests race.
package reservations

import (
	"errors"
	"time"

	"github.com/odyssey-erp/eventhub/internal/catalog/events"
)

// ErrAlreadyReserved is returned by the repository when (user, event) exists.
var ErrAlreadyReserved = errors.New("reservations: already reserved")

// Reservation links a user to an event.
type Reservation struct {
	ID        int64
	UserID    int64
	EventID   int64
	CreatedAt time.Time
}

// Outcome is the result of a reserve request.
type Outcome string

const (
	OutcomeReserved        Outcome = "reserved"
	OutcomeAlreadyReserved Outcome = "already_reserved"
)

// Message is the flash text shown for the outcome.
func (o Outcome) Message(eventName string) string {
	if o == OutcomeAlreadyReserved {
		return "You have already RSVP’d to " + eventName + "."
	}
	return "You have successfully RSVP’d to " + eventName + "."
}

// Result describes a completed reserve request.
type Result struct {
	Outcome     Outcome
	Event       events.Event
	Reservation Reservation
}
