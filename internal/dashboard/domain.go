// Package dashboard builds the read-only role dashboards. Counts are computed
// per request against today's date in the configured location.
package dashboard

import (
	"time"

	catalog "github.com/odyssey-erp/eventhub/internal/catalog/shared"
	"github.com/odyssey-erp/eventhub/internal/catalog/events"
	"github.com/odyssey-erp/eventhub/internal/rbac"
)

// AdminView summarises the whole catalog.
type AdminView struct {
	Role              rbac.Role
	Today             time.Time
	TotalEvents       int
	TotalParticipants int
	UpcomingCount     int
	PastCount         int
	TodaysEvents      []events.Event
}

// AdminSnapshot holds the admin figures read from one database snapshot.
type AdminSnapshot struct {
	TotalEvents       int
	TotalParticipants int
	UpcomingCount     int
	PastCount         int
	TodaysEvents      []events.Event
}

// OrganizerView lists events in one bucket with catalog-wide counts.
type OrganizerView struct {
	Role          rbac.Role
	Today         time.Time
	Bucket        catalog.Bucket
	Buckets       []catalog.Bucket
	Events        []events.Event
	TotalEvents   int
	UpcomingCount int
	PastCount     int
}

// ParticipantRow is one reservation in the organizer's participant list.
type ParticipantRow struct {
	Username   string
	Email      string
	EventName  string
	EventDate  time.Time
	ReservedAt time.Time
}

// ParticipantsView lists every reservation with its user and event.
type ParticipantsView struct {
	Role rbac.Role
	Rows []ParticipantRow
}

// ParticipantView lists the events the caller reserved.
type ParticipantView struct {
	Role   rbac.Role
	Today  time.Time
	Events []events.Event
}
