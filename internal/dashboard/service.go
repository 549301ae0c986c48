package dashboard

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	catalog "github.com/odyssey-erp/eventhub/internal/catalog/shared"
	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/shared"
)

// Service aggregates dashboard data.
type Service struct {
	repo     RepositoryPort
	location *time.Location
	now      func() time.Time
}

// NewService builds Service instance. now defaults to time.Now.
func NewService(repo RepositoryPort, loc *time.Location, now func() time.Time) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, location: loc, now: now}
}

func (s *Service) today() (time.Time, string) {
	today := catalog.Today(s.now(), s.location)
	return today, today.Format("2006-01-02")
}

// Admin returns the catalog-wide summary. Admin only.
func (s *Service) Admin(ctx context.Context, actor rbac.Principal) (AdminView, error) {
	if !rbac.Authorize(actor, rbac.RoleAdmin) {
		return AdminView{}, shared.ErrForbidden
	}
	today, day := s.today()
	snap, err := s.repo.AdminSnapshot(ctx, day)
	if err != nil {
		return AdminView{}, err
	}
	return AdminView{
		Role:              rbac.RoleOf(actor),
		Today:             today,
		TotalEvents:       snap.TotalEvents,
		TotalParticipants: snap.TotalParticipants,
		UpcomingCount:     snap.UpcomingCount,
		PastCount:         snap.PastCount,
		TodaysEvents:      snap.TodaysEvents,
	}, nil
}

// Organizer lists events in bucket; TotalEvents counts the filtered list
// while the upcoming and past counts cover the whole catalog.
func (s *Service) Organizer(ctx context.Context, actor rbac.Principal, bucket catalog.Bucket) (OrganizerView, error) {
	if !rbac.Authorize(actor, rbac.RoleOrganizer) {
		return OrganizerView{}, shared.ErrForbidden
	}
	if bucket == "" {
		bucket = catalog.BucketAll
	}
	today, day := s.today()
	view := OrganizerView{Role: rbac.RoleOf(actor), Today: today, Bucket: bucket, Buckets: catalog.Buckets()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		view.Events, err = s.repo.EventsIn(ctx, bucket, day)
		return err
	})
	g.Go(func() (err error) {
		view.UpcomingCount, err = s.repo.CountEvents(ctx, catalog.BucketUpcoming, day)
		return err
	})
	g.Go(func() (err error) {
		view.PastCount, err = s.repo.CountEvents(ctx, catalog.BucketPast, day)
		return err
	})
	if err := g.Wait(); err != nil {
		return OrganizerView{}, err
	}
	view.TotalEvents = len(view.Events)
	return view, nil
}

// Participants lists reservations with user and event. Organizer or Admin.
func (s *Service) Participants(ctx context.Context, actor rbac.Principal) (ParticipantsView, error) {
	if !rbac.Authorize(actor, rbac.RoleOrganizer) {
		return ParticipantsView{}, shared.ErrForbidden
	}
	rows, err := s.repo.Participants(ctx)
	if err != nil {
		return ParticipantsView{}, err
	}
	return ParticipantsView{Role: rbac.RoleOf(actor), Rows: rows}, nil
}

// Participant lists the caller's reserved events. Participant or Admin.
func (s *Service) Participant(ctx context.Context, actor rbac.Principal) (ParticipantView, error) {
	if !rbac.Authorize(actor, rbac.RoleParticipant) {
		return ParticipantView{}, shared.ErrForbidden
	}
	today, _ := s.today()
	list, err := s.repo.ReservedEvents(ctx, actor.UserID)
	if err != nil {
		return ParticipantView{}, err
	}
	return ParticipantView{Role: rbac.RoleOf(actor), Today: today, Events: list}, nil
}
