package reservations

import (
	"context"
	"errors"
	"log/slog"

	"github.com/odyssey-erp/eventhub/internal/catalog/events"
	"github.com/odyssey-erp/eventhub/internal/notify"
	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/shared"
)

// EventLookup resolves the event being reserved.
type EventLookup interface {
	Get(ctx context.Context, id int64) (events.Event, error)
}

// Notifier confirms new reservations.
type Notifier interface {
	ReservationCreated(ctx context.Context, to notify.Recipient, event notify.EventInfo)
}

// OutcomeRecorder counts reserve outcomes.
type OutcomeRecorder interface {
	ReservationOutcome(outcome string)
}

// Service handles reservation business logic.
type Service struct {
	repo     RepositoryPort
	events   EventLookup
	notifier Notifier
	outcomes OutcomeRecorder
	logger   *slog.Logger
}

// NewService builds Service instance. notifier and outcomes may be nil.
func NewService(repo RepositoryPort, events EventLookup, notifier Notifier, outcomes OutcomeRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, events: events, notifier: notifier, outcomes: outcomes, logger: logger}
}

// Reserve books eventID for actor. Repeating the call is harmless: it
// reports OutcomeAlreadyReserved and leaves the single reservation intact.
// The confirmation is sent only when a row was created.
func (s *Service) Reserve(ctx context.Context, actor rbac.Principal, eventID int64) (Result, error) {
	if !rbac.Authorize(actor, rbac.RoleParticipant) {
		return Result{}, shared.ErrForbidden
	}
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return Result{}, err
	}
	result := Result{Event: event, Outcome: OutcomeAlreadyReserved}

	exists, err := s.repo.Exists(ctx, actor.UserID, eventID)
	if err != nil {
		return Result{}, err
	}
	if !exists {
		res, err := s.repo.Create(ctx, actor.UserID, eventID)
		switch {
		case err == nil:
			result.Outcome = OutcomeReserved
			result.Reservation = res
		case errors.Is(err, ErrAlreadyReserved):
		default:
			return Result{}, err
		}
	}

	if s.outcomes != nil {
		s.outcomes.ReservationOutcome(string(result.Outcome))
	}
	s.logger.Info("reservation", slog.Int64("user_id", actor.UserID), slog.Int64("event_id", eventID), slog.String("outcome", string(result.Outcome)))
	if result.Outcome == OutcomeReserved && s.notifier != nil {
		s.notifier.ReservationCreated(ctx,
			notify.Recipient{Username: actor.Username, Email: actor.Email},
			notify.EventInfo{Name: event.Name, Date: event.Date, Time: event.Time, Location: event.Location})
	}
	return result, nil
}

// IsReserved reports whether userID holds a reservation for eventID.
func (s *Service) IsReserved(ctx context.Context, userID, eventID int64) (bool, error) {
	return s.repo.Exists(ctx, userID, eventID)
}

// ListForUser returns the events userID reserved.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]events.Event, error) {
	return s.repo.ListForUser(ctx, userID)
}

var _ events.ReservationChecker = (*Service)(nil)
