package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	catalog "github.com/odyssey-erp/eventhub/internal/catalog/shared"
	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/shared"
)

// ReservationChecker reports whether a user already holds a reservation.
type ReservationChecker interface {
	IsReserved(ctx context.Context, userID, eventID int64) (bool, error)
}

// Service handles event business logic. Organizers and admins publish and
// edit; only admins delete.
type Service struct {
	repo         RepositoryPort
	reservations ReservationChecker
	validate     *validator.Validate
	location     *time.Location
	now          func() time.Time
}

// NewService builds Service instance. loc decides which calendar day is
// "today" for bucket filters.
func NewService(repo RepositoryPort, reservations ReservationChecker, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, reservations: reservations, validate: validator.New(), location: loc, now: time.Now}
}

// Today returns the current calendar date in the configured location.
func (s *Service) Today() time.Time {
	return catalog.Today(s.now(), s.location)
}

// List returns one page of events. Any signed-in principal may browse.
func (s *Service) List(ctx context.Context, actor rbac.Principal, filters catalog.ListFilters) (Page, error) {
	if !actor.Authenticated {
		return Page{}, shared.ErrForbidden
	}
	filters = filters.Normalize()
	filters.Today = s.Today()
	events, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return Page{}, err
	}
	return Page{Events: events, Total: total, Page: filters.Page, Limit: filters.Limit}, nil
}

// Get returns a single event.
func (s *Service) Get(ctx context.Context, id int64) (Event, error) {
	return s.repo.Get(ctx, id)
}

// Detail returns the event with the caller's reservation status.
func (s *Service) Detail(ctx context.Context, actor rbac.Principal, id int64) (Detail, error) {
	if !actor.Authenticated {
		return Detail{}, shared.ErrForbidden
	}
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	detail := Detail{
		Event:      event,
		CanReserve: rbac.Authorize(actor, rbac.RoleParticipant),
		CanEdit:    rbac.Authorize(actor, rbac.RoleOrganizer),
		CanDelete:  rbac.Authorize(actor, rbac.RoleAdmin),
	}
	if s.reservations != nil {
		reserved, err := s.reservations.IsReserved(ctx, actor.UserID, id)
		if err != nil {
			return Detail{}, err
		}
		detail.Reserved = reserved
	}
	return detail, nil
}

// Create validates and stores a new event.
func (s *Service) Create(ctx context.Context, actor rbac.Principal, input Input) (int64, error) {
	if !rbac.Authorize(actor, rbac.RoleOrganizer) {
		return 0, shared.ErrForbidden
	}
	rec, err := s.record(input)
	if err != nil {
		return 0, err
	}
	id, err := s.repo.Create(ctx, rec)
	if errors.Is(err, ErrUnknownCategory) {
		return 0, shared.ValidationErrors{"CategoryID": "Select a valid choice."}
	}
	return id, err
}

// Update validates and stores input over event id.
func (s *Service) Update(ctx context.Context, actor rbac.Principal, id int64, input Input) error {
	if !rbac.Authorize(actor, rbac.RoleOrganizer) {
		return shared.ErrForbidden
	}
	rec, err := s.record(input)
	if err != nil {
		return err
	}
	err = s.repo.Update(ctx, id, rec)
	if errors.Is(err, ErrUnknownCategory) {
		return shared.ValidationErrors{"CategoryID": "Select a valid choice."}
	}
	return err
}

// Delete removes an event and its reservations. Admin only.
func (s *Service) Delete(ctx context.Context, actor rbac.Principal, id int64) error {
	if !rbac.Authorize(actor, rbac.RoleAdmin) {
		return shared.ErrForbidden
	}
	return s.repo.Delete(ctx, actor.UserID, id)
}

// CategoryOptions lists categories for the event form.
func (s *Service) CategoryOptions(ctx context.Context) ([]CategoryOption, error) {
	return s.repo.CategoryOptions(ctx)
}

func (s *Service) record(input Input) (Record, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.Location = strings.TrimSpace(input.Location)
	input.Date = strings.TrimSpace(input.Date)
	input.Time = strings.TrimSpace(input.Time)
	input.ImageRef = strings.TrimSpace(input.ImageRef)
	if err := s.validate.Struct(input); err != nil {
		return Record{}, fieldErrors(err)
	}
	date, err := time.Parse("2006-01-02", input.Date)
	if err != nil {
		return Record{}, shared.ValidationErrors{"Date": "Enter a valid date."}
	}
	rec := Record{
		Name:        input.Name,
		Description: input.Description,
		Date:        date,
		Time:        input.Time,
		Location:    input.Location,
		CategoryID:  input.CategoryID,
	}
	if input.ImageRef != "" {
		ref := input.ImageRef
		rec.ImageRef = &ref
	}
	return rec, nil
}

func fieldErrors(err error) shared.ValidationErrors {
	errs := shared.ValidationErrors{}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs.Add("general", err.Error())
		return errs
	}
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			if fe.Field() == "CategoryID" {
				errs.Add(fe.Field(), "Select a category.")
			} else {
				errs.Add(fe.Field(), "This field is required.")
			}
		case "max":
			errs.Add(fe.Field(), "Ensure this value has at most "+fe.Param()+" characters.")
		case "datetime":
			if fe.Field() == "Time" {
				errs.Add(fe.Field(), "Enter a valid time.")
			} else {
				errs.Add(fe.Field(), "Enter a valid date.")
			}
		default:
			errs.Add(fe.Field(), "Select a valid choice.")
		}
	}
	return errs
}
