package categories

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/shared"
)

// Service handles category business logic. Every operation is Admin-only.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

func guard(actor rbac.Principal) error {
	if !rbac.Authorize(actor, rbac.RoleAdmin) {
		return shared.ErrForbidden
	}
	return nil
}

// List returns all categories.
func (s *Service) List(ctx context.Context, actor rbac.Principal) ([]Category, error) {
	if err := guard(actor); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// Get returns one category with its event count.
func (s *Service) Get(ctx context.Context, actor rbac.Principal, id int64) (Category, error) {
	if err := guard(actor); err != nil {
		return Category{}, err
	}
	return s.repo.Get(ctx, id)
}

// Create validates input and stores a new category.
func (s *Service) Create(ctx context.Context, actor rbac.Principal, input Input) (Category, error) {
	if err := guard(actor); err != nil {
		return Category{}, err
	}
	input, err := s.clean(input)
	if err != nil {
		return Category{}, err
	}
	return s.repo.Create(ctx, input.Name, input.description())
}

// Update validates input and stores it over category id.
func (s *Service) Update(ctx context.Context, actor rbac.Principal, id int64, input Input) error {
	if err := guard(actor); err != nil {
		return err
	}
	input, err := s.clean(input)
	if err != nil {
		return err
	}
	return s.repo.Update(ctx, id, input.Name, input.description())
}

// Delete removes category id together with its events and their
// reservations, returning how many events were removed.
func (s *Service) Delete(ctx context.Context, actor rbac.Principal, id int64) (int, error) {
	if err := guard(actor); err != nil {
		return 0, err
	}
	return s.repo.Delete(ctx, actor.UserID, id)
}

func (s *Service) clean(input Input) (Input, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if err := s.validate.Struct(input); err != nil {
		errs := shared.ValidationErrors{}
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				if fe.Tag() == "required" {
					errs.Add(fe.Field(), "This field is required.")
				} else {
					errs.Add(fe.Field(), "Ensure this value has at most "+fe.Param()+" characters.")
				}
			}
		}
		return input, errs
	}
	return input, nil
}
