package roles

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/shared"
)

// ErrBuiltinGroup is returned when deleting one of the role groups.
var ErrBuiltinGroup = errors.New("roles: built-in role groups cannot be deleted")

// RepositoryPort defines data access methods for groups and permissions.
type RepositoryPort interface {
	ListGroups(ctx context.Context) ([]Group, error)
	GetGroup(ctx context.Context, id int64) (Group, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	CreateGroup(ctx context.Context, actorID int64, name string, permissionIDs []int64) (Group, error)
	DeleteGroup(ctx context.Context, actorID, id int64) error
}

// Service handles group business logic. Every operation is Admin-only.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

func isBuiltin(name string) bool {
	return rbac.IsBuiltin(name)
}

// ListGroups returns all groups with their permissions.
func (s *Service) ListGroups(ctx context.Context, actor rbac.Principal) ([]Group, error) {
	if !rbac.Authorize(actor, rbac.RoleAdmin) {
		return nil, shared.ErrForbidden
	}
	return s.repo.ListGroups(ctx)
}

// ListPermissions returns every grantable permission.
func (s *Service) ListPermissions(ctx context.Context, actor rbac.Principal) ([]Permission, error) {
	if !rbac.Authorize(actor, rbac.RoleAdmin) {
		return nil, shared.ErrForbidden
	}
	return s.repo.ListPermissions(ctx)
}

// CreateGroup creates a uniquely named group with the given permissions.
func (s *Service) CreateGroup(ctx context.Context, actor rbac.Principal, input CreateGroupInput) (Group, error) {
	if !rbac.Authorize(actor, rbac.RoleAdmin) {
		return Group{}, shared.ErrForbidden
	}
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validate.Struct(input); err != nil {
		errs := shared.ValidationErrors{}
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				field := fe.StructField()
				if strings.HasPrefix(field, "PermissionIDs") {
					field = "PermissionIDs"
				}
				switch fe.Tag() {
				case "required":
					errs.Add(field, "This field is required.")
				case "max":
					errs.Add(field, "Ensure this value has at most "+fe.Param()+" characters.")
				default:
					errs.Add(field, "Select a valid choice.")
				}
			}
		}
		return Group{}, errs
	}
	group, err := s.repo.CreateGroup(ctx, actor.UserID, input.Name, input.PermissionIDs)
	if errors.Is(err, ErrDuplicateName) {
		return Group{}, shared.ValidationErrors{"Name": "Group with this Name already exists."}
	}
	return group, err
}

// DeleteGroup removes a custom group. Role groups are protected.
func (s *Service) DeleteGroup(ctx context.Context, actor rbac.Principal, id int64) error {
	if !rbac.Authorize(actor, rbac.RoleAdmin) {
		return shared.ErrForbidden
	}
	group, err := s.repo.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	if group.Builtin() {
		return ErrBuiltinGroup
	}
	return s.repo.DeleteGroup(ctx, actor.UserID, id)
}
