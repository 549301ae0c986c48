package auth

import (
	"context"
	"errors"
	"time"

	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/shared"
	"github.com/odyssey-erp/eventhub/internal/users"
)

// Identities is the slice of the identity store used for sign-in.
type Identities interface {
	FindByUsername(ctx context.Context, username string) (users.Identity, error)
	CheckPassword(identity users.Identity, plain string) bool
	RecordLogin(ctx context.Context, userID int64) error
}

// Service wraps authentication business rules.
type Service struct {
	identities Identities
	repo       Repository
}

// NewService constructs a new Service.
func NewService(identities Identities, repo Repository) *Service {
	return &Service{identities: identities, repo: repo}
}

// Authenticate validates username/password credentials. Accounts that have
// not been activated are refused with shared.ErrInactiveAccount, but only
// once the password has been checked.
func (s *Service) Authenticate(ctx context.Context, username, password string) (users.Identity, error) {
	identity, err := s.identities.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return users.Identity{}, shared.ErrInvalidCredentials
		}
		return users.Identity{}, err
	}
	if !s.identities.CheckPassword(identity, password) {
		return users.Identity{}, shared.ErrInvalidCredentials
	}
	if !identity.IsActive {
		return users.Identity{}, shared.ErrInactiveAccount
	}
	return identity, nil
}

// RegisterSession records the session and stamps last_login.
func (s *Service) RegisterSession(ctx context.Context, sessionID string, userID int64, expiresAt time.Time, ip, ua string) error {
	if err := s.repo.CreateSession(ctx, sessionID, userID, expiresAt, ip, ua); err != nil {
		return err
	}
	return s.identities.RecordLogin(ctx, userID)
}

// RemoveSession deletes the session record.
func (s *Service) RemoveSession(ctx context.Context, sessionID string) error {
	return s.repo.DeleteSession(ctx, sessionID)
}

// PrincipalFor builds the principal of a freshly authenticated identity.
func PrincipalFor(identity users.Identity) rbac.Principal {
	return rbac.Principal{
		UserID:        identity.ID,
		Username:      identity.Username,
		Email:         identity.Email,
		Authenticated: identity.IsActive,
		Groups:        identity.Groups,
	}
}
