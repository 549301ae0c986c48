package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/eventhub/internal/notify"
	"github.com/odyssey-erp/eventhub/internal/rbac"
	"github.com/odyssey-erp/eventhub/internal/shared"
)

// Notifier receives identity lifecycle notifications.
type Notifier interface {
	IdentityCreated(ctx context.Context, to notify.Recipient, activationURL string)
}

// Service handles identity business logic.
type Service struct {
	repo     Repository
	tokens   *ActivationTokens
	notifier Notifier
	validate *validator.Validate
	baseURL  string
	logger   *slog.Logger
	hashCost int
	clock    func() time.Time
}

// ServiceConfig bundles Service dependencies.
type ServiceConfig struct {
	Repo     Repository
	Tokens   *ActivationTokens
	Notifier Notifier
	BaseURL  string
	Logger   *slog.Logger
	// HashCost overrides bcrypt.DefaultCost; tests lower it.
	HashCost int
}

// NewService builds Service instance.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cost := cfg.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		repo:     cfg.Repo,
		tokens:   cfg.Tokens,
		notifier: cfg.Notifier,
		validate: NewValidator(),
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		logger:   logger,
		hashCost: cost,
		clock:    time.Now,
	}
}

// CreateIdentity registers an inactive account in the default group and sends
// the activation link.
func (s *Service) CreateIdentity(ctx context.Context, input SignUpInput) (Identity, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	if err := s.validate.Struct(input); err != nil {
		return Identity{}, validationErrors(err)
	}
	errs := shared.ValidationErrors{}
	if taken, err := s.repo.UsernameTaken(ctx, input.Username); err != nil {
		return Identity{}, err
	} else if taken {
		errs.Add("Username", "A user with that username already exists.")
	}
	if taken, err := s.repo.EmailTaken(ctx, input.Email, 0); err != nil {
		return Identity{}, err
	} else if taken {
		errs.Add("Email", "Email already exists.")
	}
	if len(errs) > 0 {
		return Identity{}, errs
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.hashCost)
	if err != nil {
		return Identity{}, fmt.Errorf("users: hash password: %w", err)
	}
	created, err := s.repo.Create(ctx, Identity{
		Username:     input.Username,
		Email:        input.Email,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PasswordHash: string(hash),
	}, DefaultGroup)
	if err != nil {
		var dup Duplicate
		if errors.As(err, &dup) {
			return Identity{}, duplicateError(dup)
		}
		return Identity{}, err
	}

	s.sendActivation(ctx, created)
	return created, nil
}

func duplicateError(dup Duplicate) shared.ValidationErrors {
	errs := shared.ValidationErrors{}
	if dup.Field == "Username" {
		errs.Add("Username", "A user with that username already exists.")
	} else {
		errs.Add(dup.Field, "Email already exists.")
	}
	return errs
}

func (s *Service) sendActivation(ctx context.Context, identity Identity) {
	if s.notifier == nil || s.tokens == nil || identity.IsActive {
		return
	}
	token, err := s.tokens.Make(identity)
	if err != nil {
		s.logger.Error("activation token", slog.Int64("user_id", identity.ID), slog.Any("error", err))
		return
	}
	s.notifier.IdentityCreated(ctx, notify.Recipient{
		Username:  identity.Username,
		FirstName: identity.FirstName,
		Email:     identity.Email,
	}, s.ActivationURL(identity.ID, token))
}

// ActivationURL builds the absolute activation link for an identity.
func (s *Service) ActivationURL(userID int64, token string) string {
	return fmt.Sprintf("%s/activate/%d/%s", s.baseURL, userID, url.PathEscape(token))
}

// Activate validates token and flips the account to active. A token can be
// used once: activation changes the state the token was bound to.
func (s *Service) Activate(ctx context.Context, userID int64, token string) error {
	identity, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.tokens.Verify(identity, token); err != nil {
		return err
	}
	flipped, err := s.repo.Activate(ctx, userID)
	if err != nil {
		return err
	}
	if !flipped {
		// A concurrent request consumed the token first.
		return shared.ErrInvalidToken
	}
	return nil
}

// SetRole replaces every group membership of userID with groupID. Only
// administrators may reassign roles.
func (s *Service) SetRole(ctx context.Context, actor rbac.Principal, userID, groupID int64) error {
	if !rbac.Authorize(actor, rbac.RoleAdmin) {
		return shared.ErrForbidden
	}
	return s.repo.SetRole(ctx, actor.UserID, userID, groupID)
}

// CheckPassword reports whether plain matches the identity's stored hash.
func (s *Service) CheckPassword(identity Identity, plain string) bool {
	if identity.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(plain)) == nil
}

// SetPassword rehashes and stores plain for userID.
func (s *Service) SetPassword(ctx context.Context, userID int64, plain string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), s.hashCost)
	if err != nil {
		return fmt.Errorf("users: hash password: %w", err)
	}
	return s.repo.SetPassword(ctx, userID, string(hash))
}

// ChangePassword verifies the old password before storing the new one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, input PasswordChangeInput) error {
	if err := s.validate.Struct(input); err != nil {
		return validationErrors(err)
	}
	identity, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !s.CheckPassword(identity, input.OldPassword) {
		return shared.ValidationErrors{"OldPassword": "Your old password was entered incorrectly."}
	}
	return s.SetPassword(ctx, userID, input.NewPassword)
}

// UpdateProfile stores the editable profile fields.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, input ProfileInput) error {
	input.Email = strings.TrimSpace(input.Email)
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	if err := s.validate.Struct(input); err != nil {
		return validationErrors(err)
	}
	if taken, err := s.repo.EmailTaken(ctx, input.Email, userID); err != nil {
		return err
	} else if taken {
		return shared.ValidationErrors{"Email": "Email already exists."}
	}
	if err := s.repo.UpdateProfile(ctx, userID, input); err != nil {
		var dup Duplicate
		if errors.As(err, &dup) {
			return duplicateError(dup)
		}
		return err
	}
	return nil
}

// RecordLogin stamps last_login for a successful sign-in.
func (s *Service) RecordLogin(ctx context.Context, userID int64) error {
	return s.repo.TouchLastLogin(ctx, userID, s.clock())
}

// Get returns a single identity.
func (s *Service) Get(ctx context.Context, userID int64) (Identity, error) {
	return s.repo.Get(ctx, userID)
}

// FindByUsername returns the identity registered under username.
func (s *Service) FindByUsername(ctx context.Context, username string) (Identity, error) {
	return s.repo.FindByUsername(ctx, strings.TrimSpace(username))
}

// List returns every identity for the admin user list.
func (s *Service) List(ctx context.Context) ([]Identity, error) {
	return s.repo.List(ctx)
}

// ListGroups returns groups available for role assignment.
func (s *Service) ListGroups(ctx context.Context) ([]GroupOption, error) {
	return s.repo.ListGroups(ctx)
}

// Delete removes an identity and, through cascades, its reservations.
func (s *Service) Delete(ctx context.Context, actor rbac.Principal, userID int64) error {
	if !rbac.Authorize(actor, rbac.RoleAdmin) {
		return shared.ErrForbidden
	}
	if actor.UserID == userID {
		return shared.ValidationErrors{"general": "You cannot delete your own account."}
	}
	return s.repo.Delete(ctx, actor.UserID, userID)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ErrNotFound
	}
	return id, nil
}
