package users

import (
	"strings"
	"time"
)

// DefaultGroup is attached to every identity at creation.
const DefaultGroup = "Participant"

// Identity represents a user account together with its group memberships.
type Identity struct {
	ID           int64
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsActive     bool
	LastLogin    *time.Time
	DateJoined   time.Time
	Groups       []string
}

// DisplayName prefers the first name, falling back to the username.
func (i Identity) DisplayName() string {
	if name := strings.TrimSpace(i.FirstName); name != "" {
		return name
	}
	return i.Username
}

// GroupLabel is the first group name, as shown on the admin user list.
func (i Identity) GroupLabel() string {
	if len(i.Groups) == 0 {
		return "No Group Assigned"
	}
	return i.Groups[0]
}

// GroupOption is a selectable group on the role assignment form.
type GroupOption struct {
	ID   int64
	Name string
}

// SignUpInput carries the registration form.
type SignUpInput struct {
	Username        string `validate:"required,min=3,max=150,username"`
	Email           string `validate:"required,email,max=254"`
	FirstName       string `validate:"max=150"`
	LastName        string `validate:"max=150"`
	Password        string `validate:"required,min=8,max=128,notnumeric"`
	PasswordConfirm string `validate:"required,eqfield=Password"`
}

// ProfileInput carries the profile edit form.
type ProfileInput struct {
	FirstName string `validate:"max=150"`
	LastName  string `validate:"max=150"`
	Email     string `validate:"required,email,max=254"`
}

// PasswordChangeInput carries the password change form.
type PasswordChangeInput struct {
	OldPassword     string `validate:"required"`
	NewPassword     string `validate:"required,min=8,max=128,notnumeric"`
	PasswordConfirm string `validate:"required,eqfield=NewPassword"`
}
