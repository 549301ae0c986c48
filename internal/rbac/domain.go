package rbac

// Role is the precedence-ordered tag derived from group membership.
type Role string

const (
	RoleNone        Role = ""
	RoleAdmin       Role = "Admin"
	RoleOrganizer   Role = "Organizer"
	RoleParticipant Role = "Participant"
)

// precedence lists the built-in roles from strongest to weakest.
var precedence = []Role{RoleAdmin, RoleOrganizer, RoleParticipant}

// BuiltinRoles returns the roles the application routes on, strongest first.
func BuiltinRoles() []Role {
	out := make([]Role, len(precedence))
	copy(out, precedence)
	return out
}

// IsBuiltin reports whether name is one of the built-in role groups.
func IsBuiltin(name string) bool {
	for _, r := range precedence {
		if string(r) == name {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	if r == RoleNone {
		return "None"
	}
	return string(r)
}

// Principal describes the authenticated actor.
type Principal struct {
	UserID        int64
	Username      string
	Email         string
	Authenticated bool
	Groups        []string
}

// Anonymous is the principal of requests without a signed-in, active user.
var Anonymous = Principal{}
