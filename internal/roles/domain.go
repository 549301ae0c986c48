package roles

// Permission is a capability token that can be granted to a group.
type Permission struct {
	ID          int64
	Codename    string
	Description string
}

// Group is a named set of users. The built-in Admin, Organizer and Participant
// groups double as roles.
type Group struct {
	ID          int64
	Name        string
	Members     int
	Permissions []Permission
}

// Builtin reports whether the group is one of the role groups.
func (g Group) Builtin() bool {
	return isBuiltin(g.Name)
}

// CreateGroupInput carries the group creation form.
type CreateGroupInput struct {
	Name          string  `validate:"required,max=150"`
	PermissionIDs []int64 `validate:"dive,gt=0"`
}
