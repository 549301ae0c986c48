package shared

// Capability tokens stored in the permissions table and attached to groups.
const (
	PermEventsCreate     = "events.create"
	PermEventsEdit       = "events.edit"
	PermEventsDelete     = "events.delete"
	PermCategoriesManage = "categories.manage"
	PermRSVPCreate       = "rsvps.create"
	PermParticipantsView = "participants.view"
	PermUsersManage      = "users.manage"
	PermGroupsManage     = "groups.manage"
)

// CoreScopes lists every permission known to the application.
func CoreScopes() []string {
	return []string{
		PermEventsCreate,
		PermEventsEdit,
		PermEventsDelete,
		PermCategoriesManage,
		PermRSVPCreate,
		PermParticipantsView,
		PermUsersManage,
		PermGroupsManage,
	}
}
