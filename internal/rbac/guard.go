package rbac

import "strings"

// RoleOf returns the strongest built-in role among the principal's groups.
// Unauthenticated principals and principals without a built-in group have
// RoleNone. Custom groups never produce a role.
func RoleOf(p Principal) Role {
	if !p.Authenticated {
		return RoleNone
	}
	held := make(map[string]struct{}, len(p.Groups))
	for _, g := range p.Groups {
		held[g] = struct{}{}
	}
	for _, r := range precedence {
		if _, ok := held[string(r)]; ok {
			return r
		}
	}
	return RoleNone
}

// Authorize reports whether p may perform an action gated on required.
// Admin is accepted for every gate.
func Authorize(p Principal, required ...Role) bool {
	role := RoleOf(p)
	if role == RoleNone {
		return false
	}
	if role == RoleAdmin {
		return true
	}
	for _, r := range required {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission reports whether p holds perm given its granted capability
// tokens. Admin holds every permission.
func HasPermission(p Principal, granted []string, perm string) bool {
	role := RoleOf(p)
	if !p.Authenticated {
		return false
	}
	if role == RoleAdmin {
		return true
	}
	perm = strings.TrimSpace(strings.ToLower(perm))
	if perm == "" {
		return false
	}
	for _, g := range granted {
		if strings.ToLower(g) == perm {
			return true
		}
	}
	return false
}

// DashboardPath returns the landing page for p's role.
func DashboardPath(p Principal) string {
	switch RoleOf(p) {
	case RoleAdmin:
		return "/dashboard/admin"
	case RoleOrganizer:
		return "/dashboard/organizer"
	case RoleParticipant:
		return "/dashboard/participant"
	default:
		return "/"
	}
}
