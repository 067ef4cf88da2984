package inbox

import "strings"

// Role keys recognised for broadcast delivery. Both the French keys used by
// the membership site and their English equivalents are accepted.
const (
	RoleFacilitator = "animateur"
	RoleCoordinator = "coordinateur"
)

var (
	facilitatorRoles = map[string]bool{RoleFacilitator: true, "facilitator": true}
	coordinatorRoles = map[string]bool{RoleCoordinator: true, "coordinator": true}
)

// NormalizeRole lowercases a role key and drops every character outside
// [a-z0-9_-].
func NormalizeRole(role string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return -1
	}, role)
}

// IsCoordinatorRole reports whether role belongs to the coordinator tier.
func IsCoordinatorRole(role string) bool {
	return coordinatorRoles[NormalizeRole(role)]
}

// IsFacilitatorRole reports whether role belongs to the facilitator tier.
// Coordinators are facilitators too.
func IsFacilitatorRole(role string) bool {
	key := NormalizeRole(role)
	return facilitatorRoles[key] || coordinatorRoles[key]
}
