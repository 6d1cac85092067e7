package auth

// Role is the capability level carried in an access token. Viewers
// read alarm summaries, event information and notification history;
// operators additionally acknowledge alarms and raise vendor alerts;
// admins additionally export history.
type Role string

const (
	// RoleViewer grants read access to summaries, the event stream and
	// history queries.
	RoleViewer Role = "viewer"
	// RoleOperator adds alarm acknowledgment and alert injection.
	RoleOperator Role = "operator"
	// RoleAdmin adds history export.
	RoleAdmin Role = "admin"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleViewer, RoleOperator, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}

// RoleAtLeast reports whether role carries every capability required
// grants.
func RoleAtLeast(role Role, required Role) bool {
	return role.rank() >= required.rank()
}

func (r Role) rank() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleOperator:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}
