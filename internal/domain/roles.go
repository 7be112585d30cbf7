package domain

// Role is an application role assigned to a principal, either stored on a
// local account or resolved from directory group membership at login.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDeveloper Role = "developer"
	RoleAnalyst   Role = "analyst"
	RoleUser      Role = "user"
)

// roleRank orders roles for hierarchical access checks. Unknown roles rank
// below RoleUser.
var roleRank = map[Role]int{
	RoleUser:      1,
	RoleAnalyst:   2,
	RoleDeveloper: 3,
	RoleAdmin:     4,
}

// ValidRole reports whether r is one of the known application roles.
func ValidRole(r Role) bool {
	_, ok := roleRank[r]
	return ok
}

// CheckAccess reports whether a subject holding subjectRole may perform an
// action gated on requiredRole. The check is hierarchical: admin satisfies
// every gate, user only its own. Callable from any transport.
func CheckAccess(subjectRole, requiredRole Role) bool {
	return roleRank[subjectRole] >= roleRank[requiredRole]
}
