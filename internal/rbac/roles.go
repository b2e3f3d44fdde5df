package rbac

// Role names. Keep these stable; they are part of issued tokens.
const (
	RoleAdmin      = "admin"      // manages sync configurations and connections
	RoleIntegrator = "integrator" // submits records for synchronization
	RoleAuditor    = "auditor"    // reads the sync event log
	RoleSuperAdmin = "super_admin"
)

// Permission names one group of API operations.
type Permission string

const (
	PermSync       Permission = "sync"
	PermReadEvents Permission = "events:read"
	PermAdmin      Permission = "admin"
)

var grants = map[string][]Permission{
	RoleAdmin:      {PermSync, PermReadEvents, PermAdmin},
	RoleIntegrator: {PermSync},
	RoleAuditor:    {PermReadEvents},
}

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func Known(role string) bool {
	_, ok := grants[role]
	return ok || IsSuperAdmin(role)
}

// Allows reports whether role grants p. super_admin holds every permission.
func Allows(role string, p Permission) bool {
	if IsSuperAdmin(role) {
		return true
	}
	for _, g := range grants[role] {
		if g == p {
			return true
		}
	}
	return false
}
