package rbac

// Role constants
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Permission constants
const (
	PermManageOwnTasks = "manage_own_tasks"
	PermManageAnyTask  = "manage_any_task"
	PermReassignOwner  = "reassign_owner"
	PermManageUsers    = "manage_users"
	PermReadAuditLog   = "read_audit_log"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleUser: {
		PermManageOwnTasks,
	},
	RoleAdmin: {
		PermManageOwnTasks, PermManageAnyTask, PermReassignOwner,
		PermManageUsers, PermReadAuditLog,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	for _, p := range RolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// IsValidRole reports whether role is one of the known roles.
func IsValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}
