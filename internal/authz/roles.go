package authz

import (
	"sort"
	"strings"
)

// Role is a user's role within a single project.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleManager   Role = "manager"
	RoleDeveloper Role = "developer"
	RoleViewer    Role = "viewer"
)

// Permission is a single named capability checked against a role's grant set.
type Permission string

const (
	PermCreateProject    Permission = "create_project"
	PermEditProject      Permission = "edit_project"
	PermDeleteProject    Permission = "delete_project"
	PermViewProject      Permission = "view_project"
	PermCreateTask       Permission = "create_task"
	PermEditTask         Permission = "edit_task"
	PermDeleteTask       Permission = "delete_task"
	PermViewTask         Permission = "view_task"
	PermAssignTask       Permission = "assign_task"
	PermUpdateTaskStatus Permission = "update_task_status"
	PermManageTeam       Permission = "manage_team"
	PermAddMember        Permission = "add_member"
	PermRemoveMember     Permission = "remove_member"
	PermUpdateRole       Permission = "update_role"
	PermViewAnalytics    Permission = "view_analytics"
)

var allPermissions = []Permission{
	PermCreateProject, PermEditProject, PermDeleteProject, PermViewProject,
	PermCreateTask, PermEditTask, PermDeleteTask, PermViewTask, PermAssignTask, PermUpdateTaskStatus,
	PermManageTeam, PermAddMember, PermRemoveMember, PermUpdateRole,
	PermViewAnalytics,
}

type permissionSet map[Permission]struct{}

func newPermissionSet(perms ...Permission) permissionSet {
	set := make(permissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// rolePermissions is read-only after package init. Note that manager holds
// add_member here, yet team mutations are gated on project ownership (see
// CanManageTeam).
var rolePermissions = map[Role]permissionSet{
	RoleOwner: newPermissionSet(allPermissions...),
	RoleManager: newPermissionSet(
		PermEditProject, PermViewProject,
		PermCreateTask, PermEditTask, PermDeleteTask, PermViewTask, PermAssignTask, PermUpdateTaskStatus,
		PermAddMember,
		PermViewAnalytics,
	),
	RoleDeveloper: newPermissionSet(
		PermViewProject,
		PermCreateTask, PermViewTask, PermUpdateTaskStatus,
	),
	RoleViewer: newPermissionSet(
		PermViewProject, PermViewTask,
	),
}

// ParseRole normalizes a role string. Matching is case-insensitive and
// ignores surrounding whitespace.
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := rolePermissions[role]; !ok {
		return "", false
	}
	return role, true
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// CheckPermission reports whether role grants permission. Unknown or empty
// roles grant nothing, and so do unknown permissions.
func CheckPermission(role Role, permission Permission) bool {
	normalized, ok := ParseRole(string(role))
	if !ok {
		return false
	}
	_, granted := rolePermissions[normalized][permission]
	return granted
}

// PermissionsFor returns the sorted permission list granted to role.
func PermissionsFor(role Role) []Permission {
	normalized, ok := ParseRole(string(role))
	if !ok {
		return []Permission{}
	}
	perms := make([]Permission, 0, len(rolePermissions[normalized]))
	for p := range rolePermissions[normalized] {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}

// AllPermissions returns a copy of every defined permission.
func AllPermissions() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// Roles returns the four valid roles in descending order of privilege.
func Roles() []Role {
	return []Role{RoleOwner, RoleManager, RoleDeveloper, RoleViewer}
}
