package authz

import "github.com/huangang/taskforge/internal/models"

// Task rules. Each takes an already resolved Membership, so callers decide
// once whether a non-member gets ErrUnauthorized (see RequireMember) and only
// then ask the narrower question that yields ErrForbidden.

// RequireMember returns an ErrUnauthorized error unless m is the owner or a
// team member.
func RequireMember(m Membership) error {
	if !m.IsMember() {
		return Unauthorized("not a member of this project")
	}
	return nil
}

func CanViewTask(m Membership) bool {
	if m.IsOwner() {
		return true
	}
	return m.Can(PermViewTask)
}

func CanCreateTask(m Membership) bool {
	if m.IsOwner() {
		return true
	}
	return m.Can(PermCreateTask)
}

// CanAssignTask reports whether m may assign tasks to users other than
// themselves.
func CanAssignTask(m Membership) bool {
	if m.IsOwner() {
		return true
	}
	return m.Can(PermAssignTask)
}

// CanEditTask covers non-status fields, reassignment included. Developers may
// edit only the tasks currently assigned to them.
func CanEditTask(m Membership, task *models.Task, username string) bool {
	if m.IsOwner() {
		return true
	}
	if m.Kind != Member {
		return false
	}
	if m.Can(PermEditTask) {
		return true
	}
	return m.Role == RoleDeveloper && task != nil && task.IsAssignedTo(username)
}

// CanUpdateTaskStatus is looser than CanEditTask: the assignee may always
// move their own task, whatever their role.
func CanUpdateTaskStatus(m Membership, task *models.Task, username string) bool {
	if m.IsOwner() {
		return true
	}
	if m.Can(PermUpdateTaskStatus) {
		return true
	}
	return m.IsMember() && task != nil && task.IsAssignedTo(username)
}

// CanDeleteTask has no self-assignment override.
func CanDeleteTask(m Membership) bool {
	if m.IsOwner() {
		return true
	}
	return m.Can(PermDeleteTask)
}

// CanManageTeam is an identity check. Managers hold add_member in the
// permission table, but team mutations stay with the owner.
// TODO: revisit once product decides whether managers may add members.
func CanManageTeam(m Membership) bool {
	return m.IsOwner()
}
