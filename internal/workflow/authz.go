package workflow

import "taskflow/internal/models"

// Caller is the authenticated identity performing an operation. It is
// resolved upstream and passed explicitly to every call.
type Caller struct {
	ID   int64
	Role models.UserRole
}

func (c Caller) privileged() bool {
	return c.Role == models.RoleAdmin || c.Role == models.RoleManager
}

// CanCreate decides whether the caller may originate a task of taskType.
// parent is the already loaded parent task, or nil when none was given.
func CanCreate(c Caller, taskType models.TaskType, parent *models.Task) bool {
	if models.MayOriginate(c.Role, taskType) {
		return true
	}
	if taskType != models.TypeSubtask || !models.OriginatesSubtasksByAssignment(c.Role) {
		return false
	}
	return parent != nil &&
		parent.Type == models.TypeStory &&
		parent.IsAssignee(c.ID)
}

// CanEdit allows admins, managers, the reporter and the assignee.
func CanEdit(c Caller, t *models.Task) bool {
	return c.privileged() || t.IsReporter(c.ID) || t.IsAssignee(c.ID)
}

// CanTransition allows admins, managers and the assignee. Reporting a task
// does not grant the right to move it.
func CanTransition(c Caller, t *models.Task) bool {
	return c.privileged() || t.IsAssignee(c.ID)
}

// CanAssign allows admins, managers and the reporter.
func CanAssign(c Caller, t *models.Task) bool {
	return c.privileged() || t.IsReporter(c.ID)
}

// CanDelete allows admins, managers and the reporter.
func CanDelete(c Caller, t *models.Task) bool {
	return c.privileged() || t.IsReporter(c.ID)
}

// CanManageUsers allows admins and managers to read, search and edit user accounts.
func CanManageUsers(c Caller) bool {
	return c.privileged()
}

// CanChangeActivation allows only admins to activate or deactivate accounts.
func CanChangeActivation(c Caller) bool {
	return c.Role == models.RoleAdmin
}
