package models

import (
	"fmt"
	"strings"
)

// TaskType classifies a task.
type TaskType string

const (
	TypeEpic    TaskType = "EPIC"
	TypeStory   TaskType = "STORY"
	TypeTask    TaskType = "TASK"
	TypeSubtask TaskType = "SUBTASK"
	TypeSpike   TaskType = "SPIKE"
)

// TaskTypes lists every task type.
var TaskTypes = []TaskType{TypeEpic, TypeStory, TypeTask, TypeSubtask, TypeSpike}

var typeNames = map[TaskType]string{
	TypeEpic:    "Epic",
	TypeStory:   "Story",
	TypeTask:    "Task",
	TypeSubtask: "Subtask",
	TypeSpike:   "Spike",
}

// ParseTaskType converts the wire form of a task type, ignoring case.
func ParseTaskType(raw string) (TaskType, error) {
	t := TaskType(strings.ToUpper(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown task type %q", raw)
	}
	return t, nil
}

// Valid reports whether t is one of the known task types.
func (t TaskType) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// DisplayName returns the human readable label.
func (t TaskType) DisplayName() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return string(t)
}

// UserRole is the fixed role a user holds.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleManager   UserRole = "MANAGER"
	RoleDeveloper UserRole = "DEVELOPER"
	RoleTester    UserRole = "TESTER"
)

// Roles lists every role.
var Roles = []UserRole{RoleAdmin, RoleManager, RoleDeveloper, RoleTester}

var roleNames = map[UserRole]string{
	RoleAdmin:     "Admin",
	RoleManager:   "Manager",
	RoleDeveloper: "Developer",
	RoleTester:    "Tester",
}

// ParseUserRole converts the wire form of a role, ignoring case.
func ParseUserRole(raw string) (UserRole, error) {
	r := UserRole(strings.ToUpper(strings.TrimSpace(raw)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown user role %q", raw)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// DisplayName returns the human readable label.
func (r UserRole) DisplayName() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return string(r)
}

// originationPolicy is the static role x type creation matrix. Subtasks for
// developers and testers are decided per instance and are absent here.
var originationPolicy = map[UserRole]map[TaskType]bool{
	RoleAdmin: {
		TypeEpic: true, TypeStory: true, TypeTask: true, TypeSpike: true, TypeSubtask: true,
	},
	RoleManager: {
		TypeEpic: true, TypeStory: true, TypeTask: true, TypeSpike: true,
	},
	RoleDeveloper: {},
	RoleTester:    {},
}

// MayOriginate reports whether the static matrix lets role create taskType
// without looking at any task instance.
func MayOriginate(role UserRole, taskType TaskType) bool {
	return originationPolicy[role][taskType]
}

// OriginatesSubtasksByAssignment reports whether role may create subtasks
// under stories assigned to it.
func OriginatesSubtasksByAssignment(role UserRole) bool {
	return role == RoleDeveloper || role == RoleTester
}
