package models

import (
	"fmt"
	"slices"
	"strings"
)

// TaskStatus is a lifecycle stage of a task.
type TaskStatus string

const (
	StatusDraft         TaskStatus = "DRAFT"
	StatusTodo          TaskStatus = "TODO"
	StatusInProgress    TaskStatus = "IN_PROGRESS"
	StatusQA            TaskStatus = "QA"
	StatusReadyToDeploy TaskStatus = "READY_TO_DEPLOY"
	StatusDone          TaskStatus = "DONE"
)

// Statuses lists every status in lifecycle order.
var Statuses = []TaskStatus{
	StatusDraft,
	StatusTodo,
	StatusInProgress,
	StatusQA,
	StatusReadyToDeploy,
	StatusDone,
}

var statusNames = map[TaskStatus]string{
	StatusDraft:         "Draft",
	StatusTodo:          "To Do",
	StatusInProgress:    "In Progress",
	StatusQA:            "QA",
	StatusReadyToDeploy: "Ready to Deploy",
	StatusDone:          "Done",
}

// statusGraph holds the legal successors of each status. Backward edges
// model rework and never skip more than one stage.
var statusGraph = map[TaskStatus][]TaskStatus{
	StatusDraft:         {StatusTodo},
	StatusTodo:          {StatusInProgress},
	StatusInProgress:    {StatusQA, StatusTodo},
	StatusQA:            {StatusReadyToDeploy, StatusInProgress},
	StatusReadyToDeploy: {StatusDone, StatusQA},
	StatusDone:          {},
}

// ParseTaskStatus converts the wire form of a status, ignoring case.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	s := TaskStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown task status %q", raw)
	}
	return s, nil
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Order returns the position of s in the lifecycle, or -1 when unknown.
func (s TaskStatus) Order() int {
	return slices.Index(Statuses, s)
}

// DisplayName returns the human readable label.
func (s TaskStatus) DisplayName() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return string(s)
}

// Terminal reports whether no transition leaves s.
func (s TaskStatus) Terminal() bool {
	return s.Valid() && len(statusGraph[s]) == 0
}

// AllowedTransitions returns the statuses reachable from s in one step.
// The result is a copy; unknown statuses have no successors.
func AllowedTransitions(s TaskStatus) []TaskStatus {
	return slices.Clone(statusGraph[s])
}

// CanTransition reports whether moving from one status to another follows
// an edge of the workflow graph.
func CanTransition(from, to TaskStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	return slices.Contains(statusGraph[from], to)
}
