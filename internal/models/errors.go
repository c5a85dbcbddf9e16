package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("already exists")
)

// NotFoundError names the entity and id that did not resolve.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found with id: %d", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// TransitionError reports a status change with no edge in the workflow graph.
type TransitionError struct {
	TaskID int64
	From   TaskStatus
	To     TaskStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition task %d from %s to %s", e.TaskID, e.From.DisplayName(), e.To.DisplayName())
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// AuthorizationError reports a denied action.
type AuthorizationError struct {
	Action string
	UserID int64
	TaskID int64
}

func (e *AuthorizationError) Error() string {
	if e.TaskID == 0 {
		return fmt.Sprintf("user %d is not authorized to %s", e.UserID, e.Action)
	}
	return fmt.Sprintf("user %d is not authorized to %s task %d", e.UserID, e.Action, e.TaskID)
}

func (e *AuthorizationError) Is(target error) bool {
	return target == ErrUnauthorized
}

// ConflictError reports a unique field already held by another record.
type ConflictError struct {
	Entity string
	Field  string
	Value  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Entity, e.Field, e.Value)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ValidationError maps offending fields to messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
