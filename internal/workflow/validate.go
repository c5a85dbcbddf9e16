package workflow

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"taskflow/internal/models"
)

// CreateTaskInput carries the fields accepted when a task is created.
type CreateTaskInput struct {
	Title          string          `json:"title" validate:"required,max=255"`
	Description    string          `json:"description" validate:"max=20000"`
	Type           models.TaskType `json:"task_type" validate:"required,tasktype"`
	StoryPoints    *int            `json:"story_points" validate:"omitempty,gte=0"`
	EstimatedHours *float64        `json:"estimated_hours" validate:"omitempty,gte=0"`
	DueDate        *time.Time      `json:"due_date"`
	AssigneeID     *int64          `json:"assignee_id" validate:"omitempty,gt=0"`
	ParentID       *int64          `json:"parent_task_id" validate:"omitempty,gt=0"`
}

// UpdateTaskInput is a partial update; nil fields are left unchanged.
type UpdateTaskInput struct {
	Title          *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Description    *string    `json:"description" validate:"omitempty,max=20000"`
	StoryPoints    *int       `json:"story_points" validate:"omitempty,gte=0"`
	EstimatedHours *float64   `json:"estimated_hours" validate:"omitempty,gte=0"`
	ActualHours    *float64   `json:"actual_hours" validate:"omitempty,gte=0"`
	DueDate        *time.Time `json:"due_date"`
	AssigneeID     *int64     `json:"assignee_id" validate:"omitempty,gt=0"`
}

// TransitionInput requests a status change.
type TransitionInput struct {
	Target  models.TaskStatus `json:"target_status" validate:"required,taskstatus"`
	Comment string            `json:"comment" validate:"max=1000"`
}

// UpdateUserInput is a partial profile edit; nil fields are left unchanged.
type UpdateUserInput struct {
	Username  *string          `json:"username" validate:"omitempty,min=3,max=50"`
	Email     *string          `json:"email" validate:"omitempty,email,max=255"`
	FirstName *string          `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string          `json:"last_name" validate:"omitempty,max=100"`
	Role      *models.UserRole `json:"role" validate:"omitempty,userrole"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("tasktype", func(fl validator.FieldLevel) bool {
		return models.TaskType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("taskstatus", func(fl validator.FieldLevel) bool {
		return models.TaskStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("userrole", func(fl validator.FieldLevel) bool {
		return models.UserRole(fl.Field().String()).Valid()
	})
	return v
}

var fieldMessages = map[string]string{
	"required":   "%s is required",
	"max":        "%s must not exceed %s",
	"min":        "%s must be at least %s",
	"gte":        "%s must be greater than or equal to %s",
	"gt":         "%s must be greater than %s",
	"tasktype":   "%s must be one of EPIC, STORY, TASK, SUBTASK, SPIKE",
	"taskstatus": "%s must be one of DRAFT, TODO, IN_PROGRESS, QA, READY_TO_DEPLOY, DONE",
	"userrole":   "%s must be one of ADMIN, MANAGER, DEVELOPER, TESTER",
	"email":      "%s must be a valid email address",
}

// validateInput checks s against its struct tags and returns a
// *models.ValidationError keyed by JSON field name.
func validateInput(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate input: %w", err)
	}

	structType := reflect.TypeOf(s)
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}
	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		name := e.StructField()
		if f, ok := structType.FieldByName(e.StructField()); ok {
			if tag := strings.Split(f.Tag.Get("json"), ",")[0]; tag != "" {
				name = tag
			}
		}
		fields[name] = fieldMessage(name, e)
	}
	return &models.ValidationError{Fields: fields}
}

func fieldMessage(name string, e validator.FieldError) string {
	msg, ok := fieldMessages[e.Tag()]
	if !ok {
		return fmt.Sprintf("%s is invalid", name)
	}
	if strings.Count(msg, "%s") == 2 {
		return fmt.Sprintf(msg, name, e.Param())
	}
	return fmt.Sprintf(msg, name)
}
