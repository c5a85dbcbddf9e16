// Package workflow applies authorization and lifecycle rules to task mutations.
package workflow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"taskflow/internal/models"
)

// TaskStore persists tasks. Lookups of unknown ids return an error matching
// models.ErrNotFound.
type TaskStore interface {
	GetTask(ctx context.Context, id int64) (models.Task, error)
	ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	SearchTasks(ctx context.Context, term string) ([]models.Task, error)
	CreateTask(ctx context.Context, t models.Task) (models.Task, error)
	SaveTask(ctx context.Context, t models.Task) (models.Task, error)
	// DeleteTask removes the task and its direct subtasks.
	DeleteTask(ctx context.Context, id int64) error
}

// UserStore resolves user identities.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (models.User, error)
}

// Service orchestrates load, authorize, validate and persist for every task operation.
type Service struct {
	tasks  TaskStore
	users  UserStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the service to its stores.
func NewService(tasks TaskStore, users UserStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tasks:  tasks,
		users:  users,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the input, checks creation rights and stores a new DRAFT task
// reported by the caller.
func (s *Service) Create(ctx context.Context, caller Caller, in CreateTaskInput) (models.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := validateInput(&in); err != nil {
		return models.Task{}, err
	}

	var parent *models.Task
	if in.ParentID != nil {
		p, err := s.tasks.GetTask(ctx, *in.ParentID)
		if err != nil {
			return models.Task{}, err
		}
		// The hierarchy is two levels deep.
		if p.IsSubtask() {
			return models.Task{}, &models.ValidationError{Fields: map[string]string{
				"parent_task_id": "parent_task_id must reference a top-level task",
			}}
		}
		parent = &p
	}

	if !CanCreate(caller, in.Type, parent) {
		return models.Task{}, s.deny(caller, "create "+in.Type.DisplayName(), 0)
	}

	if in.AssigneeID != nil {
		if _, err := s.users.GetUser(ctx, *in.AssigneeID); err != nil {
			return models.Task{}, err
		}
	}

	now := s.now()
	task, err := s.tasks.CreateTask(ctx, models.Task{
		Title:          in.Title,
		Description:    in.Description,
		Type:           in.Type,
		Status:         models.StatusDraft,
		StoryPoints:    in.StoryPoints,
		EstimatedHours: in.EstimatedHours,
		ReporterID:     caller.ID,
		AssigneeID:     in.AssigneeID,
		ParentID:       in.ParentID,
		DueDate:        in.DueDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return models.Task{}, err
	}

	s.logger.Info("task created",
		slog.Int64("task_id", task.ID),
		slog.String("type", string(task.Type)),
		slog.Int64("reporter_id", caller.ID))
	return task, nil
}

// Update applies the supplied fields only. Changing the assignee through an
// edit additionally requires assignment rights.
func (s *Service) Update(ctx context.Context, caller Caller, taskID int64, in UpdateTaskInput) (models.Task, error) {
	if in.Title != nil {
		trimmed := strings.TrimSpace(*in.Title)
		in.Title = &trimmed
	}
	if err := validateInput(&in); err != nil {
		return models.Task{}, err
	}

	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}
	if !CanEdit(caller, &task) {
		return models.Task{}, s.deny(caller, "edit", taskID)
	}
	if in.AssigneeID != nil {
		if !CanAssign(caller, &task) {
			return models.Task{}, s.deny(caller, "assign", taskID)
		}
		if _, err := s.users.GetUser(ctx, *in.AssigneeID); err != nil {
			return models.Task{}, err
		}
		task.AssigneeID = in.AssigneeID
	}

	if in.Title != nil {
		task.Title = *in.Title
	}
	if in.Description != nil {
		task.Description = strings.TrimSpace(*in.Description)
	}
	if in.StoryPoints != nil {
		task.StoryPoints = in.StoryPoints
	}
	if in.EstimatedHours != nil {
		task.EstimatedHours = in.EstimatedHours
	}
	if in.ActualHours != nil {
		task.ActualHours = in.ActualHours
	}
	if in.DueDate != nil {
		task.DueDate = in.DueDate
	}
	task.Touch(s.now())

	updated, err := s.tasks.SaveTask(ctx, task)
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Info("task updated", slog.Int64("task_id", taskID), slog.Int64("user_id", caller.ID))
	return updated, nil
}

// Transition moves the task one edge along the workflow graph.
func (s *Service) Transition(ctx context.Context, caller Caller, taskID int64, in TransitionInput) (models.Task, error) {
	if err := validateInput(&in); err != nil {
		return models.Task{}, err
	}

	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}
	if !CanTransition(caller, &task) {
		return models.Task{}, s.deny(caller, "transition", taskID)
	}

	from := task.Status
	if err := task.TransitionTo(in.Target, s.now()); err != nil {
		s.logger.Warn("transition rejected",
			slog.Int64("task_id", taskID),
			slog.String("from", string(from)),
			slog.String("to", string(in.Target)))
		return models.Task{}, err
	}

	updated, err := s.tasks.SaveTask(ctx, task)
	if err != nil {
		return models.Task{}, err
	}
	direction := "forward"
	if in.Target.Order() < from.Order() {
		direction = "back"
	}
	attrs := []any{
		slog.Int64("task_id", taskID),
		slog.String("from", string(from)),
		slog.String("to", string(in.Target)),
		slog.String("direction", direction),
		slog.Int64("user_id", caller.ID),
	}
	if in.Comment != "" {
		attrs = append(attrs, slog.String("comment", in.Comment))
	}
	s.logger.Info("task transitioned", attrs...)
	return updated, nil
}

// Assign sets the assignee regardless of the current status.
func (s *Service) Assign(ctx context.Context, caller Caller, taskID, assigneeID int64) (models.Task, error) {
	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}
	if !CanAssign(caller, &task) {
		return models.Task{}, s.deny(caller, "assign", taskID)
	}
	if _, err := s.users.GetUser(ctx, assigneeID); err != nil {
		return models.Task{}, err
	}

	task.AssigneeID = &assigneeID
	task.Touch(s.now())

	updated, err := s.tasks.SaveTask(ctx, task)
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Info("task assigned",
		slog.Int64("task_id", taskID),
		slog.Int64("assignee_id", assigneeID),
		slog.Int64("user_id", caller.ID))
	return updated, nil
}

// Delete removes the task together with its direct subtasks.
func (s *Service) Delete(ctx context.Context, caller Caller, taskID int64) error {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if !CanDelete(caller, &task) {
		return s.deny(caller, "delete", taskID)
	}
	if err := s.tasks.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	attrs := []any{slog.Int64("task_id", taskID), slog.Int64("user_id", caller.ID)}
	if task.HasSubtasks() {
		attrs = append(attrs, slog.Int("subtasks_removed", len(task.Subtasks)))
	}
	s.logger.Info("task deleted", attrs...)
	return nil
}

// AvailableTransitions lists the statuses the task may move to next.
func (s *Service) AvailableTransitions(ctx context.Context, taskID int64) ([]models.TaskStatus, error) {
	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status.Terminal() {
		return []models.TaskStatus{}, nil
	}
	return models.AllowedTransitions(task.Status), nil
}

// Get returns the task with its direct subtasks loaded.
func (s *Service) Get(ctx context.Context, taskID int64) (models.Task, error) {
	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}
	subtasks, err := s.tasks.ListTasks(ctx, models.TaskFilter{ParentID: &taskID})
	if err != nil {
		return models.Task{}, err
	}
	task.Subtasks = subtasks
	return task, nil
}

// List returns tasks matching filter.
func (s *Service) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	return s.tasks.ListTasks(ctx, filter)
}

// Subtasks returns the direct children of parentID.
func (s *Service) Subtasks(ctx context.Context, parentID int64) ([]models.Task, error) {
	if _, err := s.tasks.GetTask(ctx, parentID); err != nil {
		return nil, err
	}
	return s.tasks.ListTasks(ctx, models.TaskFilter{ParentID: &parentID})
}

// Mine returns tasks the caller reported or is assigned to.
func (s *Service) Mine(ctx context.Context, caller Caller) ([]models.Task, error) {
	return s.tasks.ListTasks(ctx, models.TaskFilter{InvolvedUserID: &caller.ID})
}

// Search matches term against title and description of top-level tasks.
func (s *Service) Search(ctx context.Context, term string) ([]models.Task, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, &models.ValidationError{Fields: map[string]string{"search_term": "search_term is required"}}
	}
	return s.tasks.SearchTasks(ctx, term)
}

// Overdue returns unfinished tasks whose due date has passed.
func (s *Service) Overdue(ctx context.Context) ([]models.Task, error) {
	now := s.now()
	return s.tasks.ListTasks(ctx, models.TaskFilter{DueBefore: &now, ExcludeStatus: models.StatusDone})
}

func (s *Service) deny(caller Caller, action string, taskID int64) error {
	s.logger.Warn("operation denied",
		slog.String("action", action),
		slog.Int64("task_id", taskID),
		slog.Int64("user_id", caller.ID),
		slog.String("role", string(caller.Role)))
	return &models.AuthorizationError{Action: strings.ToLower(action), UserID: caller.ID, TaskID: taskID}
}
