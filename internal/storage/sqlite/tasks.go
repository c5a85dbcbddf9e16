package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskflow/internal/models"
)

const taskColumns = `id, title, description, task_type, task_status, story_points, estimated_hours, actual_hours,
        reporter_id, assignee_id, parent_task_id, due_date, created_at, updated_at, completed_at`

func scanTask(row scanner) (models.Task, error) {
	var (
		t              models.Task
		storyPoints    sql.NullInt64
		estimatedHours sql.NullFloat64
		actualHours    sql.NullFloat64
		assigneeID     sql.NullInt64
		parentID       sql.NullInt64
		dueDate        sql.NullTime
		completedAt    sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Type, &t.Status, &storyPoints, &estimatedHours, &actualHours,
		&t.ReporterID, &assigneeID, &parentID, &dueDate, &t.CreatedAt, &t.UpdatedAt, &completedAt)
	if err != nil {
		return models.Task{}, err
	}
	if storyPoints.Valid {
		v := int(storyPoints.Int64)
		t.StoryPoints = &v
	}
	if estimatedHours.Valid {
		t.EstimatedHours = &estimatedHours.Float64
	}
	if actualHours.Valid {
		t.ActualHours = &actualHours.Float64
	}
	if assigneeID.Valid {
		t.AssigneeID = &assigneeID.Int64
	}
	if parentID.Valid {
		t.ParentID = &parentID.Int64
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return t, nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (models.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, &models.NotFoundError{Entity: "task", ID: id}
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks returns tasks matching filter ordered by id.
func (s *Store) ListTasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.AssigneeID != nil {
		where = append(where, "assignee_id = ?")
		args = append(args, *filter.AssigneeID)
	}
	if filter.ReporterID != nil {
		where = append(where, "reporter_id = ?")
		args = append(args, *filter.ReporterID)
	}
	if filter.InvolvedUserID != nil {
		where = append(where, "(assignee_id = ? OR reporter_id = ?)")
		args = append(args, *filter.InvolvedUserID, *filter.InvolvedUserID)
	}
	if filter.Status != "" {
		where = append(where, "task_status = ?")
		args = append(args, filter.Status)
	}
	if filter.ExcludeStatus != "" {
		where = append(where, "task_status != ?")
		args = append(args, filter.ExcludeStatus)
	}
	if filter.Type != "" {
		where = append(where, "task_type = ?")
		args = append(args, filter.Type)
	}
	if filter.ParentID != nil {
		where = append(where, "parent_task_id = ?")
		args = append(args, *filter.ParentID)
	}
	if filter.TopLevelOnly {
		where = append(where, "parent_task_id IS NULL")
	}
	if filter.DueBefore != nil {
		where = append(where, "due_date IS NOT NULL AND due_date < ?")
		args = append(args, *filter.DueBefore)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	return s.queryTasks(ctx, query, args...)
}

// SearchTasks matches term against title and description of top-level tasks, ignoring case.
func (s *Store) SearchTasks(ctx context.Context, term string) ([]models.Task, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks
        WHERE parent_task_id IS NULL AND (LOWER(title) LIKE ? OR LOWER(description) LIKE ?)
        ORDER BY id`, pattern, pattern)
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CreateTask inserts a new task and returns the stored row.
func (s *Store) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return models.Task{}, fmt.Errorf("task title must not be empty")
	}
	if !t.Status.Valid() {
		t.Status = models.StatusDraft
	}
	normalizeTimes(&t)

	res, err := s.db.ExecContext(ctx, `INSERT INTO tasks(title, description, task_type, task_status, story_points,
        estimated_hours, actual_hours, reporter_id, assignee_id, parent_task_id, due_date, created_at, updated_at, completed_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, t.Type, t.Status, t.StoryPoints,
		t.EstimatedHours, t.ActualHours, t.ReporterID, t.AssigneeID, t.ParentID, t.DueDate, t.CreatedAt, t.UpdatedAt, t.CompletedAt)
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Task{}, fmt.Errorf("task id: %w", err)
	}
	s.logger.Debug("task inserted", "id", id)
	return s.GetTask(ctx, id)
}

// SaveTask writes the mutable fields of an existing task. Reporter, type,
// parent and creation time are never rewritten.
func (s *Store) SaveTask(ctx context.Context, t models.Task) (models.Task, error) {
	normalizeTimes(&t)
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET title = ?, description = ?, task_status = ?, story_points = ?,
        estimated_hours = ?, actual_hours = ?, assignee_id = ?, due_date = ?, updated_at = ?, completed_at = ?
        WHERE id = ?`,
		t.Title, t.Description, t.Status, t.StoryPoints,
		t.EstimatedHours, t.ActualHours, t.AssigneeID, t.DueDate, t.UpdatedAt, t.CompletedAt, t.ID)
	if err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.Task{}, err
	}
	if affected == 0 {
		return models.Task{}, &models.NotFoundError{Entity: "task", ID: t.ID}
	}
	return s.GetTask(ctx, t.ID)
}

// DeleteTask removes a task; subtasks go with it through the foreign key cascade.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &models.NotFoundError{Entity: "task", ID: id}
	}
	return nil
}

// normalizeTimes stores every timestamp in UTC so that text comparisons in
// SQLite order them correctly.
func normalizeTimes(t *models.Task) {
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	if t.DueDate != nil {
		due := t.DueDate.UTC()
		t.DueDate = &due
	}
	if t.CompletedAt != nil {
		completed := t.CompletedAt.UTC()
		t.CompletedAt = &completed
	}
}
