package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taskflow/internal/models"
	"taskflow/internal/workflow"
)

// handleCreateTask creates a task reported by the caller.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req workflow.CreateTaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	task, err := s.workflow.Create(c.Request.Context(), callerFrom(c), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": task})
}

// handleListTasks lists tasks narrowed by optional query filters.
func (s *Server) handleListTasks(c *gin.Context) {
	filter, err := parseTaskFilter(c)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	tasks, err := s.workflow.List(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleMyTasks lists tasks the caller reported or is assigned to.
func (s *Server) handleMyTasks(c *gin.Context) {
	tasks, err := s.workflow.Mine(c.Request.Context(), callerFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleSearchTasks searches top-level tasks by title or description.
func (s *Server) handleSearchTasks(c *gin.Context) {
	tasks, err := s.workflow.Search(c.Request.Context(), c.Query("term"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleOverdueTasks lists unfinished tasks past their due date.
func (s *Server) handleOverdueTasks(c *gin.Context) {
	tasks, err := s.workflow.Overdue(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleGetTask returns a task with its subtasks.
func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	task, err := s.workflow.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleListSubtasks lists the direct children of a task.
func (s *Server) handleListSubtasks(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	tasks, err := s.workflow.Subtasks(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleAvailableTransitions lists the statuses a task may move to next.
func (s *Server) handleAvailableTransitions(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	next, err := s.workflow.AvailableTransitions(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"transitions": next})
}

// handleUpdateTask applies a partial edit.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req workflow.UpdateTaskInput
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	task, err := s.workflow.Update(c.Request.Context(), callerFrom(c), id, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleTransitionTask moves a task to the requested status.
func (s *Server) handleTransitionTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req workflow.TransitionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	task, err := s.workflow.Transition(c.Request.Context(), callerFrom(c), id, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleAssignTask sets the assignee of a task.
func (s *Server) handleAssignTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	assigneeID, ok := parseID(c, "assigneeId")
	if !ok {
		return
	}

	task, err := s.workflow.Assign(c.Request.Context(), callerFrom(c), id, assigneeID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleDeleteTask removes a task and its subtasks.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.workflow.Delete(c.Request.Context(), callerFrom(c), id); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// parseTaskFilter reads assignee, reporter, status, type and top_level query parameters.
func parseTaskFilter(c *gin.Context) (models.TaskFilter, error) {
	var filter models.TaskFilter

	for name, dst := range map[string]**int64{"assignee": &filter.AssigneeID, "reporter": &filter.ReporterID} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid %s id %q", name, raw)
		}
		*dst = &id
	}
	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseTaskStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	if raw := c.Query("type"); raw != "" {
		typ, err := models.ParseTaskType(raw)
		if err != nil {
			return filter, err
		}
		filter.Type = typ
	}
	if raw := c.Query("top_level"); raw != "" {
		top, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid top_level value %q", raw)
		}
		filter.TopLevelOnly = top
	}
	return filter, nil
}
