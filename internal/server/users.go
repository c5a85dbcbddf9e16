package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskflow/internal/models"
	"taskflow/internal/workflow"
)

// handleListUsers returns active users, optionally filtered by role.
func (s *Server) handleListUsers(c *gin.Context) {
	var role models.UserRole
	if raw := c.Query("role"); raw != "" {
		parsed, err := models.ParseUserRole(raw)
		if err != nil {
			s.respondError(c, http.StatusBadRequest, err)
			return
		}
		role = parsed
	}

	users, err := s.users.List(c.Request.Context(), callerFrom(c), role)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"users": users})
}

// handleSearchUsers matches the term query against active users.
func (s *Server) handleSearchUsers(c *gin.Context) {
	users, err := s.users.Search(c.Request.Context(), callerFrom(c), c.Query("term"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"users": users})
}

// handleGetUser returns one user.
func (s *Server) handleGetUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	user, err := s.users.Get(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": user})
}

// handleCurrentUser returns the authenticated user.
func (s *Server) handleCurrentUser(c *gin.Context) {
	user, err := s.store.GetUser(c.Request.Context(), callerFrom(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": user})
}

// handleUpdateUser applies a partial profile or role edit.
func (s *Server) handleUpdateUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req workflow.UpdateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	user, err := s.users.Update(c.Request.Context(), callerFrom(c), id, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": user})
}

// handleSetUserActive switches the active flag of an account.
func (s *Server) handleSetUserActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		if err := s.users.SetActive(c.Request.Context(), callerFrom(c), id, active); err != nil {
			s.fail(c, err)
			return
		}
		respondSuccess(c, http.StatusOK, gin.H{"id": id, "active": active})
	}
}
