package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taskflow/internal/auth"
	"taskflow/internal/models"
	"taskflow/internal/storage/sqlite"
	"taskflow/internal/workflow"
)

// Server provides HTTP handlers for the task workflow backend.
type Server struct {
	engine   *gin.Engine
	store    *sqlite.Store
	workflow *workflow.Service
	users    *workflow.UserService
	tokens   *auth.TokenManager
	logger   *slog.Logger
}

// New constructs the HTTP server with routes and middleware configured.
func New(store *sqlite.Store, svc *workflow.Service, tokens *auth.TokenManager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	srv := &Server{
		engine:   router,
		store:    store,
		workflow: svc,
		users:    workflow.NewUserService(store, logger),
		tokens:   tokens,
		logger:   logger,
	}
	router.Use(srv.requestID(), srv.requestLogger())

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	api.GET("/healthz", s.handleHealth)

	secured := api.Group("", s.authenticate())
	{
		users := secured.Group("/users")
		{
			users.GET("", s.handleListUsers)
			users.GET("/search", s.handleSearchUsers)
			users.GET("/me", s.handleCurrentUser)
			users.GET(":id", s.handleGetUser)
			users.PUT(":id", s.handleUpdateUser)
			users.PUT(":id/activate", s.handleSetUserActive(true))
			users.PUT(":id/deactivate", s.handleSetUserActive(false))
		}

		tasks := secured.Group("/tasks")
		{
			tasks.POST("", s.handleCreateTask)
			tasks.GET("", s.handleListTasks)
			tasks.GET("/my", s.handleMyTasks)
			tasks.GET("/search", s.handleSearchTasks)
			tasks.GET("/overdue", s.handleOverdueTasks)
			tasks.GET(":id", s.handleGetTask)
			tasks.GET(":id/subtasks", s.handleListSubtasks)
			tasks.GET(":id/transitions", s.handleAvailableTransitions)
			tasks.PUT(":id", s.handleUpdateTask)
			tasks.PUT(":id/transition", s.handleTransitionTask)
			tasks.PUT(":id/assign/:assigneeId", s.handleAssignTask)
			tasks.DELETE(":id", s.handleDeleteTask)
		}
	}

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})
}

// handleHealth reports readiness including database reachability.
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.respondError(c, http.StatusServiceUnavailable, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to int64 with error handling.
func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return 0, false
	}
	return id, true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail responds with the status matching err.
func (s *Server) fail(c *gin.Context, err error) {
	s.respondError(c, statusFor(err), err)
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(c.Request.Context(), level, "request failed",
		slog.String("path", c.FullPath()),
		slog.String("request_id", c.GetString(requestIDKey)),
		slog.String("error", err.Error()))

	body := gin.H{"error": err.Error()}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	var terr *models.TransitionError
	if errors.As(err, &terr) {
		body["task_id"] = terr.TaskID
		body["current_status"] = terr.From
		body["target_status"] = terr.To
	}
	c.JSON(status, body)
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
