package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskflow/internal/models"
	"taskflow/internal/workflow"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	callerKey       = "caller"
)

var errUnauthenticated = errors.New("authentication required")

// requestID tags each request with an id, reusing the inbound header when present.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requestLogger writes one structured line per API request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if !strings.HasPrefix(c.Request.URL.Path, "/api") {
			return
		}
		s.logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", c.GetString(requestIDKey)))
	}
}

// authenticate resolves the bearer token to an active user and stores the
// caller identity on the context. The role always comes from the user record.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, raw, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
			s.unauthenticated(c, errUnauthenticated)
			return
		}

		claims, err := s.tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			s.unauthenticated(c, err)
			return
		}
		userID, err := claims.UserID()
		if err != nil {
			s.unauthenticated(c, err)
			return
		}
		user, err := s.store.GetUser(c.Request.Context(), userID)
		if errors.Is(err, models.ErrNotFound) {
			s.unauthenticated(c, err)
			return
		}
		if err != nil {
			s.respondError(c, http.StatusInternalServerError, err)
			c.Abort()
			return
		}
		if !user.Active {
			s.unauthenticated(c, fmt.Errorf("user %d is inactive", user.ID))
			return
		}

		c.Set(callerKey, workflow.Caller{ID: user.ID, Role: user.Role})
		c.Next()
	}
}

func (s *Server) unauthenticated(c *gin.Context, err error) {
	s.logger.Warn("authentication failed",
		slog.String("path", c.Request.URL.Path),
		slog.String("request_id", c.GetString(requestIDKey)),
		slog.String("error", err.Error()))
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthenticated.Error()})
}

// callerFrom returns the identity set by authenticate.
func callerFrom(c *gin.Context) workflow.Caller {
	caller, _ := c.MustGet(callerKey).(workflow.Caller)
	return caller
}
