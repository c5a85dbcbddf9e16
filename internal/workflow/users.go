package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"taskflow/internal/models"
)

// UserDirectory persists user accounts.
type UserDirectory interface {
	UserStore
	ListUsers(ctx context.Context, role models.UserRole) ([]models.User, error)
	SearchUsers(ctx context.Context, term string) ([]models.User, error)
	UpdateUser(ctx context.Context, u models.User) (models.User, error)
	SetUserActive(ctx context.Context, id int64, active bool) error
}

// UserService gates account administration. Role changes take effect on the
// user's next request because callers are resolved from the stored record.
type UserService struct {
	users  UserDirectory
	logger *slog.Logger
}

// NewUserService wires the service to its directory.
func NewUserService(users UserDirectory, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{users: users, logger: logger}
}

// List returns active users, optionally narrowed to one role.
func (s *UserService) List(ctx context.Context, caller Caller, role models.UserRole) ([]models.User, error) {
	if !CanManageUsers(caller) {
		return nil, s.deny(caller, "list users")
	}
	return s.users.ListUsers(ctx, role)
}

// Get returns one user by id.
func (s *UserService) Get(ctx context.Context, caller Caller, id int64) (models.User, error) {
	if !CanManageUsers(caller) {
		return models.User{}, s.deny(caller, "view users")
	}
	return s.users.GetUser(ctx, id)
}

// Search matches term against names, username and email of active users.
func (s *UserService) Search(ctx context.Context, caller Caller, term string) ([]models.User, error) {
	if !CanManageUsers(caller) {
		return nil, s.deny(caller, "search users")
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, &models.ValidationError{Fields: map[string]string{"search_term": "search_term is required"}}
	}
	return s.users.SearchUsers(ctx, term)
}

// Update applies the supplied profile fields, role included.
func (s *UserService) Update(ctx context.Context, caller Caller, id int64, in UpdateUserInput) (models.User, error) {
	if !CanManageUsers(caller) {
		return models.User{}, s.deny(caller, fmt.Sprintf("update user %d", id))
	}
	if err := validateInput(&in); err != nil {
		return models.User{}, err
	}

	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	previousRole := user.Role
	if in.Username != nil {
		user.Username = *in.Username
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}
	if in.Role != nil {
		user.Role = *in.Role
	}

	updated, err := s.users.UpdateUser(ctx, user)
	if err != nil {
		return models.User{}, err
	}
	attrs := []any{slog.Int64("target_user_id", id), slog.Int64("user_id", caller.ID)}
	if updated.Role != previousRole {
		attrs = append(attrs, slog.String("from_role", string(previousRole)), slog.String("to_role", string(updated.Role)))
	}
	s.logger.Info("user updated", attrs...)
	return updated, nil
}

// SetActive activates or deactivates an account.
func (s *UserService) SetActive(ctx context.Context, caller Caller, id int64, active bool) error {
	action := "deactivate"
	if active {
		action = "activate"
	}
	if !CanChangeActivation(caller) {
		return s.deny(caller, fmt.Sprintf("%s user %d", action, id))
	}
	if err := s.users.SetUserActive(ctx, id, active); err != nil {
		return err
	}
	s.logger.Info("user "+action+"d", slog.Int64("target_user_id", id), slog.Int64("user_id", caller.ID))
	return nil
}

func (s *UserService) deny(caller Caller, action string) error {
	s.logger.Warn("operation denied",
		slog.String("action", action),
		slog.Int64("user_id", caller.ID),
		slog.String("role", string(caller.Role)))
	return &models.AuthorizationError{Action: action, UserID: caller.ID}
}
