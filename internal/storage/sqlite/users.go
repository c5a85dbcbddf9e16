package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"taskflow/internal/models"
)

const userColumns = `id, username, email, first_name, last_name, role, active, created_at, updated_at`

func scanUser(row scanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func normalizeUser(u *models.User) error {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.TrimSpace(u.Email)
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.LastName = strings.TrimSpace(u.LastName)
	if u.Username == "" {
		return fmt.Errorf("username must not be empty")
	}
	if u.Email == "" {
		return fmt.Errorf("email must not be empty")
	}
	if !u.Role.Valid() {
		return fmt.Errorf("unknown role %q", u.Role)
	}
	return nil
}

// userConflict turns a unique constraint failure into a ConflictError naming
// the clashing column.
func userConflict(err error, u models.User) error {
	var serr sqlite3.Error
	if !errors.As(err, &serr) || serr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return nil
	}
	if strings.Contains(serr.Error(), "users.email") {
		return &models.ConflictError{Entity: "user", Field: "email", Value: u.Email}
	}
	return &models.ConflictError{Entity: "user", Field: "username", Value: u.Username}
}

// CreateUser persists a new active user.
func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	if err := normalizeUser(&u); err != nil {
		return models.User{}, err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO users(username, email, first_name, last_name, role, active, created_at, updated_at)
        VALUES(?, ?, ?, ?, ?, 1, ?, ?)`,
		u.Username, u.Email, u.FirstName, u.LastName, u.Role, now, now)
	if err != nil {
		if cerr := userConflict(err, u); cerr != nil {
			return models.User{}, cerr
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, fmt.Errorf("user id: %w", err)
	}
	return s.GetUser(ctx, id)
}

// UpdateUser rewrites the profile and role of an existing user. The active
// flag and creation time are left alone.
func (s *Store) UpdateUser(ctx context.Context, u models.User) (models.User, error) {
	if err := normalizeUser(&u); err != nil {
		return models.User{}, err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE users SET username = ?, email = ?, first_name = ?, last_name = ?, role = ?, updated_at = ?
        WHERE id = ?`,
		u.Username, u.Email, u.FirstName, u.LastName, u.Role, time.Now().UTC(), u.ID)
	if err != nil {
		if cerr := userConflict(err, u); cerr != nil {
			return models.User{}, cerr
		}
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.User{}, err
	}
	if affected == 0 {
		return models.User{}, &models.NotFoundError{Entity: "user", ID: u.ID}
	}
	return s.GetUser(ctx, u.ID)
}

// GetUser fetches a single user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, &models.NotFoundError{Entity: "user", ID: id}
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListUsers returns active users, optionally restricted to one role.
func (s *Store) ListUsers(ctx context.Context, role models.UserRole) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE active = 1`
	var args []any
	if role != "" {
		query += ` AND role = ?`
		args = append(args, role)
	}
	query += ` ORDER BY id`
	return s.queryUsers(ctx, query, args...)
}

// SearchUsers matches term against names, username and email of active users, ignoring case.
func (s *Store) SearchUsers(ctx context.Context, term string) ([]models.User, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
	return s.queryUsers(ctx, `SELECT `+userColumns+` FROM users
        WHERE active = 1 AND (LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(email) LIKE ?)
        ORDER BY id`, pattern, pattern, pattern, pattern)
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetUserActive activates or deactivates a user.
func (s *Store) SetUserActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET active = ?, updated_at = ? WHERE id = ?`, active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &models.NotFoundError{Entity: "user", ID: id}
	}
	return nil
}
