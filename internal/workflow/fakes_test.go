package workflow

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"taskflow/internal/models"
)

// memStore implements TaskStore and UserDirectory for testing.
type memStore struct {
	tasks  map[int64]models.Task
	users  map[int64]models.User
	nextID int64
	saves  int
}

func newMemStore(users ...models.User) *memStore {
	m := &memStore{tasks: map[int64]models.Task{}, users: map[int64]models.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memStore) GetUser(_ context.Context, id int64) (models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return models.User{}, &models.NotFoundError{Entity: "user", ID: id}
	}
	return u, nil
}

func (m *memStore) ListUsers(_ context.Context, role models.UserRole) ([]models.User, error) {
	out := []models.User{}
	for _, u := range m.sortedUsers() {
		if u.Active && (role == "" || u.Role == role) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) SearchUsers(_ context.Context, term string) ([]models.User, error) {
	term = strings.ToLower(term)
	out := []models.User{}
	for _, u := range m.sortedUsers() {
		if !u.Active {
			continue
		}
		for _, field := range []string{u.FirstName, u.LastName, u.Username, u.Email} {
			if strings.Contains(strings.ToLower(field), term) {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) UpdateUser(_ context.Context, u models.User) (models.User, error) {
	if _, ok := m.users[u.ID]; !ok {
		return models.User{}, &models.NotFoundError{Entity: "user", ID: u.ID}
	}
	for id, other := range m.users {
		if id == u.ID {
			continue
		}
		if other.Username == u.Username {
			return models.User{}, &models.ConflictError{Entity: "user", Field: "username", Value: u.Username}
		}
		if other.Email != "" && other.Email == u.Email {
			return models.User{}, &models.ConflictError{Entity: "user", Field: "email", Value: u.Email}
		}
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memStore) SetUserActive(_ context.Context, id int64, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return &models.NotFoundError{Entity: "user", ID: id}
	}
	u.Active = active
	m.users[id] = u
	return nil
}

func (m *memStore) sortedUsers() []models.User {
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) GetTask(_ context.Context, id int64) (models.Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return models.Task{}, &models.NotFoundError{Entity: "task", ID: id}
	}
	return t, nil
}

func (m *memStore) ListTasks(_ context.Context, f models.TaskFilter) ([]models.Task, error) {
	out := []models.Task{}
	for _, t := range m.sorted() {
		switch {
		case f.ParentID != nil && (t.ParentID == nil || *t.ParentID != *f.ParentID):
		case f.AssigneeID != nil && !t.IsAssignee(*f.AssigneeID):
		case f.ReporterID != nil && t.ReporterID != *f.ReporterID:
		case f.InvolvedUserID != nil && !t.IsAssignee(*f.InvolvedUserID) && !t.IsReporter(*f.InvolvedUserID):
		case f.Status != "" && t.Status != f.Status:
		case f.ExcludeStatus != "" && t.Status == f.ExcludeStatus:
		case f.Type != "" && t.Type != f.Type:
		case f.TopLevelOnly && t.IsSubtask():
		case f.DueBefore != nil && (t.DueDate == nil || !t.DueDate.Before(*f.DueBefore)):
		default:
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) SearchTasks(_ context.Context, term string) ([]models.Task, error) {
	term = strings.ToLower(term)
	out := []models.Task{}
	for _, t := range m.sorted() {
		if t.IsSubtask() {
			continue
		}
		if strings.Contains(strings.ToLower(t.Title), term) || strings.Contains(strings.ToLower(t.Description), term) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) CreateTask(_ context.Context, t models.Task) (models.Task, error) {
	m.nextID++
	t.ID = m.nextID
	m.tasks[t.ID] = t
	return t, nil
}

func (m *memStore) SaveTask(_ context.Context, t models.Task) (models.Task, error) {
	if _, ok := m.tasks[t.ID]; !ok {
		return models.Task{}, &models.NotFoundError{Entity: "task", ID: t.ID}
	}
	m.saves++
	m.tasks[t.ID] = t
	return t, nil
}

func (m *memStore) DeleteTask(_ context.Context, id int64) error {
	if _, ok := m.tasks[id]; !ok {
		return &models.NotFoundError{Entity: "task", ID: id}
	}
	delete(m.tasks, id)
	for cid, t := range m.tasks {
		if t.ParentID != nil && *t.ParentID == id {
			delete(m.tasks, cid)
		}
	}
	return nil
}

func (m *memStore) sorted() []models.Task {
	out := make([]models.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// fakeClock advances one minute per call.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(time.Minute)
	return c.now
}

func newTestService(store *memStore) (*Service, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)}
	svc := NewService(store, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = clock.Now
	return svc, clock
}

var (
	admin   = models.User{ID: 1, Username: "admin", Role: models.RoleAdmin, Active: true}
	manager = models.User{ID: 2, Username: "manager", Role: models.RoleManager, Active: true}
	devA    = models.User{ID: 3, Username: "dev-a", Role: models.RoleDeveloper, Active: true}
	devB    = models.User{ID: 4, Username: "dev-b", Role: models.RoleDeveloper, Active: true}
	tester  = models.User{ID: 5, Username: "tester", Role: models.RoleTester, Active: true}
)

func callerOf(u models.User) Caller {
	return Caller{ID: u.ID, Role: u.Role}
}

func ptr[T any](v T) *T {
	return &v
}
