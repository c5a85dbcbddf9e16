package workflow

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"taskflow/internal/models"
)

func createStory(t *testing.T, svc *Service, assignee *int64) models.Task {
	t.Helper()
	task, err := svc.Create(context.Background(), callerOf(manager), CreateTaskInput{
		Title:      "Checkout flow",
		Type:       models.TypeStory,
		AssigneeID: assignee,
	})
	if err != nil {
		t.Fatalf("Create story: %v", err)
	}
	return task
}

func TestCreateStoresDraftReportedByCaller(t *testing.T) {
	store := newMemStore(manager, devA)
	svc, _ := newTestService(store)

	task, err := svc.Create(context.Background(), callerOf(manager), CreateTaskInput{
		Title:       "  Checkout flow  ",
		Description: "Pay with card",
		Type:        models.TypeStory,
		StoryPoints: ptr(3),
		AssigneeID:  ptr(devA.ID),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.Status != models.StatusDraft {
		t.Errorf("status = %s, want DRAFT", task.Status)
	}
	if task.ReporterID != manager.ID {
		t.Errorf("reporter = %d, want %d", task.ReporterID, manager.ID)
	}
	if task.Title != "Checkout flow" {
		t.Errorf("title not trimmed: %q", task.Title)
	}
	if !task.CreatedAt.Equal(task.UpdatedAt) || task.CreatedAt.IsZero() {
		t.Errorf("timestamps not initialised: %v %v", task.CreatedAt, task.UpdatedAt)
	}
	if task.CompletedAt != nil {
		t.Error("completed_at set on creation")
	}
}

func TestCreateValidationRunsBeforeAuthorization(t *testing.T) {
	store := newMemStore(devA)
	svc, _ := newTestService(store)

	_, err := svc.Create(context.Background(), callerOf(devA), CreateTaskInput{Title: "   ", Type: models.TypeEpic})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := verr.Fields["title"]; !ok {
		t.Fatalf("title not reported: %v", verr.Fields)
	}

	_, err = svc.Create(context.Background(), callerOf(devA), CreateTaskInput{Title: "Bug", Type: "BUG"})
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown type, got %v", err)
	}

	_, err = svc.Create(context.Background(), callerOf(devA), CreateTaskInput{Title: "Epic", Type: models.TypeEpic, StoryPoints: ptr(-1)})
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation for negative points, got %v", err)
	}
}

func TestCreateRoleMatrixWithoutParent(t *testing.T) {
	users := []models.User{admin, manager, devA, tester}
	for _, u := range users {
		for _, typ := range models.TaskTypes {
			store := newMemStore(users...)
			svc, _ := newTestService(store)

			_, err := svc.Create(context.Background(), callerOf(u), CreateTaskInput{Title: "t", Type: typ})
			allowed := models.MayOriginate(u.Role, typ)
			switch {
			case allowed && err != nil:
				t.Errorf("%s creating %s: unexpected error %v", u.Role, typ, err)
			case !allowed && !errors.Is(err, models.ErrUnauthorized):
				t.Errorf("%s creating %s: expected ErrUnauthorized, got %v", u.Role, typ, err)
			}
			if !allowed && len(store.tasks) != 0 {
				t.Errorf("%s creating %s: denied create stored a task", u.Role, typ)
			}
		}
	}
}

func TestCreateSubtaskByDeveloper(t *testing.T) {
	store := newMemStore(manager, devA, devB)
	svc, _ := newTestService(store)
	ctx := context.Background()

	story := createStory(t, svc, ptr(devA.ID))
	epic, err := svc.Create(ctx, callerOf(manager), CreateTaskInput{Title: "Epic", Type: models.TypeEpic, AssigneeID: ptr(devA.ID)})
	if err != nil {
		t.Fatalf("Create epic: %v", err)
	}

	sub, err := svc.Create(ctx, callerOf(devA), CreateTaskInput{Title: "Wire form", Type: models.TypeSubtask, ParentID: &story.ID})
	if err != nil {
		t.Fatalf("assigned developer denied: %v", err)
	}
	if sub.ParentID == nil || *sub.ParentID != story.ID || !sub.IsSubtask() {
		t.Fatalf("parent not recorded: %+v", sub)
	}

	if _, err := svc.Create(ctx, callerOf(devB), CreateTaskInput{Title: "x", Type: models.TypeSubtask, ParentID: &story.ID}); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("non-assignee: expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Create(ctx, callerOf(devA), CreateTaskInput{Title: "x", Type: models.TypeSubtask, ParentID: &epic.ID}); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("epic parent: expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Create(ctx, callerOf(devA), CreateTaskInput{Title: "x", Type: models.TypeSubtask}); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("no parent: expected ErrUnauthorized, got %v", err)
	}

	_, err = svc.Create(ctx, callerOf(devA), CreateTaskInput{Title: "x", Type: models.TypeSubtask, ParentID: ptr(int64(999))})
	var nf *models.NotFoundError
	if !errors.As(err, &nf) || nf.Entity != "task" || nf.ID != 999 {
		t.Fatalf("missing parent: expected task NotFoundError, got %v", err)
	}

	_, err = svc.Create(ctx, callerOf(admin), CreateTaskInput{Title: "x", Type: models.TypeSubtask, ParentID: &sub.ID})
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("nested subtask: expected ErrValidation, got %v", err)
	}
}

func TestCreateUnknownAssignee(t *testing.T) {
	store := newMemStore(manager)
	svc, _ := newTestService(store)

	_, err := svc.Create(context.Background(), callerOf(manager), CreateTaskInput{Title: "x", Type: models.TypeTask, AssigneeID: ptr(int64(77))})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(store.tasks) != 0 {
		t.Fatal("task stored despite missing assignee")
	}
}

func TestUpdateIsPartial(t *testing.T) {
	store := newMemStore(manager, devA, devB)
	svc, _ := newTestService(store)
	ctx := context.Background()

	story := createStory(t, svc, ptr(devA.ID))
	updated, err := svc.Update(ctx, callerOf(devA), story.ID, UpdateTaskInput{ActualHours: ptr(2.5)})
	if err != nil {
		t.Fatalf("Update by assignee: %v", err)
	}
	if updated.Title != story.Title || updated.Type != story.Type || updated.ReporterID != story.ReporterID {
		t.Fatalf("untouched fields changed: %+v", updated)
	}
	if updated.ActualHours == nil || *updated.ActualHours != 2.5 {
		t.Fatalf("actual hours not applied: %v", updated.ActualHours)
	}
	if !updated.UpdatedAt.After(story.UpdatedAt) {
		t.Fatal("updated_at not advanced")
	}

	if _, err := svc.Update(ctx, callerOf(devB), story.ID, UpdateTaskInput{Title: ptr("hijack")}); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Update(ctx, callerOf(devA), story.ID, UpdateTaskInput{Title: ptr("  ")}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank title, got %v", err)
	}
	if _, err := svc.Update(ctx, callerOf(manager), 404, UpdateTaskInput{}); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAssigneeNeedsAssignRights(t *testing.T) {
	store := newMemStore(manager, devA, devB)
	svc, _ := newTestService(store)
	ctx := context.Background()

	story := createStory(t, svc, ptr(devA.ID))
	if _, err := svc.Update(ctx, callerOf(devA), story.ID, UpdateTaskInput{AssigneeID: ptr(devB.ID)}); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("assignee reassigning through edit: expected ErrUnauthorized, got %v", err)
	}
	got, err := svc.Update(ctx, callerOf(manager), story.ID, UpdateTaskInput{AssigneeID: ptr(devB.ID)})
	if err != nil {
		t.Fatalf("manager reassign: %v", err)
	}
	if !got.IsAssignee(devB.ID) {
		t.Fatalf("assignee not changed: %+v", got.AssigneeID)
	}
}

func TestTransitionReporterVersusAssignee(t *testing.T) {
	store := newMemStore(devA, devB)
	svc, _ := newTestService(store)
	ctx := context.Background()

	store.tasks[1] = models.Task{ID: 1, Title: "t", Type: models.TypeTask, Status: models.StatusDraft, ReporterID: devA.ID, AssigneeID: ptr(devB.ID)}
	store.nextID = 1

	_, err := svc.Transition(ctx, callerOf(devA), 1, TransitionInput{Target: models.StatusTodo})
	var aerr *models.AuthorizationError
	if !errors.As(err, &aerr) || aerr.TaskID != 1 || aerr.UserID != devA.ID {
		t.Fatalf("reporter: expected AuthorizationError, got %v", err)
	}
	if store.tasks[1].Status != models.StatusDraft {
		t.Fatal("denied transition changed status")
	}

	got, err := svc.Transition(ctx, callerOf(devB), 1, TransitionInput{Target: models.StatusTodo})
	if err != nil {
		t.Fatalf("assignee transition: %v", err)
	}
	if got.Status != models.StatusTodo {
		t.Fatalf("status = %s, want TODO", got.Status)
	}
}

func TestTransitionInvalidEdgeLeavesTaskUntouched(t *testing.T) {
	store := newMemStore(manager)
	svc, _ := newTestService(store)
	ctx := context.Background()

	story := createStory(t, svc, nil)
	savesBefore := store.saves

	_, err := svc.Transition(ctx, callerOf(admin), story.ID, TransitionInput{Target: models.StatusDone})
	var terr *models.TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if terr.TaskID != story.ID || terr.From != models.StatusDraft || terr.To != models.StatusDone {
		t.Fatalf("error does not name the transition: %+v", terr)
	}
	if store.saves != savesBefore || store.tasks[story.ID].Status != models.StatusDraft {
		t.Fatal("invalid transition was persisted")
	}

	if _, err := svc.Transition(ctx, callerOf(manager), story.ID, TransitionInput{Target: "SHIPPED"}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("unknown target: expected ErrValidation, got %v", err)
	}
}

func TestEndToEndLifecycle(t *testing.T) {
	store := newMemStore(manager, devA)
	svc, _ := newTestService(store)
	ctx := context.Background()

	story := createStory(t, svc, nil)
	if story.Status != models.StatusDraft {
		t.Fatalf("status = %s, want DRAFT", story.Status)
	}
	if _, err := svc.Assign(ctx, callerOf(manager), story.ID, devA.ID); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	task, err := svc.Transition(ctx, callerOf(manager), story.ID, TransitionInput{Target: models.StatusTodo})
	if err != nil {
		t.Fatalf("DRAFT -> TODO: %v", err)
	}
	if _, err := svc.Transition(ctx, callerOf(manager), story.ID, TransitionInput{Target: models.StatusDone}); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("TODO -> DONE: expected ErrInvalidTransition, got %v", err)
	}

	for _, target := range []models.TaskStatus{models.StatusInProgress, models.StatusQA, models.StatusReadyToDeploy, models.StatusDone} {
		if task.CompletedAt != nil {
			t.Fatalf("completed_at set before reaching DONE (at %s)", task.Status)
		}
		task, err = svc.Transition(ctx, callerOf(devA), story.ID, TransitionInput{Target: target, Comment: "moving on"})
		if err != nil {
			t.Fatalf("-> %s: %v", target, err)
		}
	}
	if task.Status != models.StatusDone || task.CompletedAt == nil {
		t.Fatalf("task not completed: %+v", task)
	}

	next, err := svc.AvailableTransitions(ctx, story.ID)
	if err != nil {
		t.Fatalf("AvailableTransitions: %v", err)
	}
	if next == nil || len(next) != 0 {
		t.Fatalf("DONE must have an empty, non-nil transition set, got %v", next)
	}
	for _, s := range models.Statuses {
		if _, err := svc.Transition(ctx, callerOf(admin), story.ID, TransitionInput{Target: s}); !errors.Is(err, models.ErrInvalidTransition) {
			t.Fatalf("DONE -> %s: expected ErrInvalidTransition, got %v", s, err)
		}
	}
}

func TestCompletedAtNotOverwritten(t *testing.T) {
	store := newMemStore(manager)
	svc, clock := newTestService(store)
	ctx := context.Background()

	first := clock.now.Add(-72 * time.Hour)
	store.tasks[1] = models.Task{ID: 1, Title: "t", Type: models.TypeTask, Status: models.StatusReadyToDeploy, ReporterID: manager.ID, CompletedAt: &first}
	store.nextID = 1

	got, err := svc.Transition(ctx, callerOf(manager), 1, TransitionInput{Target: models.StatusDone})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if !got.CompletedAt.Equal(first) {
		t.Fatalf("completed_at overwritten: %v, want %v", got.CompletedAt, first)
	}
	if !got.UpdatedAt.After(first) {
		t.Fatal("updated_at not refreshed")
	}
}

func TestAssign(t *testing.T) {
	store := newMemStore(manager, devA, devB)
	svc, _ := newTestService(store)
	ctx := context.Background()

	story := createStory(t, svc, ptr(devA.ID))
	inQA := store.tasks[story.ID]
	inQA.Status = models.StatusQA
	store.tasks[story.ID] = inQA

	if _, err := svc.Assign(ctx, callerOf(devA), story.ID, devB.ID); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("assignee assigning: expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.Assign(ctx, callerOf(manager), story.ID, 404); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("unknown assignee: expected ErrNotFound, got %v", err)
	}
	got, err := svc.Assign(ctx, callerOf(manager), story.ID, devB.ID)
	if err != nil {
		t.Fatalf("Assign in QA: %v", err)
	}
	if !got.IsAssignee(devB.ID) || got.Status != models.StatusQA {
		t.Fatalf("unexpected task after assign: %+v", got)
	}
}

func TestDelete(t *testing.T) {
	store := newMemStore(manager, devA, devB)
	svc, _ := newTestService(store)
	ctx := context.Background()

	story := createStory(t, svc, ptr(devA.ID))
	sub, err := svc.Create(ctx, callerOf(devA), CreateTaskInput{Title: "sub", Type: models.TypeSubtask, ParentID: &story.ID})
	if err != nil {
		t.Fatalf("Create subtask: %v", err)
	}

	for _, u := range []models.User{devA, devB} {
		if err := svc.Delete(ctx, callerOf(u), story.ID); !errors.Is(err, models.ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", u.Username, err)
		}
	}
	if _, ok := store.tasks[story.ID]; !ok {
		t.Fatal("denied delete removed the task")
	}

	if err := svc.Delete(ctx, callerOf(manager), story.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := store.tasks[sub.ID]; ok {
		t.Fatal("subtask not removed with its parent")
	}
	if err := svc.Delete(ctx, callerOf(manager), story.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReadOperations(t *testing.T) {
	store := newMemStore(manager, devA, devB)
	svc, clock := newTestService(store)
	ctx := context.Background()

	story := createStory(t, svc, ptr(devA.ID))
	sub, err := svc.Create(ctx, callerOf(devA), CreateTaskInput{Title: "checkout button", Type: models.TypeSubtask, ParentID: &story.ID})
	if err != nil {
		t.Fatalf("Create subtask: %v", err)
	}
	past := clock.now.Add(-time.Hour)
	spike, err := svc.Create(ctx, callerOf(manager), CreateTaskInput{Title: "Research", Type: models.TypeSpike, DueDate: &past})
	if err != nil {
		t.Fatalf("Create spike: %v", err)
	}

	got, err := svc.Get(ctx, story.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.HasSubtasks() || got.Subtasks[0].ID != sub.ID {
		t.Fatalf("subtasks not loaded: %+v", got.Subtasks)
	}

	subs, err := svc.Subtasks(ctx, story.ID)
	if err != nil || len(subs) != 1 {
		t.Fatalf("Subtasks = %v, %v", subs, err)
	}
	if _, err := svc.Subtasks(ctx, 404); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mine, err := svc.Mine(ctx, callerOf(devA))
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	ids := []int64{}
	for _, task := range mine {
		ids = append(ids, task.ID)
	}
	if !slices.Equal(ids, []int64{story.ID, sub.ID}) {
		t.Fatalf("Mine = %v", ids)
	}

	found, err := svc.Search(ctx, "CHECKOUT")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) != 1 || found[0].ID != story.ID {
		t.Fatalf("Search returned %+v", found)
	}
	if _, err := svc.Search(ctx, " "); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("blank search: expected ErrValidation, got %v", err)
	}

	overdue, err := svc.Overdue(ctx)
	if err != nil {
		t.Fatalf("Overdue: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != spike.ID {
		t.Fatalf("Overdue returned %+v", overdue)
	}

	stories, err := svc.List(ctx, models.TaskFilter{Type: models.TypeStory})
	if err != nil || len(stories) != 1 {
		t.Fatalf("List = %v, %v", stories, err)
	}
}

func TestMutationLogsCarryDirectionAndCascade(t *testing.T) {
	store := newMemStore(manager, devA)
	svc, _ := newTestService(store)
	var logs bytes.Buffer
	svc.logger = slog.New(slog.NewTextHandler(&logs, nil))
	ctx := context.Background()

	story := createStory(t, svc, ptr(devA.ID))
	if _, err := svc.Create(ctx, callerOf(devA), CreateTaskInput{Title: "sub", Type: models.TypeSubtask, ParentID: &story.ID}); err != nil {
		t.Fatalf("Create subtask: %v", err)
	}

	for _, target := range []models.TaskStatus{models.StatusTodo, models.StatusInProgress, models.StatusTodo} {
		if _, err := svc.Transition(ctx, callerOf(manager), story.ID, TransitionInput{Target: target}); err != nil {
			t.Fatalf("Transition to %s: %v", target, err)
		}
	}
	if got := strings.Count(logs.String(), "direction=forward"); got != 2 {
		t.Errorf("forward transitions logged = %d, want 2", got)
	}
	if !strings.Contains(logs.String(), "direction=back") {
		t.Errorf("backward transition not logged:\n%s", logs.String())
	}

	if err := svc.Delete(ctx, callerOf(manager), story.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !strings.Contains(logs.String(), "subtasks_removed=1") {
		t.Errorf("cascade not logged:\n%s", logs.String())
	}
}
