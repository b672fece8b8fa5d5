package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sumire/projects/internal/domain"
	"github.com/sumire/projects/internal/repository"
)

func newProject() domain.Project {
	return domain.Project{
		ID:                uuid.New(),
		Name:              "Launch",
		OwnerID:           uuid.New(),
		CreatedAt:         time.Now().UTC(),
		ExpectedStartDate: time.Now().UTC(),
		Budget:            decimal.RequireFromString("1000.00"),
	}
}

func TestMemoryProjectRepository_CreateAndFind(t *testing.T) {
	repo := repository.NewMemoryProjectRepository()
	ctx := context.Background()
	p := newProject()

	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, p); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on duplicate id, got %v", err)
	}

	got, err := repo.FindByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Name != "Launch" || !got.Budget.Equal(p.Budget) {
		t.Errorf("unexpected project: %+v", got)
	}
	if got.Tasks == nil || len(got.Tasks) != 0 {
		t.Errorf("expected empty task list, got %v", got.Tasks)
	}

	if _, err := repo.FindByID(ctx, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMemoryProjectRepository_UpdateRollsBackOnError(t *testing.T) {
	repo := repository.NewMemoryProjectRepository()
	ctx := context.Background()
	p := newProject()
	_ = repo.Create(ctx, p)

	boom := errors.New("boom")
	_, err := repo.Update(ctx, p.ID, func(p *domain.Project) error {
		p.Name = "changed"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	got, _ := repo.FindByID(ctx, p.ID)
	if got.Name != "Launch" {
		t.Errorf("failed update leaked: name=%q", got.Name)
	}
}

func TestMemoryProjectRepository_TaskLifecycle(t *testing.T) {
	repo := repository.NewMemoryProjectRepository()
	ctx := context.Background()
	p := newProject()
	_ = repo.Create(ctx, p)

	created, err := repo.AddTask(ctx, p.ID, func(*domain.Project) (domain.Task, error) {
		return domain.Task{ID: uuid.New(), Title: "Design", Status: domain.TaskStatusNotStarted}, nil
	})
	if err != nil {
		t.Fatalf("add task: %v", err)
	}
	if created.ProjectID != p.ID {
		t.Errorf("expected project id %s, got %s", p.ID, created.ProjectID)
	}

	if _, err := repo.FindTask(ctx, uuid.New(), created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("task looked up under the wrong project: %v", err)
	}

	updated, err := repo.UpdateTask(ctx, p.ID, created.ID, func(_ *domain.Project, tk *domain.Task) error {
		tk.Status = domain.TaskStatusCompleted
		return nil
	})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}
	if updated.Status != domain.TaskStatusCompleted {
		t.Errorf("expected Completed, got %s", updated.Status)
	}

	got, _ := repo.FindByID(ctx, p.ID)
	if len(got.Tasks) != 1 || got.Tasks[0].Status != domain.TaskStatusCompleted {
		t.Errorf("unexpected tasks after update: %+v", got.Tasks)
	}

	if err := repo.DeleteTask(ctx, p.ID, created.ID, func(*domain.Project, *domain.Task) error { return nil }); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if _, err := repo.FindTask(ctx, p.ID, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected deleted task to be gone, got %v", err)
	}
}

func TestMemoryProjectRepository_DeleteCascades(t *testing.T) {
	repo := repository.NewMemoryProjectRepository()
	ctx := context.Background()
	p := newProject()
	_ = repo.Create(ctx, p)

	task, _ := repo.AddTask(ctx, p.ID, func(*domain.Project) (domain.Task, error) {
		return domain.Task{ID: uuid.New(), Title: "Design", Status: domain.TaskStatusNotStarted}, nil
	})

	if err := repo.Delete(ctx, p.ID, func(*domain.Project) error { return nil }); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.FindTask(ctx, p.ID, task.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected task removed with project, got %v", err)
	}
	list, _ := repo.List(ctx)
	if len(list) != 0 {
		t.Errorf("expected empty list, got %d projects", len(list))
	}
}

func TestMemoryUserRepository_Upsert(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	ctx := context.Background()

	first, err := repo.Upsert(ctx, domain.User{
		Provider:   domain.AuthProviderGitHub,
		ProviderID: "42",
		Email:      "a@example.com",
		Role:       domain.RoleProjectManager,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	second, err := repo.Upsert(ctx, domain.User{
		ID:         uuid.New(),
		Provider:   domain.AuthProviderGitHub,
		ProviderID: "42",
		Email:      "b@example.com",
		Role:       domain.RoleMember,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected same user id, got %s and %s", first.ID, second.ID)
	}
	if second.Email != "b@example.com" {
		t.Errorf("expected email refreshed, got %s", second.Email)
	}
	if second.Role != domain.RoleProjectManager {
		t.Errorf("oauth user role must not change on login, got %s", second.Role)
	}

	found, err := repo.FindByID(ctx, first.ID)
	if err != nil || found.Email != "b@example.com" {
		t.Fatalf("find by id: %v %+v", err, found)
	}
	if _, err := repo.FindByID(ctx, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
