package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sumire/projects/internal/domain"
)

// ProjectStore defines the project data access interface consumed by ProjectService.
//
// The mutating methods load the affected rows under a lock, hand them to the
// callback and persist the callback's changes in the same transaction. A
// missing project or task is reported as domain.ErrNotFound before the
// callback runs; a callback error aborts the transaction.
type ProjectStore interface {
	Create(ctx context.Context, project domain.Project) error
	List(ctx context.Context) ([]domain.Project, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	Update(ctx context.Context, id uuid.UUID, fn func(p *domain.Project) error) (*domain.Project, error)
	Delete(ctx context.Context, id uuid.UUID, check func(p *domain.Project) error) error

	AddTask(ctx context.Context, projectID uuid.UUID, build func(p *domain.Project) (domain.Task, error)) (*domain.Task, error)
	FindTask(ctx context.Context, projectID, taskID uuid.UUID) (*domain.Task, error)
	UpdateTask(ctx context.Context, projectID, taskID uuid.UUID, fn func(p *domain.Project, t *domain.Task) error) (*domain.Task, error)
	DeleteTask(ctx context.Context, projectID, taskID uuid.UUID, check func(p *domain.Project, t *domain.Task) error) error
}

// CreateProjectInput holds the fields of a new project.
type CreateProjectInput struct {
	Name              string
	Description       *string
	ExpectedStartDate time.Time
	Budget            decimal.Decimal
	OwnerID           uuid.UUID
}

// UpdateProjectInput holds the editable project fields. Budget and owner are
// changed elsewhere or not at all.
type UpdateProjectInput struct {
	Name              string
	Description       *string
	ExpectedStartDate time.Time
}

// CreateTaskInput holds the fields of a new task.
type CreateTaskInput struct {
	Title          string
	Description    *string
	AssignedUserID uuid.UUID
}

// UpdateTaskInput replaces a task's content and status together.
type UpdateTaskInput struct {
	Title       string
	Description *string
	Status      domain.TaskStatus
}

// ProjectService enforces ownership and lifecycle rules for projects and tasks.
type ProjectService struct {
	store ProjectStore
	now   func() time.Time
	newID func() uuid.UUID
}

// ProjectOption customizes a ProjectService.
type ProjectOption func(*ProjectService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ProjectOption {
	return func(s *ProjectService) { s.now = now }
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(newID func() uuid.UUID) ProjectOption {
	return func(s *ProjectService) { s.newID = newID }
}

// NewProjectService creates a new ProjectService.
func NewProjectService(store ProjectStore, opts ...ProjectOption) *ProjectService {
	s := &ProjectService{
		store: store,
		now:   time.Now,
		newID: uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateProject creates a project owned by in.OwnerID.
func (s *ProjectService) CreateProject(ctx context.Context, in CreateProjectInput) (*domain.Project, error) {
	if err := checkBudget(in.Budget); err != nil {
		return nil, err
	}

	project := domain.Project{
		ID:                s.newID(),
		Name:              in.Name,
		Description:       in.Description,
		OwnerID:           in.OwnerID,
		CreatedAt:         timestamp(s.now()),
		ExpectedStartDate: timestamp(in.ExpectedStartDate),
		Budget:            in.Budget.Round(2),
		Tasks:             []domain.Task{},
	}

	if err := s.store.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return &project, nil
}

// GetProjects returns every project with its tasks.
func (s *ProjectService) GetProjects(ctx context.Context) ([]domain.Project, error) {
	return s.store.List(ctx)
}

// GetProject returns a project with its tasks.
func (s *ProjectService) GetProject(ctx context.Context, projectID uuid.UUID) (*domain.Project, error) {
	return s.store.FindByID(ctx, projectID)
}

// UpdateProject overwrites name, description and expected start date.
func (s *ProjectService) UpdateProject(ctx context.Context, projectID uuid.UUID, in UpdateProjectInput, actorID uuid.UUID) (*domain.Project, error) {
	return s.store.Update(ctx, projectID, func(p *domain.Project) error {
		if !p.IsOwner(actorID) {
			return domain.Forbidden("only the project owner can update the project")
		}
		if p.IsEnded() {
			return domain.Conflict("cannot modify an ended project")
		}

		p.Name = in.Name
		p.Description = in.Description
		p.ExpectedStartDate = timestamp(in.ExpectedStartDate)
		return nil
	})
}

// ManageBudget overwrites the project budget.
func (s *ProjectService) ManageBudget(ctx context.Context, projectID uuid.UUID, budget decimal.Decimal, actorID uuid.UUID) (*domain.Project, error) {
	if err := checkBudget(budget); err != nil {
		return nil, err
	}

	return s.store.Update(ctx, projectID, func(p *domain.Project) error {
		if !p.IsOwner(actorID) {
			return domain.Forbidden("only the project owner can manage the budget")
		}
		if p.IsEnded() {
			return domain.Conflict("cannot modify an ended project")
		}

		p.Budget = budget.Round(2)
		return nil
	})
}

// DeleteProject removes a project and all of its tasks.
func (s *ProjectService) DeleteProject(ctx context.Context, projectID, actorID uuid.UUID) error {
	return s.store.Delete(ctx, projectID, func(p *domain.Project) error {
		if !p.IsOwner(actorID) {
			return domain.Forbidden("only the project owner can delete the project")
		}
		if p.IsEnded() {
			return domain.Conflict("cannot delete an ended project")
		}
		return nil
	})
}

// EndProject marks the project as ended once every task is closed.
func (s *ProjectService) EndProject(ctx context.Context, projectID, actorID uuid.UUID) (*domain.Project, error) {
	return s.store.Update(ctx, projectID, func(p *domain.Project) error {
		if !p.IsOwner(actorID) {
			return domain.Forbidden("only the project owner can end the project")
		}
		return p.End(timestamp(s.now()))
	})
}

// CreateTask adds a task to the project. New tasks always start as NotStarted.
func (s *ProjectService) CreateTask(ctx context.Context, projectID uuid.UUID, in CreateTaskInput, actorID uuid.UUID) (*domain.Task, error) {
	return s.store.AddTask(ctx, projectID, func(p *domain.Project) (domain.Task, error) {
		if !p.IsOwner(actorID) {
			return domain.Task{}, domain.Forbidden("only the project owner can create tasks")
		}
		if p.IsEnded() {
			return domain.Task{}, domain.Conflict("cannot modify tasks on an ended project")
		}

		return domain.Task{
			ID:             s.newID(),
			ProjectID:      p.ID,
			Title:          in.Title,
			Description:    in.Description,
			AssignedUserID: in.AssignedUserID,
			Status:         domain.TaskStatusNotStarted,
			CreatedAt:      timestamp(s.now()),
		}, nil
	})
}

// GetTask returns the task identified by both projectID and taskID.
func (s *ProjectService) GetTask(ctx context.Context, projectID, taskID uuid.UUID) (*domain.Task, error) {
	return s.store.FindTask(ctx, projectID, taskID)
}

// UpdateTaskStatus overwrites the task status. Allowed for the assignee and the project owner.
func (s *ProjectService) UpdateTaskStatus(ctx context.Context, projectID, taskID uuid.UUID, status domain.TaskStatus, actorID uuid.UUID) (*domain.Task, error) {
	if _, err := domain.ParseTaskStatus(string(status)); err != nil {
		return nil, err
	}

	return s.store.UpdateTask(ctx, projectID, taskID, func(p *domain.Project, t *domain.Task) error {
		if !t.CanEdit(*p, actorID) {
			return domain.Forbidden("only the assigned user or the project owner can update task status")
		}
		if p.IsEnded() {
			return domain.Conflict("cannot modify tasks on an ended project")
		}

		t.Status = status
		return nil
	})
}

// UpdateTask overwrites title, description and status together.
func (s *ProjectService) UpdateTask(ctx context.Context, projectID, taskID uuid.UUID, in UpdateTaskInput, actorID uuid.UUID) (*domain.Task, error) {
	if _, err := domain.ParseTaskStatus(string(in.Status)); err != nil {
		return nil, err
	}

	return s.store.UpdateTask(ctx, projectID, taskID, func(p *domain.Project, t *domain.Task) error {
		if !t.CanEdit(*p, actorID) {
			return domain.Forbidden("only the assigned user or the project owner can update the task")
		}
		if p.IsEnded() {
			return domain.Conflict("cannot update tasks in an ended project")
		}

		t.Title = in.Title
		t.Description = in.Description
		t.Status = in.Status
		return nil
	})
}

// AssignUserToTask reassigns the task. Only the project owner may do this.
func (s *ProjectService) AssignUserToTask(ctx context.Context, projectID, taskID, assigneeID, actorID uuid.UUID) (*domain.Task, error) {
	return s.store.UpdateTask(ctx, projectID, taskID, func(p *domain.Project, t *domain.Task) error {
		if !p.IsOwner(actorID) {
			return domain.Forbidden("only the project owner can assign users to tasks")
		}
		if p.IsEnded() {
			return domain.Conflict("cannot assign users to tasks in an ended project")
		}

		t.AssignedUserID = assigneeID
		return nil
	})
}

// DeleteTask removes a task. Only the project owner may do this.
func (s *ProjectService) DeleteTask(ctx context.Context, projectID, taskID, actorID uuid.UUID) error {
	return s.store.DeleteTask(ctx, projectID, taskID, func(p *domain.Project, _ *domain.Task) error {
		if !p.IsOwner(actorID) {
			return domain.Forbidden("only the project owner can delete the task")
		}
		if p.IsEnded() {
			return domain.Conflict("cannot delete tasks from an ended project")
		}
		return nil
	})
}

// timestamp converts t to the precision and zone Postgres hands back, so a
// value returned from a write equals the one read later.
func timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func checkBudget(budget decimal.Decimal) error {
	if budget.IsNegative() {
		return &domain.ValidationError{Field: "budget", Message: "must be greater than or equal to 0"}
	}
	return nil
}
