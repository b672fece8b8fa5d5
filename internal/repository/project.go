package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sumire/projects/internal/domain"
)

const (
	projectColumns = `id, name, description, owner_id, created_at, expected_start_date, actual_end_date, budget`
	taskColumns    = `id, project_id, title, description, assigned_user_id, status, created_at`
)

// ProjectRepository handles project and task data access operations.
// Every mutating method runs in its own transaction and locks the parent
// project row, so concurrent rule checks on one project are serialized.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a new project.
func (r *ProjectRepository) Create(ctx context.Context, project domain.Project) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`)
		 VALUES (:id, :name, :description, :owner_id, :created_at, :expected_start_date, :actual_end_date, :budget)`,
		project)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict("project already exists")
		}
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// List returns every project with its tasks, oldest first.
func (r *ProjectRepository) List(ctx context.Context) ([]domain.Project, error) {
	var projects []domain.Project
	if err := r.db.SelectContext(ctx, &projects,
		`SELECT `+projectColumns+` FROM projects ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	var tasks []domain.Task
	if err := r.db.SelectContext(ctx, &tasks,
		`SELECT `+taskColumns+` FROM tasks ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	byProject := make(map[uuid.UUID][]domain.Task, len(projects))
	for _, t := range tasks {
		normalizeTask(&t)
		byProject[t.ProjectID] = append(byProject[t.ProjectID], t)
	}
	for i := range projects {
		normalizeProject(&projects[i])
		projects[i].Tasks = byProject[projects[i].ID]
		if projects[i].Tasks == nil {
			projects[i].Tasks = []domain.Task{}
		}
	}
	return projects, nil
}

// FindByID retrieves a project with its tasks.
func (r *ProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	project, err := getProject(ctx, r.db, id, false)
	if err != nil {
		return nil, err
	}
	if project.Tasks, err = selectTasks(ctx, r.db, id); err != nil {
		return nil, err
	}
	return project, nil
}

// Update locks the project, applies fn and writes the project columns back.
// fn sees the project's tasks; changes to them are not persisted here.
func (r *ProjectRepository) Update(ctx context.Context, id uuid.UUID, fn func(p *domain.Project) error) (*domain.Project, error) {
	var out *domain.Project
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		project, err := getProject(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if project.Tasks, err = selectTasks(ctx, tx, id); err != nil {
			return err
		}

		if err := fn(project); err != nil {
			return err
		}

		if _, err := tx.NamedExecContext(ctx,
			`UPDATE projects
			 SET name = :name,
			     description = :description,
			     expected_start_date = :expected_start_date,
			     actual_end_date = :actual_end_date,
			     budget = :budget
			 WHERE id = :id`, project); err != nil {
			return fmt.Errorf("update project %s: %w", id, err)
		}
		out = project
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete locks the project, runs check and deletes it. Tasks go with it
// through the ON DELETE CASCADE foreign key.
func (r *ProjectRepository) Delete(ctx context.Context, id uuid.UUID, check func(p *domain.Project) error) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		project, err := getProject(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := check(project); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete project %s: %w", id, err)
		}
		return nil
	})
}

// AddTask locks the project and inserts the task produced by build.
func (r *ProjectRepository) AddTask(ctx context.Context, projectID uuid.UUID, build func(p *domain.Project) (domain.Task, error)) (*domain.Task, error) {
	var out domain.Task
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		project, err := getProject(ctx, tx, projectID, true)
		if err != nil {
			return err
		}

		task, err := build(project)
		if err != nil {
			return err
		}
		task.ProjectID = projectID

		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO tasks (`+taskColumns+`)
			 VALUES (:id, :project_id, :title, :description, :assigned_user_id, :status, :created_at)`,
			task); err != nil {
			if isUniqueViolation(err) {
				return domain.Conflict("task already exists")
			}
			if isForeignKeyViolation(err) {
				return domain.NotFound("project not found")
			}
			return fmt.Errorf("insert task: %w", err)
		}
		out = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FindTask retrieves the task matching both the project and task identifiers.
func (r *ProjectRepository) FindTask(ctx context.Context, projectID, taskID uuid.UUID) (*domain.Task, error) {
	return getTask(ctx, r.db, projectID, taskID, false)
}

// UpdateTask locks the parent project and the task, applies fn and writes the task back.
func (r *ProjectRepository) UpdateTask(ctx context.Context, projectID, taskID uuid.UUID, fn func(p *domain.Project, t *domain.Task) error) (*domain.Task, error) {
	var out *domain.Task
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		project, task, err := lockTask(ctx, tx, projectID, taskID)
		if err != nil {
			return err
		}

		if err := fn(project, task); err != nil {
			return err
		}
		task.ID = taskID
		task.ProjectID = projectID

		if _, err := tx.NamedExecContext(ctx,
			`UPDATE tasks
			 SET title = :title,
			     description = :description,
			     assigned_user_id = :assigned_user_id,
			     status = :status
			 WHERE id = :id AND project_id = :project_id`, task); err != nil {
			return fmt.Errorf("update task %s: %w", taskID, err)
		}
		out = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteTask locks the parent project and the task, runs check and deletes the task.
func (r *ProjectRepository) DeleteTask(ctx context.Context, projectID, taskID uuid.UUID, check func(p *domain.Project, t *domain.Task) error) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		project, task, err := lockTask(ctx, tx, projectID, taskID)
		if err != nil {
			return err
		}
		if err := check(project, task); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM tasks WHERE id = $1 AND project_id = $2`, taskID, projectID); err != nil {
			return fmt.Errorf("delete task %s: %w", taskID, err)
		}
		return nil
	})
}

func (r *ProjectRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// lockTask loads the parent project before the task so that every writer
// acquires row locks in the same order.
func lockTask(ctx context.Context, q sqlx.QueryerContext, projectID, taskID uuid.UUID) (*domain.Project, *domain.Task, error) {
	project, err := getProject(ctx, q, projectID, true)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.NotFound("task not found")
		}
		return nil, nil, err
	}
	task, err := getTask(ctx, q, projectID, taskID, true)
	if err != nil {
		return nil, nil, err
	}
	return project, task, nil
}

func getProject(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID, forUpdate bool) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var project domain.Project
	if err := sqlx.GetContext(ctx, q, &project, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("project not found")
		}
		return nil, fmt.Errorf("find project %s: %w", id, err)
	}
	normalizeProject(&project)
	return &project, nil
}

func getTask(ctx context.Context, q sqlx.QueryerContext, projectID, taskID uuid.UUID, forUpdate bool) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var task domain.Task
	if err := sqlx.GetContext(ctx, q, &task, query, projectID, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("task not found")
		}
		return nil, fmt.Errorf("find task %s: %w", taskID, err)
	}
	normalizeTask(&task)
	return &task, nil
}

func selectTasks(ctx context.Context, q sqlx.QueryerContext, projectID uuid.UUID) ([]domain.Task, error) {
	tasks := []domain.Task{}
	if err := sqlx.SelectContext(ctx, q, &tasks,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY created_at, id`, projectID); err != nil {
		return nil, fmt.Errorf("list tasks of project %s: %w", projectID, err)
	}
	for i := range tasks {
		normalizeTask(&tasks[i])
	}
	return tasks, nil
}

// The pgx stdlib driver scans timestamptz into time.Local.
func normalizeProject(p *domain.Project) {
	p.CreatedAt = p.CreatedAt.UTC()
	p.ExpectedStartDate = p.ExpectedStartDate.UTC()
	if p.ActualEndDate != nil {
		ended := p.ActualEndDate.UTC()
		p.ActualEndDate = &ended
	}
}

func normalizeTask(t *domain.Task) {
	t.CreatedAt = t.CreatedAt.UTC()
}
