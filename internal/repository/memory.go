package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sumire/projects/internal/domain"
)

// MemoryProjectRepository is an in-process ProjectStore for local runs and tests.
// A single mutex covers each whole load-check-mutate-persist sequence, and
// changes are applied to a copy that replaces the stored value only on success.
type MemoryProjectRepository struct {
	mu       sync.Mutex
	projects map[uuid.UUID]domain.Project
	order    []uuid.UUID
}

// NewMemoryProjectRepository creates an empty MemoryProjectRepository.
func NewMemoryProjectRepository() *MemoryProjectRepository {
	return &MemoryProjectRepository{projects: make(map[uuid.UUID]domain.Project)}
}

// Create stores a new project.
func (r *MemoryProjectRepository) Create(_ context.Context, project domain.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[project.ID]; ok {
		return domain.Conflict("project already exists")
	}
	stored := project.Clone()
	if stored.Tasks == nil {
		stored.Tasks = []domain.Task{}
	}
	r.projects[project.ID] = stored
	r.order = append(r.order, project.ID)
	return nil
}

// List returns every project in creation order.
func (r *MemoryProjectRepository) List(_ context.Context) ([]domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Project, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.projects[id].Clone())
	}
	return out, nil
}

// FindByID returns a project with its tasks.
func (r *MemoryProjectRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok {
		return nil, domain.NotFound("project not found")
	}
	out := p.Clone()
	return &out, nil
}

// Update applies fn to a copy of the project and stores it if fn succeeds.
func (r *MemoryProjectRepository) Update(_ context.Context, id uuid.UUID, fn func(p *domain.Project) error) (*domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok {
		return nil, domain.NotFound("project not found")
	}

	working := p.Clone()
	if err := fn(&working); err != nil {
		return nil, err
	}
	// Tasks are owned by the task operations.
	working.Tasks = p.Tasks
	r.projects[id] = working

	out := working.Clone()
	return &out, nil
}

// Delete removes a project and its tasks if check succeeds.
func (r *MemoryProjectRepository) Delete(_ context.Context, id uuid.UUID, check func(p *domain.Project) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[id]
	if !ok {
		return domain.NotFound("project not found")
	}

	working := p.Clone()
	if err := check(&working); err != nil {
		return err
	}

	delete(r.projects, id)
	r.order = slices.DeleteFunc(r.order, func(v uuid.UUID) bool { return v == id })
	return nil
}

// AddTask appends the task returned by build to the project.
func (r *MemoryProjectRepository) AddTask(_ context.Context, projectID uuid.UUID, build func(p *domain.Project) (domain.Task, error)) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[projectID]
	if !ok {
		return nil, domain.NotFound("project not found")
	}

	working := p.Clone()
	task, err := build(&working)
	if err != nil {
		return nil, err
	}
	task.ProjectID = projectID

	p.Tasks = append(slices.Clone(p.Tasks), task.Clone())
	r.projects[projectID] = p

	out := task.Clone()
	return &out, nil
}

// FindTask returns the task matching both identifiers.
func (r *MemoryProjectRepository) FindTask(_ context.Context, projectID, taskID uuid.UUID) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, idx, err := r.locate(projectID, taskID)
	if err != nil {
		return nil, err
	}
	out := r.projects[projectID].Tasks[idx].Clone()
	return &out, nil
}

// UpdateTask applies fn to a copy of the task and stores it if fn succeeds.
func (r *MemoryProjectRepository) UpdateTask(_ context.Context, projectID, taskID uuid.UUID, fn func(p *domain.Project, t *domain.Task) error) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, idx, err := r.locate(projectID, taskID)
	if err != nil {
		return nil, err
	}

	working := p.Clone()
	task := p.Tasks[idx].Clone()
	if err := fn(&working, &task); err != nil {
		return nil, err
	}
	task.ID = taskID
	task.ProjectID = projectID

	p.Tasks = slices.Clone(p.Tasks)
	p.Tasks[idx] = task
	r.projects[projectID] = p

	out := task.Clone()
	return &out, nil
}

// DeleteTask removes the task if check succeeds.
func (r *MemoryProjectRepository) DeleteTask(_ context.Context, projectID, taskID uuid.UUID, check func(p *domain.Project, t *domain.Task) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, idx, err := r.locate(projectID, taskID)
	if err != nil {
		return err
	}

	working := p.Clone()
	task := p.Tasks[idx].Clone()
	if err := check(&working, &task); err != nil {
		return err
	}

	p.Tasks = slices.Delete(slices.Clone(p.Tasks), idx, idx+1)
	r.projects[projectID] = p
	return nil
}

// locate must be called with r.mu held.
func (r *MemoryProjectRepository) locate(projectID, taskID uuid.UUID) (domain.Project, int, error) {
	p, ok := r.projects[projectID]
	if !ok {
		return domain.Project{}, 0, domain.NotFound("task not found")
	}
	idx := slices.IndexFunc(p.Tasks, func(t domain.Task) bool { return t.ID == taskID })
	if idx < 0 {
		return domain.Project{}, 0, domain.NotFound("task not found")
	}
	return p, idx, nil
}

// MemoryUserRepository is an in-process UserStore.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[uuid.UUID]domain.User
	now   func() time.Time
}

// NewMemoryUserRepository creates an empty MemoryUserRepository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[uuid.UUID]domain.User),
		now:   time.Now,
	}
}

// FindByID retrieves a user by their ID.
func (r *MemoryUserRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

// Upsert mirrors UserRepository.Upsert: profile fields are refreshed on
// conflict, the role only for dev-provider users.
func (r *MemoryUserRepository) Upsert(_ context.Context, user domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	if existing, ok := r.findByProvider(user.Provider, user.ProviderID); ok {
		existing.Email = user.Email
		existing.DisplayName = user.DisplayName
		existing.AvatarURL = user.AvatarURL
		if existing.Provider == domain.AuthProviderDev {
			existing.Role = user.Role
		}
		existing.UpdatedAt = now
		r.users[existing.ID] = existing
		return &existing, nil
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	return &user, nil
}

func (r *MemoryUserRepository) findByProvider(provider domain.AuthProvider, providerID string) (domain.User, bool) {
	for _, u := range r.users {
		if u.Provider == provider && u.ProviderID == providerID {
			return u, true
		}
	}
	return domain.User{}, false
}
