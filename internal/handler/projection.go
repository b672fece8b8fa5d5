package handler

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sumire/projects/internal/domain"
)

// CurrencyUSD is the currency attached to v2 project responses.
const CurrencyUSD = "USD"

// TaskResponse is the wire shape of a task.
type TaskResponse struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Description    *string   `json:"description"`
	AssignedUserID uuid.UUID `json:"assigned_user_id"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProjectResponse is the wire shape of a project.
type ProjectResponse struct {
	ID                uuid.UUID      `json:"id"`
	Name              string         `json:"name"`
	Description       *string        `json:"description"`
	OwnerID           uuid.UUID      `json:"owner_id"`
	ExpectedStartDate time.Time      `json:"expected_start_date"`
	ActualEndDate     *time.Time     `json:"actual_end_date"`
	CreatedAt         time.Time      `json:"created_at"`
	Budget            json.Number    `json:"budget"`
	Currency          *string        `json:"currency,omitempty"`
	Tasks             []TaskResponse `json:"tasks"`
}

// ProjectOption decorates a ProjectResponse.
type ProjectOption func(*ProjectResponse)

// WithCurrency attaches a currency code to the response.
func WithCurrency(code string) ProjectOption {
	return func(r *ProjectResponse) {
		r.Currency = &code
	}
}

// NewTaskResponse projects a task.
func NewTaskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		AssignedUserID: t.AssignedUserID,
		Status:         string(t.Status),
		CreatedAt:      t.CreatedAt,
	}
}

// NewProjectResponse projects a project and its tasks.
func NewProjectResponse(p domain.Project, opts ...ProjectOption) ProjectResponse {
	tasks := make([]TaskResponse, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		tasks = append(tasks, NewTaskResponse(t))
	}

	r := ProjectResponse{
		ID:                p.ID,
		Name:              p.Name,
		Description:       p.Description,
		OwnerID:           p.OwnerID,
		ExpectedStartDate: p.ExpectedStartDate,
		ActualEndDate:     p.ActualEndDate,
		CreatedAt:         p.CreatedAt,
		Budget:            json.Number(p.Budget.StringFixed(2)),
		Tasks:             tasks,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// NewProjectListResponse projects every project with the same options.
func NewProjectListResponse(projects []domain.Project, opts ...ProjectOption) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, NewProjectResponse(p, opts...))
	}
	return out
}
