package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/sumire/projects/internal/service"
)

type createProjectRequest struct {
	Name              string           `json:"name" validate:"required,max=200"`
	Description       *string          `json:"description" validate:"omitempty,max=1000"`
	ExpectedStartDate time.Time        `json:"expected_start_date" validate:"required"`
	Budget            *decimal.Decimal `json:"budget" validate:"required,money"`
}

type updateProjectRequest struct {
	Name              string    `json:"name" validate:"required,max=200"`
	Description       *string   `json:"description" validate:"omitempty,max=1000"`
	ExpectedStartDate time.Time `json:"expected_start_date" validate:"required"`
}

type budgetRequest struct {
	Budget *decimal.Decimal `json:"budget" validate:"required,money"`
}

// ProjectHandler handles project endpoints.
type ProjectHandler struct {
	projects *service.ProjectService
	opts     []ProjectOption
}

// NewProjectHandler creates a new ProjectHandler. opts decorate every project
// the handler returns.
func NewProjectHandler(projects *service.ProjectService, opts ...ProjectOption) *ProjectHandler {
	return &ProjectHandler{projects: projects, opts: opts}
}

// Create creates a project owned by the caller.
func (h *ProjectHandler) Create(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}

	var req createProjectRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	project, err := h.projects.CreateProject(c.Request().Context(), service.CreateProjectInput{
		Name:              req.Name,
		Description:       req.Description,
		ExpectedStartDate: req.ExpectedStartDate,
		Budget:            *req.Budget,
		OwnerID:           userID,
	})
	if err != nil {
		return err
	}

	return Created(c, "/api/v1/projects/"+project.ID.String(), NewProjectResponse(*project, h.opts...))
}

// List returns every project with its tasks.
func (h *ProjectHandler) List(c echo.Context) error {
	projects, err := h.projects.GetProjects(c.Request().Context())
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, NewProjectListResponse(projects, h.opts...))
}

// Get returns a single project.
func (h *ProjectHandler) Get(c echo.Context) error {
	projectID, err := pathID(c, "projectId", "project")
	if err != nil {
		return err
	}

	project, err := h.projects.GetProject(c.Request().Context(), projectID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, NewProjectResponse(*project, h.opts...))
}

// Update overwrites the project's name, description and expected start date.
func (h *ProjectHandler) Update(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectId", "project")
	if err != nil {
		return err
	}

	var req updateProjectRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if _, err := h.projects.UpdateProject(c.Request().Context(), projectID, service.UpdateProjectInput{
		Name:              req.Name,
		Description:       req.Description,
		ExpectedStartDate: req.ExpectedStartDate,
	}, userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdateBudget replaces the project's budget.
func (h *ProjectHandler) UpdateBudget(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectId", "project")
	if err != nil {
		return err
	}

	var req budgetRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if _, err := h.projects.ManageBudget(c.Request().Context(), projectID, *req.Budget, userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// End marks the project as ended.
func (h *ProjectHandler) End(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectId", "project")
	if err != nil {
		return err
	}

	if _, err := h.projects.EndProject(c.Request().Context(), projectID, userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes the project and its tasks.
func (h *ProjectHandler) Delete(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectId", "project")
	if err != nil {
		return err
	}

	if err := h.projects.DeleteProject(c.Request().Context(), projectID, userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
