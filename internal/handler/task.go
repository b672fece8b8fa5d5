package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sumire/projects/internal/domain"
	"github.com/sumire/projects/internal/service"
)

type createTaskRequest struct {
	Title          string    `json:"title" validate:"required,max=200"`
	Description    *string   `json:"description" validate:"omitempty,max=1000"`
	AssignedUserID uuid.UUID `json:"assigned_user_id" validate:"required"`
}

type updateTaskRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Status      string  `json:"status" validate:"required,oneof=NotStarted InProgress Completed Blocked Cancelled"`
}

type taskStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=NotStarted InProgress Completed Blocked Cancelled"`
}

type assignTaskRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
}

// TaskHandler handles task endpoints nested under a project.
type TaskHandler struct {
	projects *service.ProjectService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(projects *service.ProjectService) *TaskHandler {
	return &TaskHandler{projects: projects}
}

// Create adds a task to the project.
func (h *TaskHandler) Create(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	projectID, err := pathID(c, "projectId", "project")
	if err != nil {
		return err
	}

	var req createTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	task, err := h.projects.CreateTask(c.Request().Context(), projectID, service.CreateTaskInput{
		Title:          req.Title,
		Description:    req.Description,
		AssignedUserID: req.AssignedUserID,
	}, userID)
	if err != nil {
		return err
	}

	location := "/api/v1/projects/" + projectID.String() + "/tasks/" + task.ID.String()
	return Created(c, location, NewTaskResponse(*task))
}

// Get returns a single task.
func (h *TaskHandler) Get(c echo.Context) error {
	projectID, taskID, err := taskPath(c)
	if err != nil {
		return err
	}

	task, err := h.projects.GetTask(c.Request().Context(), projectID, taskID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusOK, NewTaskResponse(*task))
}

// Update overwrites the task's title, description and status.
func (h *TaskHandler) Update(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	projectID, taskID, err := taskPath(c)
	if err != nil {
		return err
	}

	var req updateTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if _, err := h.projects.UpdateTask(c.Request().Context(), projectID, taskID, service.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.TaskStatus(req.Status),
	}, userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdateStatus changes the task's status.
func (h *TaskHandler) UpdateStatus(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	projectID, taskID, err := taskPath(c)
	if err != nil {
		return err
	}

	var req taskStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if _, err := h.projects.UpdateTaskStatus(c.Request().Context(), projectID, taskID, domain.TaskStatus(req.Status), userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Assign reassigns the task to another user.
func (h *TaskHandler) Assign(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	projectID, taskID, err := taskPath(c)
	if err != nil {
		return err
	}

	var req assignTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if _, err := h.projects.AssignUserToTask(c.Request().Context(), projectID, taskID, req.UserID, userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes the task.
func (h *TaskHandler) Delete(c echo.Context) error {
	userID, err := actorID(c)
	if err != nil {
		return err
	}
	projectID, taskID, err := taskPath(c)
	if err != nil {
		return err
	}

	if err := h.projects.DeleteTask(c.Request().Context(), projectID, taskID, userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func taskPath(c echo.Context) (projectID, taskID uuid.UUID, err error) {
	if projectID, err = pathID(c, "projectId", "task"); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if taskID, err = pathID(c, "taskId", "task"); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return projectID, taskID, nil
}
