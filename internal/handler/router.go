package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sumire/projects/internal/domain"
	"github.com/sumire/projects/internal/service"
)

// Deps holds what the router needs to serve requests.
type Deps struct {
	Projects       *service.ProjectService
	Auth           *service.AuthService
	AllowedOrigins []string
	// Ping reports storage health. Nil means always healthy.
	Ping func(ctx context.Context) error
}

// NewRouter builds the echo instance with every route registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewAppValidator()
	e.HTTPErrorHandler = HTTPErrorHandler

	e.Use(middleware.RequestID())
	e.Use(RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     deps.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentType},
		ExposeHeaders:    []string{echo.HeaderXRequestID, echo.HeaderLocation},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authHandler := NewAuthHandler(deps.Auth)
	projectsV1 := NewProjectHandler(deps.Projects)
	projectsV2 := NewProjectHandler(deps.Projects, WithCurrency(CurrencyUSD))
	tasks := NewTaskHandler(deps.Projects)

	e.GET("/health", func(c echo.Context) error {
		if deps.Ping != nil {
			if err := deps.Ping(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "storage unavailable")
			}
		}
		return JSON(c, http.StatusOK, map[string]string{"status": "ok"})
	})
	e.POST("/token/generate", authHandler.GenerateToken)

	v1 := e.Group("/api/v1")

	// Auth routes (public)
	authGroup := v1.Group("/auth")
	authGroup.GET("/google", authHandler.GoogleRedirect)
	authGroup.GET("/google/callback", authHandler.GoogleCallback)
	authGroup.GET("/github", authHandler.GitHubRedirect)
	authGroup.GET("/github/callback", authHandler.GitHubCallback)
	authGroup.POST("/refresh", authHandler.Refresh)

	jwt := JWTAuth(deps.Auth)
	can := RequirePermission

	authGroup.GET("/me", authHandler.Me, jwt)

	p := v1.Group("/projects", jwt)
	p.POST("", projectsV1.Create, can(domain.PermissionProjectCreate))
	p.GET("", projectsV1.List, can(domain.PermissionProjectRead))
	p.GET("/:projectId", projectsV1.Get, can(domain.PermissionProjectRead))
	p.PUT("/:projectId", projectsV1.Update, can(domain.PermissionProjectUpdate))
	p.DELETE("/:projectId", projectsV1.Delete, can(domain.PermissionProjectDelete))
	p.PUT("/:projectId/budget", projectsV1.UpdateBudget, can(domain.PermissionProjectManageBudget))
	p.PUT("/:projectId/completion", projectsV1.End, can(domain.PermissionProjectUpdate))

	p.POST("/:projectId/tasks", tasks.Create, can(domain.PermissionTaskCreate))
	p.GET("/:projectId/tasks/:taskId", tasks.Get, can(domain.PermissionTaskRead))
	p.PUT("/:projectId/tasks/:taskId", tasks.Update, can(domain.PermissionTaskUpdate))
	p.PUT("/:projectId/tasks/:taskId/status", tasks.UpdateStatus, can(domain.PermissionTaskUpdateStatus))
	p.PUT("/:projectId/tasks/:taskId/assignment", tasks.Assign, can(domain.PermissionTaskAssignUser))
	p.DELETE("/:projectId/tasks/:taskId", tasks.Delete, can(domain.PermissionTaskDelete))

	v2 := e.Group("/api/v2/projects", jwt)
	v2.GET("", projectsV2.List, can(domain.PermissionProjectRead))
	v2.GET("/:projectId", projectsV2.Get, can(domain.PermissionProjectRead))

	return e
}
