package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Demo identities used by SeedDemoData.
var (
	DemoOwnerID    = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	DemoAssigneeID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

var demoTaskTitles = []string{
	"Design product catalog",
	"Implement shopping cart",
	"Add payment gateway",
	"Set up user authentication",
	"Deploy initial version",
}

// SeedDemoData inserts a sample project with open tasks when the store is empty.
// It reports whether anything was inserted.
func (s *ProjectService) SeedDemoData(ctx context.Context) (bool, error) {
	existing, err := s.store.List(ctx)
	if err != nil {
		return false, fmt.Errorf("list projects: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	desc := "Online shopping system with cart, checkout, and payment."
	project, err := s.CreateProject(ctx, CreateProjectInput{
		Name:              "E-Commerce Platform",
		Description:       &desc,
		ExpectedStartDate: s.now(),
		Budget:            decimal.Zero,
		OwnerID:           DemoOwnerID,
	})
	if err != nil {
		return false, err
	}

	for _, title := range demoTaskTitles {
		if _, err := s.CreateTask(ctx, project.ID, CreateTaskInput{
			Title:          title,
			AssignedUserID: DemoAssigneeID,
		}, DemoOwnerID); err != nil {
			return false, fmt.Errorf("seed task %q: %w", title, err)
		}
	}

	slog.Info("demo data seeded", "project_id", project.ID, "tasks", len(demoTaskTitles))
	return true, nil
}
