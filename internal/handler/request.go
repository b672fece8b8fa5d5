package handler

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sumire/projects/internal/domain"
)

// bind decodes the request into req and runs the registered validator.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalidInput)
	}
	return c.Validate(req)
}

// pathID parses a UUID path parameter. Identifiers that are not UUIDs can never
// match a stored entity, so they are reported as missing.
func pathID(c echo.Context, name, entity string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, domain.NotFound(entity + " not found")
	}
	return id, nil
}

// actorID returns the authenticated caller's user ID.
func actorID(c echo.Context) (uuid.UUID, error) {
	id, ok := GetUserID(c)
	if !ok {
		return uuid.Nil, domain.ErrUnauthorized
	}
	return id, nil
}
