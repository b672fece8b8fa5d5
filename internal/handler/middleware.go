package handler

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sumire/projects/internal/domain"
	"github.com/sumire/projects/internal/service"
)

const (
	contextKeyIdentity = "identity"
)

// TokenValidator resolves a bearer token into the caller identity.
type TokenValidator interface {
	ValidateToken(token string) (service.Identity, error)
}

// RequestLogger logs each HTTP request with structured fields.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// Let the error handler write the response so the status is known.
				c.Error(err)
			}

			slog.Info("http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"route", c.Path(),
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)

			return nil
		}
	}
}

// JWTAuth validates the Bearer token and injects the caller identity into echo context.
func JWTAuth(auth TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return domain.ErrUnauthorized
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				return domain.ErrUnauthorized
			}

			identity, err := auth.ValidateToken(parts[1])
			if err != nil {
				return domain.ErrUnauthorized
			}

			c.Set(contextKeyIdentity, identity)
			return next(c)
		}
	}
}

// RequirePermission rejects callers whose token does not carry perm.
// It must run after JWTAuth.
func RequirePermission(perm domain.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := GetIdentity(c)
			if !ok {
				return domain.ErrUnauthorized
			}
			if !identity.Can(perm) {
				return domain.Forbidden("missing permission " + string(perm))
			}
			return next(c)
		}
	}
}

// GetIdentity extracts the authenticated caller from echo context.
func GetIdentity(c echo.Context) (service.Identity, bool) {
	identity, ok := c.Get(contextKeyIdentity).(service.Identity)
	return identity, ok
}

// GetUserID extracts the authenticated user ID from echo context.
func GetUserID(c echo.Context) (uuid.UUID, bool) {
	identity, ok := GetIdentity(c)
	if !ok {
		return uuid.Nil, false
	}
	return identity.UserID, true
}
