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

const userColumns = `id, provider, provider_id, email, display_name, avatar_url, role, created_at, updated_at`

// UserRepository handles user data access operations.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID retrieves a user by their ID.
func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	err := r.db.GetContext(ctx, &user,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find user by id %s: %w", id, err)
	}
	normalizeUser(&user)
	return &user, nil
}

// Upsert creates a new user or updates an existing one based on provider + provider_id.
// The stored role is kept on conflict except for dev-provider users, whose
// role is chosen at login.
func (r *UserRepository) Upsert(ctx context.Context, user domain.User) (*domain.User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	var result domain.User
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO users (id, provider, provider_id, email, display_name, avatar_url, role)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (provider, provider_id)
		 DO UPDATE SET email = EXCLUDED.email,
		               display_name = EXCLUDED.display_name,
		               avatar_url = EXCLUDED.avatar_url,
		               role = CASE WHEN users.provider = 'dev' THEN EXCLUDED.role ELSE users.role END,
		               updated_at = NOW()
		 RETURNING `+userColumns,
		user.ID, user.Provider, user.ProviderID, user.Email, user.DisplayName, user.AvatarURL, user.Role,
	).StructScan(&result)
	if err != nil {
		if isCheckViolation(err) {
			return nil, fmt.Errorf("%w: role %q", domain.ErrInvalidInput, user.Role)
		}
		if isUniqueViolation(err) {
			return nil, domain.Conflict("user id already in use")
		}
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	normalizeUser(&result)
	return &result, nil
}

func normalizeUser(u *domain.User) {
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
}
