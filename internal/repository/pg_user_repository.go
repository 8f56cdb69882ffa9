package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/deepscience/research-graph-service/internal/domain"
)

// Compile-time interface verification.
var _ UserRepository = (*PgUserRepository)(nil)

// PgUserRepository is a PostgreSQL implementation of UserRepository.
type PgUserRepository struct {
	db DBTX
}

// NewPgUserRepository creates a new PostgreSQL user repository.
func NewPgUserRepository(db DBTX) *PgUserRepository {
	return &PgUserRepository{db: db}
}

// Create inserts a new user.
func (r *PgUserRepository) Create(ctx context.Context, user *domain.User) error {
	if user == nil {
		return domain.NewValidationError("user", "user cannot be nil")
	}
	if user.ID == uuid.Nil {
		return domain.NewValidationError("id", "user ID is required")
	}

	query := `
		INSERT INTO users (id, name, cv_transcribed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		user.ID, user.Name, nullString(user.CVTranscribed),
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("user", user.ID.String())
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID.
func (r *PgUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `
		SELECT id, name, cv_transcribed, created_at, updated_at
		FROM users
		WHERE id = $1`

	var (
		user          domain.User
		cvTranscribed *string
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Name, &cvTranscribed,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("user", id.String())
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if cvTranscribed != nil {
		user.CVTranscribed = *cvTranscribed
	}

	return &user, nil
}

// UpdateCV replaces the stored transcribed CV text for a user.
func (r *PgUserRepository) UpdateCV(ctx context.Context, id uuid.UUID, cvTranscribed string) error {
	query := `
		UPDATE users
		SET cv_transcribed = $1, updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(ctx, query, cvTranscribed, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update user CV: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("user", id.String())
	}

	return nil
}
