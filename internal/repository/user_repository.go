package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/deepscience/research-graph-service/internal/domain"
)

// UserRepository manages users and the transcribed text of their CVs.
type UserRepository interface {
	// Create inserts a new user.
	// Returns domain.ErrAlreadyExists if a user with the same ID exists.
	// Returns domain.ErrInvalidInput if the user is nil or has a nil ID.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	// Returns domain.ErrNotFound if no matching user exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// UpdateCV replaces the stored transcribed CV text for a user.
	// Returns domain.ErrNotFound if the user does not exist.
	UpdateCV(ctx context.Context, id uuid.UUID, cvTranscribed string) error
}
