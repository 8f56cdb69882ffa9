package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents the querying user persisted alongside their runs.
type User struct {
	ID            uuid.UUID
	Name          string
	CVTranscribed string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewUser creates a user record carrying the transcribed CV text.
func NewUser(name, cvTranscribed string) *User {
	now := time.Now().UTC()
	return &User{
		ID:            uuid.New(),
		Name:          name,
		CVTranscribed: cvTranscribed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CVDocument holds the concepts extracted from one uploaded CV. The raw
// document bytes are not retained once extraction has run.
type CVDocument struct {
	ID         uuid.UUID `json:"cv_id"`
	Filename   string    `json:"filename"`
	Concepts   []string  `json:"concepts"`
	UploadedAt time.Time `json:"uploaded_at"`
}
