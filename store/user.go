package store

import (
	"time"

	"github.com/google/uuid"
)

// User is an end user tracked inside a project. Profiles, events, blobs
// and buffer entries all hang off the (id, project_id) pair.
type User struct {
	ID        uuid.UUID
	ProjectID string
	Fields    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateUser carries the fields for a new user. ID is optional; the
// database assigns one when it is nil.
type CreateUser struct {
	ID        *uuid.UUID
	ProjectID string
	Fields    map[string]any
}

type FindUser struct {
	ID        uuid.UUID
	ProjectID string
}

// UpdateUser replaces the free-form fields of a user wholesale.
type UpdateUser struct {
	ID        uuid.UUID
	ProjectID string
	Fields    map[string]any
}

type DeleteUser struct {
	ID        uuid.UUID
	ProjectID string
}
