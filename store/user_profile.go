package store

import (
	"time"

	"github.com/google/uuid"
)

// ProfileAttributes pins a profile slot to its topic and sub-topic and
// counts how many times the slot was revised.
type ProfileAttributes struct {
	Topic      string `json:"topic"`
	SubTopic   string `json:"sub_topic"`
	UpdateHits int    `json:"update_hits,omitempty"`
}

// UserProfile is one long-term memory slot of a user, addressed by its
// topic::sub_topic pair.
type UserProfile struct {
	ID         uuid.UUID         `json:"id"`
	UserID     uuid.UUID         `json:"-"`
	ProjectID  string            `json:"-"`
	Content    string            `json:"content"`
	Attributes ProfileAttributes `json:"attributes"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

type CreateUserProfile struct {
	UserID     uuid.UUID
	ProjectID  string
	Content    string
	Attributes ProfileAttributes
}

// UpdateUserProfile rewrites the content of a slot. Attributes is
// optional; nil keeps the stored ones.
type UpdateUserProfile struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	ProjectID  string
	Content    string
	Attributes *ProfileAttributes
}

// FindUserProfiles lists all slots of a user, newest update first.
type FindUserProfiles struct {
	UserID    uuid.UUID
	ProjectID string
}

type DeleteUserProfiles struct {
	IDs       []uuid.UUID
	UserID    uuid.UUID
	ProjectID string
}
