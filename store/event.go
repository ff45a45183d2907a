package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProfileDelta is one profile slot change recorded in an event.
type ProfileDelta struct {
	Content    string            `json:"content"`
	Attributes ProfileAttributes `json:"attributes"`
}

// EventTag is a labelled fact attached to an event by the tagging pass.
type EventTag struct {
	Tag   string `json:"tag"`
	Value string `json:"value"`
}

// EventData is the JSON document persisted for a user event. EventTip
// is nil when event summarization was disabled or skipped for the
// triggering chats.
type EventData struct {
	ProfileDelta []ProfileDelta `json:"profile_delta,omitempty"`
	EventTip     *string        `json:"event_tip,omitempty"`
	EventTags    []EventTag     `json:"event_tags,omitempty"`
}

// DisplayText renders the event for prompt context. The tip wins when
// present; otherwise the raw profile delta lines stand in.
func (e EventData) DisplayText() string {
	if e.EventTip == nil {
		lines := make([]string, 0, len(e.ProfileDelta))
		for _, d := range e.ProfileDelta {
			lines = append(lines, fmt.Sprintf("- %s::%s: %s", d.Attributes.Topic, d.Attributes.SubTopic, d.Content))
		}
		return strings.Join(lines, "\n")
	}
	tags := make([]string, 0, len(e.EventTags))
	for _, t := range e.EventTags {
		tags = append(tags, fmt.Sprintf("- %s: %s", t.Tag, t.Value))
	}
	return *e.EventTip + "\n" + strings.Join(tags, "\n")
}

// EmbeddingText renders the event for the embedding model, keeping the
// tip, the delta lines and the tags together.
func (e EventData) EmbeddingText() string {
	deltas := make([]string, 0, len(e.ProfileDelta))
	for _, d := range e.ProfileDelta {
		deltas = append(deltas, fmt.Sprintf("- %s::%s: %s", d.Attributes.Topic, d.Attributes.SubTopic, d.Content))
	}
	deltaStr := strings.Join(deltas, "\n")

	tags := make([]string, 0, len(e.EventTags))
	for _, t := range e.EventTags {
		tags = append(tags, fmt.Sprintf("- %s: %s", t.Tag, t.Value))
	}
	tagStr := strings.Join(tags, "\n")

	if e.EventTip == nil {
		return deltaStr + "\n" + tagStr
	}
	return *e.EventTip + "\n" + deltaStr + "\n" + tagStr
}

// UserEvent is an episodic memory entry. Similarity is only populated
// by vector search.
type UserEvent struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"-"`
	ProjectID  string    `json:"-"`
	Data       EventData `json:"event_data"`
	Similarity *float64  `json:"similarity,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateUserEvent persists an event together with its embedding.
// Embedding may be nil when embedding is disabled or failed; the event
// is still stored, it just never matches a vector search.
type CreateUserEvent struct {
	UserID    uuid.UUID
	ProjectID string
	Data      EventData
	Embedding []float32
}

// FindUserEvents lists recent events, newest first. RequireTip
// restricts the result to events that carry a summary tip.
type FindUserEvents struct {
	UserID     uuid.UUID
	ProjectID  string
	RequireTip bool
	Limit      int
}

// UpdateUserEvent overlays the given fields onto the stored event
// document. Absent fields keep their stored values.
type UpdateUserEvent struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ProjectID string
	Data      EventData
}

type DeleteUserEvent struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ProjectID string
}

// SearchUserEvents runs a cosine similarity search over recent events.
type SearchUserEvents struct {
	UserID        uuid.UUID
	ProjectID     string
	Embedding     []float32
	Limit         int
	MinSimilarity float64
	TimeRangeDays int
}
