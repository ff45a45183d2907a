package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BlobType classifies raw memory input.
type BlobType string

const (
	BlobTypeChat       BlobType = "chat"
	BlobTypeDoc        BlobType = "doc"
	BlobTypeImage      BlobType = "image"
	BlobTypeCode       BlobType = "code"
	BlobTypeTranscript BlobType = "transcript"
)

// ParseBlobType validates a wire-level blob type string.
func ParseBlobType(s string) (BlobType, bool) {
	switch BlobType(s) {
	case BlobTypeChat, BlobTypeDoc, BlobTypeImage, BlobTypeCode, BlobTypeTranscript:
		return BlobType(s), true
	default:
		return "", false
	}
}

// Message is a single turn of an OpenAI-compatible chat exchange.
// CreatedAt is a caller-supplied display timestamp, not a machine one.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Alias     string `json:"alias,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// SpeakerName prefers the alias, keeping the role for disambiguation.
func (m Message) SpeakerName() string {
	if m.Alias != "" {
		return fmt.Sprintf("%s(%s)", m.Alias, m.Role)
	}
	return m.Role
}

// Timestamp returns the display timestamp of the message, falling back
// to the insertion date of the enclosing blob.
func (m Message) Timestamp(fallback time.Time, loc *time.Location) string {
	if m.CreatedAt != "" {
		return m.CreatedAt
	}
	if fallback.IsZero() {
		fallback = time.Now()
	}
	if loc == nil {
		loc = time.Local
	}
	return fallback.In(loc).Format("2006/01/02")
}

// BlobPayload is the JSON document persisted for a blob. Chat blobs
// carry messages, doc blobs carry plain content.
type BlobPayload struct {
	Messages []Message `json:"messages,omitempty"`
	Content  string    `json:"content,omitempty"`
}

// Blob is a raw piece of user data queued for memory extraction.
type Blob struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ProjectID string
	Type      BlobType
	Payload   BlobPayload
	Fields    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transcript renders the blob the way prompts consume it. Chat blobs
// become "[time] speaker: content" lines, doc blobs pass through.
func (b *Blob) Transcript(loc *time.Location) string {
	switch b.Type {
	case BlobTypeChat:
		lines := make([]string, 0, len(b.Payload.Messages))
		for _, m := range b.Payload.Messages {
			lines = append(lines, fmt.Sprintf("[%s] %s: %s", m.Timestamp(b.CreatedAt, loc), m.SpeakerName(), m.Content))
		}
		return strings.Join(lines, "\n")
	case BlobTypeDoc:
		return b.Payload.Content
	default:
		return ""
	}
}

type CreateBlob struct {
	UserID    uuid.UUID
	ProjectID string
	Type      BlobType
	Payload   BlobPayload
	Fields    map[string]any
}

type FindBlob struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ProjectID string
}

type DeleteBlob struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ProjectID string
}

// FindBlobIDs pages through a user's blobs of one type, oldest first.
type FindBlobIDs struct {
	UserID    uuid.UUID
	ProjectID string
	Type      BlobType
	Page      int
	PageSize  int
}
