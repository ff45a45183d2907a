package store

import (
	"time"

	"github.com/google/uuid"
)

// BufferEntry parks an unprocessed blob in the write-behind buffer
// until the flush pipeline digests it. TokenSize is measured once at
// insert so capacity checks never re-tokenize.
type BufferEntry struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ProjectID string
	BlobID    uuid.UUID
	BlobType  BlobType
	TokenSize int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateBufferEntry struct {
	UserID    uuid.UUID
	ProjectID string
	BlobID    uuid.UUID
	BlobType  BlobType
	TokenSize int
}

// FindBuffer addresses one user's buffer lane for a blob type.
type FindBuffer struct {
	UserID    uuid.UUID
	ProjectID string
	BlobType  BlobType
}
