package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Driver is an interface for store driver.
// It contains all methods that the backing database should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	Ping(ctx context.Context) error
	IsInitialized(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error

	// User model.
	CreateUser(ctx context.Context, create *CreateUser) (*User, error)
	GetUser(ctx context.Context, find *FindUser) (*User, error)
	UpdateUser(ctx context.Context, update *UpdateUser) (*User, error)
	DeleteUser(ctx context.Context, delete *DeleteUser) (bool, error)

	// Blob model.
	CreateBlob(ctx context.Context, create *CreateBlob) (*Blob, error)
	GetBlob(ctx context.Context, find *FindBlob) (*Blob, error)
	ListBlobs(ctx context.Context, projectID string, ids []uuid.UUID) ([]*Blob, error)
	ListBlobIDs(ctx context.Context, find *FindBlobIDs) ([]uuid.UUID, error)
	DeleteBlob(ctx context.Context, delete *DeleteBlob) error
	DeleteBlobs(ctx context.Context, projectID string, ids []uuid.UUID) error

	// Buffer model.
	CreateBufferEntry(ctx context.Context, create *CreateBufferEntry) (*BufferEntry, error)
	CountBufferEntries(ctx context.Context, find *FindBuffer) (int, error)
	SumBufferTokenSize(ctx context.Context, find *FindBuffer) (int, error)
	LatestBufferCreatedAt(ctx context.Context, find *FindBuffer) (*time.Time, error)
	ListBufferEntries(ctx context.Context, find *FindBuffer) ([]*BufferEntry, error)
	DeleteBufferEntries(ctx context.Context, find *FindBuffer) error

	// UserProfile model.
	CreateUserProfiles(ctx context.Context, creates []*CreateUserProfile) ([]uuid.UUID, error)
	ListUserProfiles(ctx context.Context, find *FindUserProfiles) ([]*UserProfile, error)
	UpdateUserProfile(ctx context.Context, update *UpdateUserProfile) (bool, error)
	DeleteUserProfiles(ctx context.Context, delete *DeleteUserProfiles) (int64, error)

	// UserEvent model.
	CreateUserEvent(ctx context.Context, create *CreateUserEvent) (*UserEvent, error)
	ListUserEvents(ctx context.Context, find *FindUserEvents) ([]*UserEvent, error)
	UpdateUserEvent(ctx context.Context, update *UpdateUserEvent) (bool, error)
	DeleteUserEvent(ctx context.Context, delete *DeleteUserEvent) (bool, error)
	SearchUserEvents(ctx context.Context, search *SearchUserEvents) ([]*UserEvent, error)

	// Project model.
	CreateProject(ctx context.Context, create *CreateProject) (*Project, error)
	GetProject(ctx context.Context, projectID string) (*Project, error)
	UpdateProjectProfileConfig(ctx context.Context, projectID string, config string) error

	// Billing model.
	GetProjectBilling(ctx context.Context, projectID string) (*Billing, error)
	UpdateBilling(ctx context.Context, update *UpdateBilling) error
	AddBillingUsage(ctx context.Context, projectID string, tokens int64) error
}
