package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/memoria/internal/profile"
	"github.com/hrygo/memoria/store/cache"
)

// Store provides database access to all raw objects, with a Redis
// read-through cache in front of the hot user profile listing.
type Store struct {
	profile *profile.Profile
	driver  Driver
	cache   *cache.Cache
}

// New creates a new instance of Store.
func New(driver Driver, c *cache.Cache, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		cache:   c,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) GetCache() *cache.Cache {
	return s.cache
}

func (s *Store) Close() error {
	if err := s.cache.Close(); err != nil {
		slog.Warn("failed to close cache", "error", err)
	}
	return s.driver.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.driver.Ping(ctx)
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) CreateUser(ctx context.Context, create *CreateUser) (*User, error) {
	return s.driver.CreateUser(ctx, create)
}

func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	return s.driver.GetUser(ctx, find)
}

func (s *Store) UpdateUser(ctx context.Context, update *UpdateUser) (*User, error) {
	return s.driver.UpdateUser(ctx, update)
}

func (s *Store) DeleteUser(ctx context.Context, delete *DeleteUser) (bool, error) {
	return s.driver.DeleteUser(ctx, delete)
}

func (s *Store) CreateBlob(ctx context.Context, create *CreateBlob) (*Blob, error) {
	return s.driver.CreateBlob(ctx, create)
}

func (s *Store) GetBlob(ctx context.Context, find *FindBlob) (*Blob, error) {
	return s.driver.GetBlob(ctx, find)
}

func (s *Store) ListBlobs(ctx context.Context, projectID string, ids []uuid.UUID) ([]*Blob, error) {
	return s.driver.ListBlobs(ctx, projectID, ids)
}

func (s *Store) ListBlobIDs(ctx context.Context, find *FindBlobIDs) ([]uuid.UUID, error) {
	return s.driver.ListBlobIDs(ctx, find)
}

func (s *Store) DeleteBlob(ctx context.Context, delete *DeleteBlob) error {
	return s.driver.DeleteBlob(ctx, delete)
}

func (s *Store) DeleteBlobs(ctx context.Context, projectID string, ids []uuid.UUID) error {
	return s.driver.DeleteBlobs(ctx, projectID, ids)
}

func (s *Store) CreateBufferEntry(ctx context.Context, create *CreateBufferEntry) (*BufferEntry, error) {
	return s.driver.CreateBufferEntry(ctx, create)
}

func (s *Store) CountBufferEntries(ctx context.Context, find *FindBuffer) (int, error) {
	return s.driver.CountBufferEntries(ctx, find)
}

func (s *Store) SumBufferTokenSize(ctx context.Context, find *FindBuffer) (int, error) {
	return s.driver.SumBufferTokenSize(ctx, find)
}

func (s *Store) LatestBufferCreatedAt(ctx context.Context, find *FindBuffer) (*time.Time, error) {
	return s.driver.LatestBufferCreatedAt(ctx, find)
}

func (s *Store) ListBufferEntries(ctx context.Context, find *FindBuffer) ([]*BufferEntry, error) {
	return s.driver.ListBufferEntries(ctx, find)
}

func (s *Store) DeleteBufferEntries(ctx context.Context, find *FindBuffer) error {
	return s.driver.DeleteBufferEntries(ctx, find)
}

// userProfilesKey is the cache slot for one user's full profile list.
func userProfilesKey(projectID string, userID uuid.UUID) string {
	return fmt.Sprintf("user_profiles::%s::%s", projectID, userID)
}

// ListUserProfiles returns all profile slots of a user, newest update
// first. Results are cached; every profile mutation drops the cache.
func (s *Store) ListUserProfiles(ctx context.Context, find *FindUserProfiles) ([]*UserProfile, error) {
	key := userProfilesKey(find.ProjectID, find.UserID)
	if raw, ok := s.cache.Get(ctx, key); ok {
		profiles := []*UserProfile{}
		if err := json.Unmarshal([]byte(raw), &profiles); err == nil {
			return profiles, nil
		}
		slog.Error("invalid cached user profiles, dropping", "key", key)
		s.cache.Delete(ctx, key)
	}

	profiles, err := s.driver.ListUserProfiles(ctx, find)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(profiles); err == nil {
		ttl := time.Duration(s.profile.CacheUserProfilesTTL) * time.Second
		s.cache.Set(ctx, key, string(raw), ttl)
	}
	return profiles, nil
}

func (s *Store) CreateUserProfiles(ctx context.Context, creates []*CreateUserProfile) ([]uuid.UUID, error) {
	ids, err := s.driver.CreateUserProfiles(ctx, creates)
	if err != nil {
		return nil, err
	}
	if len(creates) > 0 {
		s.cache.Delete(ctx, userProfilesKey(creates[0].ProjectID, creates[0].UserID))
	}
	return ids, nil
}

func (s *Store) UpdateUserProfile(ctx context.Context, update *UpdateUserProfile) (bool, error) {
	found, err := s.driver.UpdateUserProfile(ctx, update)
	if err != nil {
		return false, err
	}
	s.cache.Delete(ctx, userProfilesKey(update.ProjectID, update.UserID))
	return found, nil
}

func (s *Store) DeleteUserProfiles(ctx context.Context, delete *DeleteUserProfiles) (int64, error) {
	deleted, err := s.driver.DeleteUserProfiles(ctx, delete)
	if err != nil {
		return 0, err
	}
	s.cache.Delete(ctx, userProfilesKey(delete.ProjectID, delete.UserID))
	return deleted, nil
}

func (s *Store) CreateUserEvent(ctx context.Context, create *CreateUserEvent) (*UserEvent, error) {
	return s.driver.CreateUserEvent(ctx, create)
}

func (s *Store) ListUserEvents(ctx context.Context, find *FindUserEvents) ([]*UserEvent, error) {
	return s.driver.ListUserEvents(ctx, find)
}

func (s *Store) UpdateUserEvent(ctx context.Context, update *UpdateUserEvent) (bool, error) {
	return s.driver.UpdateUserEvent(ctx, update)
}

func (s *Store) DeleteUserEvent(ctx context.Context, delete *DeleteUserEvent) (bool, error) {
	return s.driver.DeleteUserEvent(ctx, delete)
}

func (s *Store) SearchUserEvents(ctx context.Context, search *SearchUserEvents) ([]*UserEvent, error) {
	return s.driver.SearchUserEvents(ctx, search)
}

func (s *Store) CreateProject(ctx context.Context, create *CreateProject) (*Project, error) {
	return s.driver.CreateProject(ctx, create)
}

func (s *Store) GetProject(ctx context.Context, projectID string) (*Project, error) {
	return s.driver.GetProject(ctx, projectID)
}

func (s *Store) UpdateProjectProfileConfig(ctx context.Context, projectID string, config string) error {
	return s.driver.UpdateProjectProfileConfig(ctx, projectID, config)
}

func (s *Store) GetProjectBilling(ctx context.Context, projectID string) (*Billing, error) {
	return s.driver.GetProjectBilling(ctx, projectID)
}

func (s *Store) UpdateBilling(ctx context.Context, update *UpdateBilling) error {
	return s.driver.UpdateBilling(ctx, update)
}

func (s *Store) AddBillingUsage(ctx context.Context, projectID string, tokens int64) error {
	return s.driver.AddBillingUsage(ctx, projectID, tokens)
}
