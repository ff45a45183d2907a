package buffer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/internal/profile"
	"github.com/hrygo/memoria/memory/flush"
	"github.com/hrygo/memoria/memory/lock"
	"github.com/hrygo/memoria/store"
)

type fakeLocker struct {
	mu     sync.Mutex
	scopes []string
}

func (l *fakeLocker) AcquireUserLock(_ context.Context, scope string, _ uuid.UUID) (*lock.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scopes = append(l.scopes, scope)
	return &lock.Handle{}, nil
}

type fakePipeline struct {
	mu    sync.Mutex
	calls [][]uuid.UUID
	err   error
}

func (p *fakePipeline) FlushChats(_ context.Context, _ uuid.UUID, _ string, blobs []*store.Blob) (*flush.Response, error) {
	ids := make([]uuid.UUID, 0, len(blobs))
	for _, b := range blobs {
		ids = append(ids, b.ID)
	}
	p.mu.Lock()
	p.calls = append(p.calls, ids)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &flush.Response{}, nil
}

type fakeStore struct {
	mu           sync.Mutex
	entries      []*store.BufferEntry
	blobs        map[uuid.UUID]*store.Blob
	deletedBlobs []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{blobs: map[uuid.UUID]*store.Blob{}}
}

func (s *fakeStore) lane(find *store.FindBuffer) []*store.BufferEntry {
	var out []*store.BufferEntry
	for _, e := range s.entries {
		if e.UserID == find.UserID && e.ProjectID == find.ProjectID && e.BlobType == find.BlobType {
			out = append(out, e)
		}
	}
	return out
}

func (s *fakeStore) CreateBufferEntry(_ context.Context, create *store.CreateBufferEntry) (*store.BufferEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &store.BufferEntry{
		ID:        uuid.New(),
		UserID:    create.UserID,
		ProjectID: create.ProjectID,
		BlobID:    create.BlobID,
		BlobType:  create.BlobType,
		TokenSize: create.TokenSize,
		CreatedAt: time.Now(),
	}
	s.entries = append(s.entries, e)
	return e, nil
}

func (s *fakeStore) LatestBufferCreatedAt(_ context.Context, find *store.FindBuffer) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lane := s.lane(find)
	if len(lane) == 0 {
		return nil, nil
	}
	latest := lane[0].CreatedAt
	for _, e := range lane[1:] {
		if e.CreatedAt.After(latest) {
			latest = e.CreatedAt
		}
	}
	return &latest, nil
}

func (s *fakeStore) SumBufferTokenSize(_ context.Context, find *store.FindBuffer) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, e := range s.lane(find) {
		total += e.TokenSize
	}
	return total, nil
}

func (s *fakeStore) ListBufferEntries(_ context.Context, find *store.FindBuffer) ([]*store.BufferEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lane(find), nil
}

func (s *fakeStore) DeleteBufferEntries(_ context.Context, find *store.FindBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.UserID == find.UserID && e.ProjectID == find.ProjectID && e.BlobType == find.BlobType {
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return nil
}

func (s *fakeStore) ListBlobs(_ context.Context, _ string, ids []uuid.UUID) ([]*store.Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.Blob, 0, len(ids))
	for _, id := range ids {
		if b, ok := s.blobs[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteBlobs(_ context.Context, _ string, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.blobs, id)
		s.deletedBlobs = append(s.deletedBlobs, id)
	}
	return nil
}

func (s *fakeStore) seed(blob *store.Blob, createdAt time.Time, tokens int) {
	s.blobs[blob.ID] = blob
	s.entries = append(s.entries, &store.BufferEntry{
		ID:        uuid.New(),
		UserID:    blob.UserID,
		ProjectID: blob.ProjectID,
		BlobID:    blob.ID,
		BlobType:  blob.Type,
		TokenSize: tokens,
		CreatedAt: createdAt,
	})
}

func chatBlob(userID uuid.UUID, content string) *store.Blob {
	return &store.Blob{
		ID:        uuid.New(),
		UserID:    userID,
		ProjectID: "proj-1",
		Type:      store.BlobTypeChat,
		Payload:   store.BlobPayload{Messages: []store.Message{{Role: "user", Content: content}}},
		CreatedAt: time.Now(),
	}
}

func newController(p *profile.Profile, st *fakeStore, pipeline *fakePipeline) (*Controller, *fakeLocker) {
	locker := &fakeLocker{}
	return New(p, st, locker, pipeline), locker
}

func TestInsertBlobParksWithoutFlushing(t *testing.T) {
	st := newFakeStore()
	pipeline := &fakePipeline{}
	ctrl, locker := newController(profile.Default(), st, pipeline)

	user := uuid.New()
	blob := chatBlob(user, "hi")
	st.blobs[blob.ID] = blob

	responses, err := ctrl.InsertBlob(context.Background(), blob)
	require.NoError(t, err)
	require.Empty(t, responses)
	require.Empty(t, pipeline.calls)
	require.Len(t, st.entries, 1)
	require.Equal(t, blob.ID, st.entries[0].BlobID)
	require.Greater(t, st.entries[0].TokenSize, 0)
	require.Equal(t, []string{"insert_blob_to_buffer"}, locker.scopes)
}

func TestInsertBlobSizeTriggerFlushes(t *testing.T) {
	p := profile.Default()
	p.MaxChatBlobBufferTokenSize = 1
	st := newFakeStore()
	pipeline := &fakePipeline{}
	ctrl, _ := newController(p, st, pipeline)

	user := uuid.New()
	blob := chatBlob(user, "this message alone is over the lane budget")
	st.blobs[blob.ID] = blob

	responses, err := ctrl.InsertBlob(context.Background(), blob)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	require.Len(t, pipeline.calls, 1)
	require.Equal(t, []uuid.UUID{blob.ID}, pipeline.calls[0])
	// The lane was cleared and the digested chat blob dropped.
	require.Empty(t, st.entries)
	require.Equal(t, []uuid.UUID{blob.ID}, st.deletedBlobs)
}

func TestInsertBlobIdleTriggerFlushesPreviousSession(t *testing.T) {
	st := newFakeStore()
	pipeline := &fakePipeline{}
	ctrl, _ := newController(profile.Default(), st, pipeline)

	user := uuid.New()
	old := chatBlob(user, "yesterday we talked about hiking")
	st.seed(old, time.Now().Add(-2*time.Hour), 8)

	fresh := chatBlob(user, "hi again")
	st.blobs[fresh.ID] = fresh

	responses, err := ctrl.InsertBlob(context.Background(), fresh)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	// Only the stale session was digested; the new blob starts the next one.
	require.Equal(t, []uuid.UUID{old.ID}, pipeline.calls[0])
	require.Len(t, st.entries, 1)
	require.Equal(t, fresh.ID, st.entries[0].BlobID)
}

func TestInsertDocBlobOnlyAccumulates(t *testing.T) {
	p := profile.Default()
	p.MaxChatBlobBufferTokenSize = 1
	st := newFakeStore()
	pipeline := &fakePipeline{}
	ctrl, _ := newController(p, st, pipeline)

	doc := &store.Blob{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		ProjectID: "proj-1",
		Type:      store.BlobTypeDoc,
		Payload:   store.BlobPayload{Content: "a very long document that would overflow a chat lane"},
		CreatedAt: time.Now(),
	}
	st.blobs[doc.ID] = doc

	responses, err := ctrl.InsertBlob(context.Background(), doc)
	require.NoError(t, err)
	require.Empty(t, responses)
	require.Empty(t, pipeline.calls)
	require.Len(t, st.entries, 1)
}

func TestFlushDigestsPendingLane(t *testing.T) {
	st := newFakeStore()
	pipeline := &fakePipeline{}
	ctrl, _ := newController(profile.Default(), st, pipeline)

	user := uuid.New()
	first := chatBlob(user, "first message")
	second := chatBlob(user, "second message")
	st.seed(first, time.Now().Add(-2*time.Minute), 4)
	st.seed(second, time.Now().Add(-1*time.Minute), 4)

	responses, err := ctrl.Flush(context.Background(), user, "proj-1", store.BlobTypeChat)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	require.Equal(t, []uuid.UUID{first.ID, second.ID}, pipeline.calls[0])
	require.Empty(t, st.entries)
}

func TestFlushEmptyLaneIsNoop(t *testing.T) {
	st := newFakeStore()
	pipeline := &fakePipeline{}
	ctrl, _ := newController(profile.Default(), st, pipeline)

	responses, err := ctrl.Flush(context.Background(), uuid.New(), "proj-1", store.BlobTypeChat)
	require.NoError(t, err)
	require.Empty(t, responses)
	require.Empty(t, pipeline.calls)
}

func TestFlushDocLaneRejected(t *testing.T) {
	st := newFakeStore()
	ctrl, _ := newController(profile.Default(), st, &fakePipeline{})

	_, err := ctrl.Flush(context.Background(), uuid.New(), "proj-1", store.BlobTypeDoc)
	require.Error(t, err)
	require.Equal(t, errcode.BadRequest, errcode.CodeOf(err))
}

func TestFlushPipelineFailureStillClearsLane(t *testing.T) {
	st := newFakeStore()
	pipeline := &fakePipeline{err: errcode.New(errcode.ServiceUnavailable, "llm is down")}
	ctrl, _ := newController(profile.Default(), st, pipeline)

	user := uuid.New()
	blob := chatBlob(user, "some chat")
	st.seed(blob, time.Now(), 4)

	_, err := ctrl.Flush(context.Background(), user, "proj-1", store.BlobTypeChat)
	require.Error(t, err)
	require.Equal(t, errcode.ServiceUnavailable, errcode.CodeOf(err))
	// A poisoned batch must not wedge the lane.
	require.Empty(t, st.entries)
	require.Equal(t, []uuid.UUID{blob.ID}, st.deletedBlobs)
}

func TestFlushKeepsChatBlobsWhenConfigured(t *testing.T) {
	p := profile.Default()
	p.PersistentChatBlobs = true
	st := newFakeStore()
	ctrl, _ := newController(p, st, &fakePipeline{})

	user := uuid.New()
	blob := chatBlob(user, "some chat")
	st.seed(blob, time.Now(), 4)

	_, err := ctrl.Flush(context.Background(), user, "proj-1", store.BlobTypeChat)
	require.NoError(t, err)
	require.Empty(t, st.entries)
	require.Empty(t, st.deletedBlobs)
	require.Contains(t, st.blobs, blob.ID)
}
