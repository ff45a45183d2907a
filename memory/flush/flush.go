// Package flush turns a captured batch of chat blobs into long-term
// memory: a dated entry summary, extracted profile facts merged against
// the existing slots, an episodic event, and a reorganize pass over
// topics that grew too wide. Stages run in order; independent LLM calls
// inside a stage run concurrently.
package flush

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/memoria/ai/embedding"
	"github.com/hrygo/memoria/ai/llm"
	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/internal/profile"
	"github.com/hrygo/memoria/store"
)

// Completer is the completion surface the pipeline needs from the LLM
// gateway.
type Completer interface {
	Complete(ctx context.Context, req *llm.Request) (string, error)
}

// Storage is the slice of the store the pipeline touches.
type Storage interface {
	GetProject(ctx context.Context, projectID string) (*store.Project, error)
	ListUserProfiles(ctx context.Context, find *store.FindUserProfiles) ([]*store.UserProfile, error)
	CreateUserProfiles(ctx context.Context, creates []*store.CreateUserProfile) ([]uuid.UUID, error)
	UpdateUserProfile(ctx context.Context, update *store.UpdateUserProfile) (bool, error)
	DeleteUserProfiles(ctx context.Context, delete *store.DeleteUserProfiles) (int64, error)
	CreateUserEvent(ctx context.Context, create *store.CreateUserEvent) (*store.UserEvent, error)
}

// Response reports what one flush changed.
type Response struct {
	EventID        *uuid.UUID  `json:"event_id,omitempty"`
	AddProfiles    []uuid.UUID `json:"add_profiles"`
	UpdateProfiles []uuid.UUID `json:"update_profiles"`
	DeleteProfiles []uuid.UUID `json:"delete_profiles"`
}

// Flusher runs the chat digestion pipeline.
type Flusher struct {
	profile  *profile.Profile
	store    Storage
	llm      Completer
	embedder embedding.Service
}

// New builds a Flusher. The embedder may be nil when event embedding is
// disabled; events are then stored without vectors.
func New(p *profile.Profile, st Storage, completer Completer, embedder embedding.Service) *Flusher {
	return &Flusher{
		profile:  p,
		store:    st,
		llm:      completer,
		embedder: embedder,
	}
}

// profileKey addresses one profile slot by its unified topic pair.
type profileKey struct {
	topic    string
	subTopic string
}

// pendingAdd is a profile slot queued for insertion.
type pendingAdd struct {
	content string
	attrs   store.ProfileAttributes
}

// pendingUpdate rewrites an existing slot in place.
type pendingUpdate struct {
	id      uuid.UUID
	content string
	attrs   store.ProfileAttributes
}

// mutations accumulates profile changes across stages. The merge stage
// appends from several goroutines, so the queue helpers lock; later
// stages run sequentially and read the fields directly.
type mutations struct {
	mu          sync.Mutex
	before      []*store.UserProfile
	adds        []pendingAdd
	updates     []pendingUpdate
	deletes     []uuid.UUID
	updateDelta []pendingAdd
}

func (m *mutations) queueAdd(content string, attrs store.ProfileAttributes) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adds = append(m.adds, pendingAdd{content: content, attrs: attrs})
}

func (m *mutations) queueUpdate(id uuid.UUID, content string, attrs store.ProfileAttributes) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, pendingUpdate{id: id, content: content, attrs: attrs})
}

func (m *mutations) queueDelete(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, id)
}

func (m *mutations) queueDelta(content string, attrs store.ProfileAttributes) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateDelta = append(m.updateDelta, pendingAdd{content: content, attrs: attrs})
}

// eventDeltas renders the adds and update deltas recorded so far as the
// profile_delta document of a session event.
func (m *mutations) eventDeltas() []store.ProfileDelta {
	deltas := make([]store.ProfileDelta, 0, len(m.adds)+len(m.updateDelta))
	for _, a := range m.adds {
		deltas = append(deltas, store.ProfileDelta{Content: a.content, Attributes: a.attrs})
	}
	for _, d := range m.updateDelta {
		deltas = append(deltas, store.ProfileDelta{Content: d.content, Attributes: d.attrs})
	}
	return deltas
}

// FlushChats digests one captured batch of chat blobs for a user. Any
// stage failure aborts with a typed error; the caller owns buffer
// cleanup either way.
func (f *Flusher) FlushChats(ctx context.Context, userID uuid.UUID, projectID string, blobs []*store.Blob) (*Response, error) {
	for _, b := range blobs {
		if b.Type != store.BlobTypeChat {
			return nil, errcode.New(errcode.BadRequest, "blob %s is %s, only chat blobs can be flushed", b.ID, b.Type)
		}
	}
	cfg, err := f.loadProjectConfig(ctx, projectID)
	if err != nil {
		return nil, err
	}

	transcript := joinTranscripts(blobs, f.profile.Timezone())
	memo, err := f.entrySummary(ctx, projectID, cfg, transcript)
	if err != nil {
		return nil, err
	}
	slog.Debug("summarized chat batch", "user_id", userID, "blobs", len(blobs))

	muts := &mutations{}
	facts, err := f.extractFacts(ctx, userID, projectID, cfg, memo, muts)
	if err != nil {
		return nil, err
	}
	if err := f.mergeFacts(ctx, projectID, cfg, facts, muts); err != nil {
		return nil, err
	}

	eventID, err := f.recordSessionEvent(ctx, userID, projectID, cfg, memo, transcript, muts)
	if err != nil {
		return nil, err
	}

	if err := f.organizeProfiles(ctx, projectID, cfg, muts); err != nil {
		slog.Error("unable to reorganize overgrown topics, keeping current layout", "user_id", userID, "error", err)
	}
	f.condenseOversized(ctx, projectID, muts)

	resp, err := f.persist(ctx, userID, projectID, muts, eventID)
	if err != nil {
		return nil, err
	}
	slog.Info("flushed chat batch into memory",
		"user_id", userID,
		"project_id", projectID,
		"blobs", len(blobs),
		"adds", len(resp.AddProfiles),
		"updates", len(resp.UpdateProfiles),
		"deletes", len(resp.DeleteProfiles),
	)
	return resp, nil
}

// persist applies the queued mutations in add, update, delete order.
func (f *Flusher) persist(ctx context.Context, userID uuid.UUID, projectID string, muts *mutations, eventID *uuid.UUID) (*Response, error) {
	resp := &Response{
		EventID:        eventID,
		AddProfiles:    []uuid.UUID{},
		UpdateProfiles: []uuid.UUID{},
		DeleteProfiles: []uuid.UUID{},
	}
	if len(muts.adds) > 0 {
		creates := make([]*store.CreateUserProfile, 0, len(muts.adds))
		for _, a := range muts.adds {
			creates = append(creates, &store.CreateUserProfile{
				UserID:     userID,
				ProjectID:  projectID,
				Content:    a.content,
				Attributes: a.attrs,
			})
		}
		ids, err := f.store.CreateUserProfiles(ctx, creates)
		if err != nil {
			return nil, err
		}
		resp.AddProfiles = ids
	}
	for _, u := range muts.updates {
		attrs := u.attrs
		ok, err := f.store.UpdateUserProfile(ctx, &store.UpdateUserProfile{
			ID:         u.id,
			UserID:     userID,
			ProjectID:  projectID,
			Content:    u.content,
			Attributes: &attrs,
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			slog.Warn("profile slot vanished before update, skipping", "profile_id", u.id, "user_id", userID)
			continue
		}
		resp.UpdateProfiles = append(resp.UpdateProfiles, u.id)
	}
	if len(muts.deletes) > 0 {
		if _, err := f.store.DeleteUserProfiles(ctx, &store.DeleteUserProfiles{
			IDs:       muts.deletes,
			UserID:    userID,
			ProjectID: projectID,
		}); err != nil {
			return nil, err
		}
		resp.DeleteProfiles = muts.deletes
	}
	return resp, nil
}

// joinTranscripts renders the batch the way prompts consume it, one
// blob transcript per line block.
func joinTranscripts(blobs []*store.Blob, loc *time.Location) string {
	parts := make([]string, 0, len(blobs))
	for _, b := range blobs {
		parts = append(parts, b.Transcript(loc))
	}
	return strings.Join(parts, "\n")
}

// dedupeAdds collapses queued adds that landed on the same slot,
// joining their contents.
func dedupeAdds(adds []pendingAdd) []pendingAdd {
	index := make(map[profileKey]int, len(adds))
	out := make([]pendingAdd, 0, len(adds))
	for _, a := range adds {
		key := profileKey{profile.Unify(a.attrs.Topic), profile.Unify(a.attrs.SubTopic)}
		if i, ok := index[key]; ok {
			out[i].content = out[i].content + "; " + a.content
			continue
		}
		index[key] = len(out)
		out = append(out, a)
	}
	return out
}
