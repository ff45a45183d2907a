package flush

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/memoria/ai/embedding"
	"github.com/hrygo/memoria/ai/llm"
	"github.com/hrygo/memoria/ai/prompts"
	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/internal/profile"
	"github.com/hrygo/memoria/store"
)

// fakeCompleter scripts one response per prompt id.
type fakeCompleter struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []*llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req *llm.Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if err := f.errs[req.PromptID]; err != nil {
		return "", err
	}
	resp, ok := f.responses[req.PromptID]
	if !ok {
		return "", errcode.New(errcode.ServiceUnavailable, "no scripted response for %s", req.PromptID)
	}
	return resp, nil
}

func (f *fakeCompleter) called(promptID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.PromptID == promptID {
			n++
		}
	}
	return n
}

type fakeStore struct {
	mu       sync.Mutex
	profiles []*store.UserProfile
	created  []*store.CreateUserProfile
	updated  []*store.UpdateUserProfile
	deleted  []uuid.UUID
	events   []*store.CreateUserEvent
}

func (s *fakeStore) GetProject(_ context.Context, projectID string) (*store.Project, error) {
	return &store.Project{ID: projectID, Status: store.ProjectStatusActive}, nil
}

func (s *fakeStore) ListUserProfiles(_ context.Context, _ *store.FindUserProfiles) ([]*store.UserProfile, error) {
	return s.profiles, nil
}

func (s *fakeStore) CreateUserProfiles(_ context.Context, creates []*store.CreateUserProfile) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(creates))
	for _, c := range creates {
		s.created = append(s.created, c)
		ids = append(ids, uuid.New())
	}
	return ids, nil
}

func (s *fakeStore) UpdateUserProfile(_ context.Context, update *store.UpdateUserProfile) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, update)
	return true, nil
}

func (s *fakeStore) DeleteUserProfiles(_ context.Context, delete *store.DeleteUserProfiles) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, delete.IDs...)
	return int64(len(delete.IDs)), nil
}

func (s *fakeStore) CreateUserEvent(_ context.Context, create *store.CreateUserEvent) (*store.UserEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, create)
	return &store.UserEvent{ID: uuid.New(), Data: create.Data}, nil
}

type fakeEmbedder struct {
	dim int
	vec []float32
}

func (e *fakeEmbedder) Embed(_ context.Context, _ string, texts []string, _ embedding.Phase) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for range texts {
		out = append(out, e.vec)
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int { return e.dim }

func chatBlob(content string) *store.Blob {
	return &store.Blob{
		ID:        uuid.New(),
		Type:      store.BlobTypeChat,
		Payload:   store.BlobPayload{Messages: []store.Message{{Role: "user", Content: content}}},
		CreatedAt: time.Now(),
	}
}

func scriptedCompleter(responses map[string]string) *fakeCompleter {
	return &fakeCompleter{responses: responses, errs: map[string]error{}}
}

func TestFlushAddsNewProfile(t *testing.T) {
	p := profile.Default()
	p.ProfileValidateMode = false
	st := &fakeStore{}
	completer := scriptedCompleter(map[string]string{
		"entry_summary":   "- user is called Gus [mention 2026/08/25]",
		"extract_profile": "- basic_info::name::Gus",
	})
	f := New(p, st, completer, nil)

	resp, err := f.FlushChats(context.Background(), uuid.New(), "proj-1", []*store.Blob{chatBlob("Hi, I'm Gus")})
	require.NoError(t, err)
	require.Len(t, resp.AddProfiles, 1)
	require.Empty(t, resp.UpdateProfiles)
	require.Empty(t, resp.DeleteProfiles)

	require.Len(t, st.created, 1)
	require.Equal(t, "Gus", st.created[0].Content)
	require.Equal(t, "basic_info", st.created[0].Attributes.Topic)
	require.Equal(t, "name", st.created[0].Attributes.SubTopic)

	// With validate mode off and no prior slot the merge model is bypassed.
	require.Zero(t, completer.called("merge_profile"))

	require.NotNil(t, resp.EventID)
	require.Len(t, st.events, 1)
	require.Nil(t, st.events[0].Data.EventTip)
	require.Len(t, st.events[0].Data.ProfileDelta, 1)
	require.Equal(t, "Gus", st.events[0].Data.ProfileDelta[0].Content)
}

func TestFlushMergeUpdatesExistingSlot(t *testing.T) {
	existing := &store.UserProfile{
		ID:         uuid.New(),
		Content:    "Gus",
		Attributes: store.ProfileAttributes{Topic: "basic_info", SubTopic: "name"},
	}
	st := &fakeStore{profiles: []*store.UserProfile{existing}}
	completer := scriptedCompleter(map[string]string{
		"entry_summary":   "- user corrected their name to Augustus",
		"extract_profile": "- basic_info::name::Augustus",
		"merge_profile":   "think: same person, new spelling\n- UPDATE::Augustus",
	})
	f := New(profile.Default(), st, completer, nil)

	resp, err := f.FlushChats(context.Background(), uuid.New(), "proj-1", []*store.Blob{chatBlob("Actually I'm Augustus")})
	require.NoError(t, err)
	require.Empty(t, resp.AddProfiles)
	require.Equal(t, []uuid.UUID{existing.ID}, resp.UpdateProfiles)

	require.Len(t, st.updated, 1)
	require.Equal(t, "Augustus", st.updated[0].Content)
	require.Equal(t, 1, st.updated[0].Attributes.UpdateHits)

	require.Len(t, st.events, 1)
	require.Len(t, st.events[0].Data.ProfileDelta, 1)
	require.Equal(t, "Augustus", st.events[0].Data.ProfileDelta[0].Content)
}

func TestFlushAbortWithoutPriorQueuesNothing(t *testing.T) {
	st := &fakeStore{}
	completer := scriptedCompleter(map[string]string{
		"entry_summary":   "- user will play games next weekend",
		"extract_profile": "- study::goal::play games",
		"merge_profile":   "- ABORT::not a study goal",
	})
	f := New(profile.Default(), st, completer, nil)

	resp, err := f.FlushChats(context.Background(), uuid.New(), "proj-1", []*store.Blob{chatBlob("I'll play games next weekend")})
	require.NoError(t, err)
	require.Empty(t, resp.AddProfiles)
	require.Empty(t, resp.UpdateProfiles)
	require.Empty(t, resp.DeleteProfiles)
	require.Nil(t, resp.EventID)
	require.Empty(t, st.events)
	require.Empty(t, st.created)
}

func TestFlushAbortDeletesExistingSlot(t *testing.T) {
	existing := &store.UserProfile{
		ID:         uuid.New(),
		Content:    "finish thesis",
		Attributes: store.ProfileAttributes{Topic: "study", SubTopic: "goal"},
	}
	st := &fakeStore{profiles: []*store.UserProfile{existing}}
	completer := scriptedCompleter(map[string]string{
		"entry_summary":   "- user gave up on the goal",
		"extract_profile": "- study::goal::quit the thesis",
		"merge_profile":   "- ABORT::stale",
	})
	f := New(profile.Default(), st, completer, nil)

	resp, err := f.FlushChats(context.Background(), uuid.New(), "proj-1", []*store.Blob{chatBlob("forget that goal")})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{existing.ID}, resp.DeleteProfiles)
	require.Equal(t, []uuid.UUID{existing.ID}, st.deleted)
	require.Nil(t, resp.EventID)
}

func TestFlushRejectsNonChatBlobs(t *testing.T) {
	f := New(profile.Default(), &fakeStore{}, scriptedCompleter(nil), nil)
	doc := &store.Blob{ID: uuid.New(), Type: store.BlobTypeDoc, Payload: store.BlobPayload{Content: "a doc"}}

	_, err := f.FlushChats(context.Background(), uuid.New(), "proj-1", []*store.Blob{doc})
	require.Error(t, err)
	require.Equal(t, errcode.BadRequest, errcode.CodeOf(err))
}

func TestFlushMergeParseFailureAborts(t *testing.T) {
	existing := &store.UserProfile{
		ID:         uuid.New(),
		Content:    "Gus",
		Attributes: store.ProfileAttributes{Topic: "basic_info", SubTopic: "name"},
	}
	st := &fakeStore{profiles: []*store.UserProfile{existing}}
	completer := scriptedCompleter(map[string]string{
		"entry_summary":   "- something",
		"extract_profile": "- basic_info::name::Augustus",
		"merge_profile":   "I believe the new name should replace the old one.",
	})
	f := New(profile.Default(), st, completer, nil)

	_, err := f.FlushChats(context.Background(), uuid.New(), "proj-1", []*store.Blob{chatBlob("hi")})
	require.Error(t, err)
	require.Equal(t, errcode.ServerParseError, errcode.CodeOf(err))
	require.Empty(t, st.created)
	require.Empty(t, st.updated)
	require.Empty(t, st.events)
}

func TestFlushOrganizeCondensesOvergrownTopic(t *testing.T) {
	p := profile.Default()
	p.MaxProfileSubtopics = 3
	var rows []*store.UserProfile
	for _, sub := range []string{"chess", "hiking", "baking", "movies"} {
		rows = append(rows, &store.UserProfile{
			ID:         uuid.New(),
			Content:    "likes " + sub,
			Attributes: store.ProfileAttributes{Topic: "interest", SubTopic: sub},
		})
	}
	st := &fakeStore{profiles: rows}
	completer := scriptedCompleter(map[string]string{
		"entry_summary":    "- nothing new",
		"extract_profile":  "NONE",
		"organize_profile": "- indoor::chess, baking and movies\n- outdoor::hiking",
	})
	f := New(p, st, completer, nil)

	resp, err := f.FlushChats(context.Background(), uuid.New(), "proj-1", []*store.Blob{chatBlob("hello again")})
	require.NoError(t, err)
	require.Len(t, resp.DeleteProfiles, 4)
	require.Len(t, resp.AddProfiles, 2)
	require.Len(t, st.created, 2)
	require.Equal(t, "indoor", st.created[0].Attributes.SubTopic)
	require.Equal(t, "interest", st.created[0].Attributes.Topic)
	// Condensing existing slots is not a new observation, so no event.
	require.Nil(t, resp.EventID)
}

func TestFlushOrganizeFailureKeepsLayout(t *testing.T) {
	p := profile.Default()
	p.MaxProfileSubtopics = 1
	rows := []*store.UserProfile{
		{ID: uuid.New(), Content: "likes chess", Attributes: store.ProfileAttributes{Topic: "interest", SubTopic: "chess"}},
		{ID: uuid.New(), Content: "likes hiking", Attributes: store.ProfileAttributes{Topic: "interest", SubTopic: "hiking"}},
	}
	st := &fakeStore{profiles: rows}
	// No organize_profile script: the call fails, the flush still succeeds.
	completer := scriptedCompleter(map[string]string{
		"entry_summary":   "- nothing new",
		"extract_profile": "NONE",
	})
	f := New(p, st, completer, nil)

	resp, err := f.FlushChats(context.Background(), uuid.New(), "proj-1", []*store.Blob{chatBlob("hello")})
	require.NoError(t, err)
	require.Empty(t, resp.DeleteProfiles)
	require.Empty(t, resp.AddProfiles)
	require.Empty(t, st.deleted)
}

func TestFlushEventTipAndTags(t *testing.T) {
	p := profile.Default()
	p.ProfileValidateMode = false
	p.MinChatTokensForSummary = 1
	p.EventTags = []profile.EventTag{{Name: "emotion"}}
	st := &fakeStore{}
	completer := scriptedCompleter(map[string]string{
		"entry_summary":   "- user adopted a dog and is thrilled",
		"extract_profile": "- interest::pets::has a dog",
		"event_tagging":   "- emotion::thrilled\n- weather::sunny",
	})
	f := New(p, st, completer, nil)

	resp, err := f.FlushChats(context.Background(), uuid.New(), "proj-1", []*store.Blob{chatBlob("We adopted a dog today, best day ever")})
	require.NoError(t, err)
	require.NotNil(t, resp.EventID)
	require.Len(t, st.events, 1)

	data := st.events[0].Data
	require.NotNil(t, data.EventTip)
	require.Equal(t, "- user adopted a dog and is thrilled", *data.EventTip)
	// Only configured tags survive the filter.
	require.Equal(t, []store.EventTag{{Tag: "emotion", Value: "thrilled"}}, data.EventTags)
}

func TestFlushShortChatsSkipEventTip(t *testing.T) {
	p := profile.Default()
	p.ProfileValidateMode = false
	p.EventTags = []profile.EventTag{{Name: "emotion"}}
	st := &fakeStore{}
	completer := scriptedCompleter(map[string]string{
		"entry_summary":   "- user has a dog",
		"extract_profile": "- interest::pets::has a dog",
	})
	f := New(p, st, completer, nil)

	_, err := f.FlushChats(context.Background(), uuid.New(), "proj-1", []*store.Blob{chatBlob("hi")})
	require.NoError(t, err)
	require.Len(t, st.events, 1)
	require.Nil(t, st.events[0].Data.EventTip)
	require.Empty(t, st.events[0].Data.EventTags)
	require.Zero(t, completer.called("event_tagging"))
}

func TestFlushEmbedsSessionEvent(t *testing.T) {
	p := profile.Default()
	p.ProfileValidateMode = false
	st := &fakeStore{}
	completer := scriptedCompleter(map[string]string{
		"entry_summary":   "- user has a dog",
		"extract_profile": "- interest::pets::has a dog",
	})
	f := New(p, st, completer, &fakeEmbedder{dim: 3, vec: []float32{0.1, 0.2, 0.3}})

	_, err := f.FlushChats(context.Background(), uuid.New(), "proj-1", []*store.Blob{chatBlob("we have a dog")})
	require.NoError(t, err)
	require.Len(t, st.events, 1)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, st.events[0].Embedding)
}

func TestFlushWrongEmbeddingShapeStoresEventAnyway(t *testing.T) {
	p := profile.Default()
	p.ProfileValidateMode = false
	st := &fakeStore{}
	completer := scriptedCompleter(map[string]string{
		"entry_summary":   "- user has a dog",
		"extract_profile": "- interest::pets::has a dog",
	})
	f := New(p, st, completer, &fakeEmbedder{dim: 3, vec: []float32{0.1, 0.2}})

	resp, err := f.FlushChats(context.Background(), uuid.New(), "proj-1", []*store.Blob{chatBlob("we have a dog")})
	require.NoError(t, err)
	require.NotNil(t, resp.EventID)
	require.Len(t, st.events, 1)
	require.Nil(t, st.events[0].Embedding)
}

func TestFlushCondensesOversizedMemo(t *testing.T) {
	p := profile.Default()
	p.ProfileValidateMode = false
	p.MaxPreProfileTokenSize = 20
	longMemo := strings.TrimSpace(strings.Repeat("mountain hiking with friends ", 40))
	st := &fakeStore{}
	completer := scriptedCompleter(map[string]string{
		"entry_summary":   "- user hikes a lot",
		"extract_profile": "- interest::sports::" + longMemo,
		"summary_profile": "avid mountain hiker",
	})
	f := New(p, st, completer, nil)

	_, err := f.FlushChats(context.Background(), uuid.New(), "proj-1", []*store.Blob{chatBlob("hiking stories")})
	require.NoError(t, err)
	require.Len(t, st.created, 1)
	require.Equal(t, "avid mountain hiker", st.created[0].Content)
}

func TestFlushKeepsOversizedMemoWhenCondenseFails(t *testing.T) {
	p := profile.Default()
	p.ProfileValidateMode = false
	p.MaxPreProfileTokenSize = 20
	longMemo := strings.TrimSpace(strings.Repeat("mountain hiking with friends ", 40))
	st := &fakeStore{}
	completer := scriptedCompleter(map[string]string{
		"entry_summary":   "- user hikes a lot",
		"extract_profile": "- interest::sports::" + longMemo,
	})
	completer.errs["summary_profile"] = errcode.New(errcode.ServiceUnavailable, "upstream down")
	f := New(p, st, completer, nil)

	_, err := f.FlushChats(context.Background(), uuid.New(), "proj-1", []*store.Blob{chatBlob("hiking stories")})
	require.NoError(t, err)
	require.Len(t, st.created, 1)
	require.Equal(t, longMemo, st.created[0].Content)
}

func TestFlushDuplicateFactsMergeMemos(t *testing.T) {
	p := profile.Default()
	p.ProfileValidateMode = false
	st := &fakeStore{}
	completer := scriptedCompleter(map[string]string{
		"entry_summary":   "- user likes chess and also blitz chess",
		"extract_profile": "- interest::games::chess\n- interest::games::blitz",
	})
	f := New(p, st, completer, nil)

	resp, err := f.FlushChats(context.Background(), uuid.New(), "proj-1", []*store.Blob{chatBlob("chess talk")})
	require.NoError(t, err)
	require.Len(t, resp.AddProfiles, 1)
	require.Equal(t, "chess; blitz", st.created[0].Content)
}

func TestDedupeFactsKeepsOrder(t *testing.T) {
	facts := dedupeFacts([]prompts.Fact{
		{Topic: "interest", SubTopic: "games", Memo: "chess"},
		{Topic: "basic_info", SubTopic: "name", Memo: "Gus"},
		{Topic: "interest", SubTopic: "games", Memo: "poker"},
	})
	require.Len(t, facts, 2)
	require.Equal(t, "chess; poker", facts[0].Memo)
	require.Equal(t, "Gus", facts[1].Memo)
}

func TestDedupeAddsUnifiesKeys(t *testing.T) {
	adds := dedupeAdds([]pendingAdd{
		{content: "chess", attrs: store.ProfileAttributes{Topic: "Interest", SubTopic: "games"}},
		{content: "poker", attrs: store.ProfileAttributes{Topic: "interest", SubTopic: "Games"}},
	})
	require.Len(t, adds, 1)
	require.Equal(t, "chess; poker", adds[0].content)
}
