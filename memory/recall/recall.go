// Package recall assembles the memory context injected into a chat
// model's prompt: the user's most relevant profile slots plus recent or
// semantically matching events, fitted into a caller-supplied token
// budget.
package recall

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hrygo/memoria/ai/embedding"
	"github.com/hrygo/memoria/ai/llm"
	"github.com/hrygo/memoria/ai/prompts"
	"github.com/hrygo/memoria/ai/tokenizer"
	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/internal/profile"
	"github.com/hrygo/memoria/store"
)

// contextEventLimit bounds how many events are considered before the
// token budget cuts further.
const contextEventLimit = 20

// eventSearchWindowDays is the recency window of the context's event
// search.
const eventSearchWindowDays = 21

// Completer is the completion surface the profile selection step needs.
type Completer interface {
	Complete(ctx context.Context, req *llm.Request) (string, error)
}

// Storage is the slice of the store context assembly reads from.
type Storage interface {
	GetProject(ctx context.Context, projectID string) (*store.Project, error)
	ListUserProfiles(ctx context.Context, find *store.FindUserProfiles) ([]*store.UserProfile, error)
	ListUserEvents(ctx context.Context, find *store.FindUserEvents) ([]*store.UserEvent, error)
	SearchUserEvents(ctx context.Context, search *store.SearchUserEvents) ([]*store.UserEvent, error)
}

// Params controls one context assembly.
type Params struct {
	MaxTokenSize             int
	PreferTopics             []string
	OnlyTopics               []string
	MaxSubtopicSize          int
	TopicLimits              map[string]int
	ProfileEventRatio        float64
	RequireEventSummary      bool
	Chats                    []store.Message
	EventSimilarityThreshold float64
}

// DefaultParams returns the API defaults for context assembly.
func DefaultParams() Params {
	return Params{
		MaxTokenSize:             1000,
		ProfileEventRatio:        0.6,
		EventSimilarityThreshold: 0.3,
	}
}

// Assembler builds memory context strings.
type Assembler struct {
	profile  *profile.Profile
	store    Storage
	llm      Completer
	embedder embedding.Service
}

// New builds an Assembler. The embedder may be nil; event retrieval
// then always falls back to the recency listing.
func New(p *profile.Profile, st Storage, completer Completer, embedder embedding.Service) *Assembler {
	return &Assembler{
		profile:  p,
		store:    st,
		llm:      completer,
		embedder: embedder,
	}
}

// Context composes the memory block for one user. The profile share of
// the budget is params.ProfileEventRatio; events get whatever the
// rendered profile section leaves over.
func (a *Assembler) Context(ctx context.Context, userID uuid.UUID, projectID string, params Params) (string, error) {
	if params.ProfileEventRatio <= 0 || params.ProfileEventRatio > 1 {
		return "", errcode.New(errcode.BadRequest, "profile_event_ratio must be within (0, 1], got %v", params.ProfileEventRatio)
	}
	profileBudget := int(float64(params.MaxTokenSize) * params.ProfileEventRatio)

	proj, err := a.store.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	if proj == nil {
		return "", errcode.New(errcode.NotFound, "project %s not found", projectID)
	}
	overlay, err := profile.LoadConfigString(proj.ProfileConfig)
	if err != nil {
		slog.Warn("stored profile config no longer loads, using server defaults", "project_id", projectID, "error", err)
		overlay = &profile.ProfileConfig{}
	}
	lang := overlay.ResolveLanguage(a.profile)

	profiles, err := a.store.ListUserProfiles(ctx, &store.FindUserProfiles{UserID: userID, ProjectID: projectID})
	if err != nil {
		return "", err
	}

	profileSection := ""
	if profileBudget > 0 {
		if len(params.Chats) > 0 {
			picked, err := a.PickRelatedProfiles(ctx, projectID, profiles, params.Chats, params.OnlyTopics)
			if err != nil {
				slog.Warn("unable to pick related profiles, keeping all of them", "user_id", userID, "error", err)
			} else {
				profiles = picked
			}
		}
		kept := TruncateProfiles(profiles, TruncateOptions{
			PreferTopics:    params.PreferTopics,
			OnlyTopics:      params.OnlyTopics,
			MaxTokenSize:    profileBudget,
			MaxSubtopicSize: params.MaxSubtopicSize,
			TopicLimits:     params.TopicLimits,
		})
		profileSection = RenderProfileSection(kept)
	}

	eventBudget := params.MaxTokenSize - tokenizer.CountTokens(profileSection)
	if eventBudget <= 0 {
		return prompts.ContextPrompt(lang, profileSection, ""), nil
	}

	events, err := a.fetchEvents(ctx, userID, projectID, params)
	if err != nil {
		return "", err
	}
	events = TruncateEvents(events, eventBudget)
	slog.Debug("assembled memory context",
		"user_id", userID,
		"profile_tokens", params.MaxTokenSize-eventBudget,
		"events", len(events),
	)
	return prompts.ContextPrompt(lang, profileSection, RenderEventSection(events)), nil
}

// SearchEvents runs a semantic event lookup for the API surface.
func (a *Assembler) SearchEvents(ctx context.Context, userID uuid.UUID, projectID, query string, limit int, minSimilarity float64, timeRangeDays int) ([]*store.UserEvent, error) {
	if !a.profile.EnableEventEmbedding || a.embedder == nil {
		return nil, errcode.New(errcode.NotImplemented, "event embedding is not enabled")
	}
	vectors, err := a.embedder.Embed(ctx, projectID, []string{query}, embedding.PhaseQuery)
	if err != nil {
		return nil, err
	}
	return a.store.SearchUserEvents(ctx, &store.SearchUserEvents{
		UserID:        userID,
		ProjectID:     projectID,
		Embedding:     vectors[0],
		Limit:         limit,
		MinSimilarity: minSimilarity,
		TimeRangeDays: timeRangeDays,
	})
}

// fetchEvents picks vector search when the caller brought a
// conversation tail and embeddings are live, recency otherwise.
func (a *Assembler) fetchEvents(ctx context.Context, userID uuid.UUID, projectID string, params Params) ([]*store.UserEvent, error) {
	if len(params.Chats) > 0 && a.profile.EnableEventEmbedding && a.embedder != nil {
		query := params.Chats[len(params.Chats)-1].Content
		vectors, err := a.embedder.Embed(ctx, projectID, []string{query}, embedding.PhaseQuery)
		if err != nil {
			return nil, err
		}
		return a.store.SearchUserEvents(ctx, &store.SearchUserEvents{
			UserID:        userID,
			ProjectID:     projectID,
			Embedding:     vectors[0],
			Limit:         contextEventLimit,
			MinSimilarity: params.EventSimilarityThreshold,
			TimeRangeDays: eventSearchWindowDays,
		})
	}
	return a.store.ListUserEvents(ctx, &store.FindUserEvents{
		UserID:     userID,
		ProjectID:  projectID,
		RequireTip: params.RequireEventSummary,
		Limit:      contextEventLimit,
	})
}
