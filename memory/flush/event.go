package flush

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hrygo/memoria/ai/embedding"
	"github.com/hrygo/memoria/ai/llm"
	"github.com/hrygo/memoria/ai/prompts"
	"github.com/hrygo/memoria/ai/tokenizer"
	"github.com/hrygo/memoria/internal/profile"
	"github.com/hrygo/memoria/store"
)

// recordSessionEvent appends one episodic event covering this flush.
// Nothing is appended when the batch changed no profile slot. The
// summary tip rides along only when event summaries are enabled and
// the transcript is long enough to be worth one.
func (f *Flusher) recordSessionEvent(ctx context.Context, userID uuid.UUID, projectID string, cfg *projectConfig, memo, transcript string, muts *mutations) (*uuid.UUID, error) {
	deltas := muts.eventDeltas()
	if len(deltas) == 0 {
		return nil, nil
	}

	data := store.EventData{ProfileDelta: deltas}
	if cfg.eventSummary && tokenizer.CountTokens(transcript) >= f.profile.MinChatTokensForSummary {
		tip := memo
		data.EventTip = &tip
		data.EventTags = f.tagEvent(ctx, projectID, cfg, memo)
	}

	create := &store.CreateUserEvent{
		UserID:    userID,
		ProjectID: projectID,
		Data:      data,
	}
	if f.embedder != nil && f.profile.EnableEventEmbedding {
		vectors, err := f.embedder.Embed(ctx, projectID, []string{data.EmbeddingText()}, embedding.PhaseDocument)
		switch {
		case err != nil:
			slog.Error("unable to embed session event, storing it unsearchable", "user_id", userID, "error", err)
		case len(vectors) != 1 || len(vectors[0]) != f.embedder.Dimensions():
			slog.Error("session event embedding has the wrong shape, storing it unsearchable", "user_id", userID, "vectors", len(vectors))
		default:
			create.Embedding = vectors[0]
		}
	}

	event, err := f.store.CreateUserEvent(ctx, create)
	if err != nil {
		return nil, err
	}
	return &event.ID, nil
}

// tagEvent labels the event with the project's configured tags. A
// failed or unparseable tagging call leaves the event untagged.
func (f *Flusher) tagEvent(ctx context.Context, projectID string, cfg *projectConfig, memo string) []store.EventTag {
	if len(cfg.eventTags) == 0 {
		return nil
	}
	tab := f.profile.LLMTabSeparator
	response, err := f.llm.Complete(ctx, &llm.Request{
		ProjectID:    projectID,
		Model:        f.profile.SummaryModel(),
		Prompt:       memo,
		SystemPrompt: prompts.EventTaggingPrompt(prompts.FormatEventTags(cfg.eventTags), tab),
		Temperature:  0.2,
		PromptID:     "event_tagging",
	})
	if err != nil {
		slog.Error("unable to tag session event, keeping it untagged", "project_id", projectID, "error", err)
		return nil
	}

	allowed := make(map[string]bool, len(cfg.eventTags))
	for _, t := range cfg.eventTags {
		allowed[profile.Unify(t.Name)] = true
	}
	var tags []store.EventTag
	for _, m := range prompts.ParseSubTopics(response, tab) {
		if !allowed[m.SubTopic] {
			slog.Info("dropping unconfigured event tag", "tag", m.SubTopic)
			continue
		}
		tags = append(tags, store.EventTag{Tag: m.SubTopic, Value: m.Memo})
	}
	return tags
}
