package flush

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/hrygo/memoria/ai/llm"
	"github.com/hrygo/memoria/ai/prompts"
	"github.com/hrygo/memoria/internal/profile"
	"github.com/hrygo/memoria/store"
)

// entrySummary condenses the transcript into a dated memo of user
// info, schedules and events. Every later stage reads from this memo
// rather than the raw chats.
func (f *Flusher) entrySummary(ctx context.Context, projectID string, cfg *projectConfig, transcript string) (string, error) {
	return f.llm.Complete(ctx, &llm.Request{
		ProjectID:    projectID,
		Model:        f.profile.SummaryModel(),
		Prompt:       prompts.EntrySummaryInput(transcript),
		SystemPrompt: prompts.EntrySummaryPrompt(cfg.lang, prompts.FormatTopics(cfg.topics), prompts.FormatEventTags(cfg.eventTags)),
		Temperature:  0.2,
		PromptID:     "entry_summary",
	})
}

// extractFacts pulls new profile facts out of the entry memo. It also
// loads the user's current profile set, which the merge and organize
// stages reuse, into muts.before.
func (f *Flusher) extractFacts(ctx context.Context, userID uuid.UUID, projectID string, cfg *projectConfig, memo string, muts *mutations) ([]prompts.Fact, error) {
	profiles, err := f.store.ListUserProfiles(ctx, &store.FindUserProfiles{UserID: userID, ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	muts.before = profiles

	allowed := make(map[profileKey]bool)
	for _, t := range cfg.topics {
		unifiedTopic := profile.Unify(t.Topic)
		for _, st := range t.SubTopics {
			allowed[profileKey{unifiedTopic, profile.Unify(st.Name)}] = true
		}
	}

	tab := f.profile.LLMTabSeparator
	seen := make(map[profileKey]bool)
	already := make([]string, 0, len(profiles))
	for _, p := range profiles {
		key := profileKey{profile.Unify(p.Attributes.Topic), profile.Unify(p.Attributes.SubTopic)}
		if cfg.strictMode && !allowed[key] {
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		already = append(already, "- "+key.topic+tab+key.subTopic)
	}
	sort.Strings(already)

	response, err := f.llm.Complete(ctx, &llm.Request{
		ProjectID:    projectID,
		Prompt:       prompts.ExtractInput(cfg.lang, strings.Join(already, "\n"), memo, cfg.strictMode),
		SystemPrompt: prompts.ExtractPrompt(cfg.lang, f.profile.SystemPrompt, tab, prompts.FormatTopics(cfg.topics)),
		Temperature:  0.2,
		PromptID:     "extract_profile",
	})
	if err != nil {
		return nil, err
	}

	facts := prompts.ParseFacts(response, tab)
	if cfg.strictMode {
		kept := make([]prompts.Fact, 0, len(facts))
		for _, fact := range facts {
			if !allowed[profileKey{fact.Topic, fact.SubTopic}] {
				slog.Info("dropping out-of-vocabulary fact in strict mode", "topic", fact.Topic, "sub_topic", fact.SubTopic)
				continue
			}
			kept = append(kept, fact)
		}
		facts = kept
	}
	facts = dedupeFacts(facts)
	if len(facts) == 0 {
		slog.Info("no new profile facts in chat batch", "user_id", userID)
	}
	return facts, nil
}

// dedupeFacts collapses facts that landed on the same slot, joining
// their memos.
func dedupeFacts(facts []prompts.Fact) []prompts.Fact {
	index := make(map[profileKey]int, len(facts))
	out := make([]prompts.Fact, 0, len(facts))
	for _, f := range facts {
		key := profileKey{f.Topic, f.SubTopic}
		if i, ok := index[key]; ok {
			out[i].Memo = out[i].Memo + "; " + f.Memo
			continue
		}
		index[key] = len(out)
		out = append(out, f)
	}
	return out
}
