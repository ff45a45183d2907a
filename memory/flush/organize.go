package flush

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/memoria/ai/llm"
	"github.com/hrygo/memoria/ai/prompts"
	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/internal/profile"
	"github.com/hrygo/memoria/store"
)

// organizeResult is the condensed replacement for one overgrown topic.
type organizeResult struct {
	deletes []uuid.UUID
	adds    []pendingAdd
}

// organizeProfiles condenses every topic whose slot count outgrew
// max_profile_subtopics. Topics condense concurrently, but the results
// apply only when all of them succeed, so a bad reorganize never
// half-rewrites the profile set.
func (f *Flusher) organizeProfiles(ctx context.Context, projectID string, cfg *projectConfig, muts *mutations) error {
	maxSlots := f.profile.MaxProfileSubtopics
	groups := make(map[string][]*store.UserProfile)
	var order []string
	for _, p := range muts.before {
		topic := profile.Unify(p.Attributes.Topic)
		if _, ok := groups[topic]; !ok {
			order = append(order, topic)
		}
		groups[topic] = append(groups[topic], p)
	}

	var overgrown []string
	for _, topic := range order {
		if len(groups[topic]) > maxSlots {
			overgrown = append(overgrown, topic)
		}
	}
	if len(overgrown) == 0 {
		return nil
	}

	results := make([]organizeResult, len(overgrown))
	g, gctx := errgroup.WithContext(ctx)
	for i, topic := range overgrown {
		i, topic := i, topic
		g.Go(func() error {
			result, err := f.organizeTopic(gctx, projectID, cfg, topic, groups[topic])
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range results {
		muts.deletes = append(muts.deletes, r.deletes...)
		muts.adds = append(muts.adds, r.adds...)
	}
	muts.adds = dedupeAdds(muts.adds)
	return nil
}

// organizeTopic asks the model to fold one topic's slots into at most
// max_profile_subtopics/2 + 1 condensed entries.
func (f *Flusher) organizeTopic(ctx context.Context, projectID string, cfg *projectConfig, topic string, rows []*store.UserProfile) (organizeResult, error) {
	memos := make([]prompts.SubTopicMemo, 0, len(rows))
	for _, r := range rows {
		memos = append(memos, prompts.SubTopicMemo{SubTopic: r.Attributes.SubTopic, Memo: r.Content})
	}

	tab := f.profile.LLMTabSeparator
	limit := f.profile.MaxProfileSubtopics/2 + 1
	response, err := f.llm.Complete(ctx, &llm.Request{
		ProjectID:    projectID,
		Prompt:       prompts.OrganizeInput(topic, memos, tab),
		SystemPrompt: prompts.OrganizePrompt(limit, prompts.SpecificSubtopics(topic, cfg.topics), tab),
		Temperature:  0.2,
		PromptID:     "organize_profile",
	})
	if err != nil {
		return organizeResult{}, err
	}

	condensed := prompts.ParseSubTopics(response, tab)
	if len(condensed) == 0 {
		return organizeResult{}, errcode.New(errcode.ServerParseError, "reorganize of topic %s produced no entries: %s", topic, response)
	}
	if len(condensed) > limit {
		condensed = condensed[:limit]
	}

	result := organizeResult{deletes: make([]uuid.UUID, 0, len(rows))}
	for _, r := range rows {
		result.deletes = append(result.deletes, r.ID)
	}
	for _, m := range condensed {
		result.adds = append(result.adds, pendingAdd{
			content: m.Memo,
			attrs:   store.ProfileAttributes{Topic: topic, SubTopic: m.SubTopic},
		})
	}
	return result, nil
}
