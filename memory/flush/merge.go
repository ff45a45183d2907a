package flush

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/memoria/ai/llm"
	"github.com/hrygo/memoria/ai/prompts"
	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/internal/profile"
	"github.com/hrygo/memoria/store"
)

// mergeFacts reconciles each extracted fact against the slot it lands
// on. Facts are independent, so they merge concurrently; a merge
// verdict that violates the line contract aborts the whole batch.
func (f *Flusher) mergeFacts(ctx context.Context, projectID string, cfg *projectConfig, facts []prompts.Fact, muts *mutations) error {
	if len(facts) == 0 {
		return nil
	}

	defined := make(map[profileKey]profile.SubTopicSpec)
	for _, t := range cfg.topics {
		unifiedTopic := profile.Unify(t.Topic)
		for _, st := range t.SubTopics {
			defined[profileKey{unifiedTopic, profile.Unify(st.Name)}] = st
		}
	}
	runtime := make(map[profileKey]*store.UserProfile, len(muts.before))
	for _, p := range muts.before {
		runtime[profileKey{profile.Unify(p.Attributes.Topic), profile.Unify(p.Attributes.SubTopic)}] = p
	}
	today := time.Now().In(f.profile.Timezone()).Format("2006-01-02")

	g, gctx := errgroup.WithContext(ctx)
	for _, fact := range facts {
		fact := fact
		key := profileKey{fact.Topic, fact.SubTopic}
		spec := defined[key]
		old := runtime[key]
		g.Go(func() error {
			return f.mergeOne(gctx, projectID, cfg, fact, spec, old, today, muts)
		})
	}
	return g.Wait()
}

func (f *Flusher) mergeOne(ctx context.Context, projectID string, cfg *projectConfig, fact prompts.Fact, spec profile.SubTopicSpec, old *store.UserProfile, today string, muts *mutations) error {
	attrs := store.ProfileAttributes{Topic: fact.Topic, SubTopic: fact.SubTopic}
	if !cfg.validateMode && !spec.ValidateValue && old == nil {
		muts.queueAdd(fact.Memo, attrs)
		return nil
	}

	oldMemo := "NONE"
	if old != nil {
		oldMemo = old.Content
	}
	tab := f.profile.LLMTabSeparator
	response, err := f.llm.Complete(ctx, &llm.Request{
		ProjectID:    projectID,
		Prompt:       prompts.MergeInput(cfg.lang, today, fact.Topic, fact.SubTopic, oldMemo, fact.Memo, spec.UpdateDescription, spec.Description),
		SystemPrompt: prompts.MergePrompt(cfg.lang, tab),
		Temperature:  0.2,
		PromptID:     "merge_profile",
	})
	if err != nil {
		return err
	}

	verdict, ok := prompts.ParseMergeAction(response, tab)
	if !ok {
		return errcode.New(errcode.ServerParseError, "merge verdict for %s%s%s does not follow the line contract: %s", fact.Topic, tab, fact.SubTopic, response)
	}
	switch verdict.Action {
	case "UPDATE":
		if old == nil {
			muts.queueAdd(verdict.Memo, attrs)
			return nil
		}
		muts.queueUpdate(old.ID, verdict.Memo, store.ProfileAttributes{
			Topic:      old.Attributes.Topic,
			SubTopic:   old.Attributes.SubTopic,
			UpdateHits: old.Attributes.UpdateHits + 1,
		})
		muts.queueDelta(fact.Memo, attrs)
		return nil
	case "ABORT":
		if old != nil {
			muts.queueDelete(old.ID)
		}
		return nil
	default:
		return errcode.New(errcode.ServerParseError, "unknown merge action %q for %s%s%s", verdict.Action, fact.Topic, tab, fact.SubTopic)
	}
}
