package flush

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hrygo/memoria/ai/llm"
	"github.com/hrygo/memoria/ai/prompts"
	"github.com/hrygo/memoria/ai/tokenizer"
)

// condenseOversized shrinks queued memos that outgrew
// max_pre_profile_token_size. A failed condense keeps the oversized
// memo; an oversized profile beats a lost one.
func (f *Flusher) condenseOversized(ctx context.Context, projectID string, muts *mutations) {
	limit := f.profile.MaxPreProfileTokenSize
	var wg sync.WaitGroup
	for i := range muts.adds {
		if tokenizer.CountTokens(muts.adds[i].content) <= limit {
			continue
		}
		wg.Add(1)
		go func(content *string) {
			defer wg.Done()
			f.condenseMemo(ctx, projectID, content)
		}(&muts.adds[i].content)
	}
	for i := range muts.updates {
		if tokenizer.CountTokens(muts.updates[i].content) <= limit {
			continue
		}
		wg.Add(1)
		go func(content *string) {
			defer wg.Done()
			f.condenseMemo(ctx, projectID, content)
		}(&muts.updates[i].content)
	}
	wg.Wait()
}

func (f *Flusher) condenseMemo(ctx context.Context, projectID string, content *string) {
	condensed, err := f.llm.Complete(ctx, &llm.Request{
		ProjectID:    projectID,
		Model:        f.profile.SummaryModel(),
		Prompt:       *content,
		SystemPrompt: prompts.SummaryProfilePrompt(),
		Temperature:  0.2,
		PromptID:     "summary_profile",
	})
	if err != nil {
		slog.Warn("unable to condense oversized memo, keeping it as is", "project_id", projectID, "error", err)
		return
	}
	*content = tokenizer.Truncate(condensed, f.profile.MaxPreProfileTokenSize/2)
}
