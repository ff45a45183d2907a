package recall

import (
	"context"
	"sort"
	"strings"

	"github.com/hrygo/memoria/ai/llm"
	"github.com/hrygo/memoria/ai/prompts"
	"github.com/hrygo/memoria/ai/tokenizer"
	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/store"
)

const (
	// pickValueTokenSize trims each candidate memo shown to the
	// selection model; it only needs a hint, not the full content.
	pickValueTokenSize = 10
	// pickPreviousChats bounds the conversation tail in the selection
	// prompt, plus the triggering message itself.
	pickPreviousChats = 4
	// pickMaxSelected caps how many profiles the model may select.
	pickMaxSelected = 10
)

// PickRelatedProfiles asks a cheap model which profiles matter for the
// current conversation tail and returns them in the model's order.
// Callers treat any failure as "keep everything".
func (a *Assembler) PickRelatedProfiles(ctx context.Context, projectID string, rows []*store.UserProfile, chats []store.Message, onlyTopics []string) ([]*store.UserProfile, error) {
	if len(chats) == 0 || len(rows) == 0 {
		return nil, errcode.New(errcode.BadRequest, "no chats or profiles to filter")
	}
	if len(chats) > pickPreviousChats+1 {
		chats = chats[len(chats)-(pickPreviousChats+1):]
	}

	var only map[string]bool
	if len(onlyTopics) > 0 {
		only = make(map[string]bool, len(onlyTopics))
		for _, t := range onlyTopics {
			only[strings.TrimSpace(t)] = true
		}
	}

	type candidate struct {
		source int
		row    prompts.MemoRow
	}
	candidates := make([]candidate, 0, len(rows))
	for i, p := range rows {
		if only != nil && !only[strings.TrimSpace(p.Attributes.Topic)] {
			continue
		}
		candidates = append(candidates, candidate{
			source: i,
			row: prompts.MemoRow{
				Topic:    p.Attributes.Topic,
				SubTopic: p.Attributes.SubTopic,
				Content:  tokenizer.Truncate(p.Content, pickValueTokenSize),
			},
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].row.Topic != candidates[j].row.Topic {
			return candidates[i].row.Topic < candidates[j].row.Topic
		}
		return candidates[i].row.SubTopic < candidates[j].row.SubTopic
	})

	messages := make([]prompts.ChatMessage, 0, len(chats))
	for _, m := range chats {
		messages = append(messages, prompts.ChatMessage{Role: m.Role, Content: m.Content})
	}
	memoRows := make([]prompts.MemoRow, 0, len(candidates))
	for _, c := range candidates {
		memoRows = append(memoRows, c.row)
	}

	response, err := a.llm.Complete(ctx, &llm.Request{
		ProjectID:    projectID,
		Model:        a.profile.SummaryModel(),
		Prompt:       prompts.PickRelatedInput(messages, memoRows),
		SystemPrompt: prompts.PickRelatedPrompt(pickMaxSelected),
		Temperature:  0.2,
		PromptID:     "pick_related_profiles",
	})
	if err != nil {
		return nil, err
	}
	ids, ok := prompts.FindIntList(response)
	if !ok {
		return nil, errcode.New(errcode.ServerParseError, "selection response carries no index list: %s", response)
	}

	picked := make([]*store.UserProfile, 0, len(ids))
	for _, id := range ids {
		if id < 0 || id >= len(candidates) {
			continue
		}
		picked = append(picked, rows[candidates[id].source])
	}
	return picked, nil
}
