package recall

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hrygo/memoria/ai/tokenizer"
	"github.com/hrygo/memoria/store"
)

// TruncateOptions filters and budgets a profile list for prompting.
// Zero values disable the corresponding step.
type TruncateOptions struct {
	PreferTopics    []string
	OnlyTopics      []string
	TopK            int
	MaxTokenSize    int
	MaxSubtopicSize int
	TopicLimits     map[string]int
}

// TruncateProfiles orders and trims a profile list without mutating the
// input slice. Entries are newest first; preferred topics jump the
// queue; per-topic caps and the token budget cut from the tail. The
// newest entry always survives the token budget, a context with one
// oversized profile beats an empty one.
func TruncateProfiles(rows []*store.UserProfile, opts TruncateOptions) []*store.UserProfile {
	if len(rows) == 0 {
		return rows
	}
	out := make([]*store.UserProfile, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	if len(opts.PreferTopics) > 0 {
		weights := make(map[string]int, len(opts.PreferTopics))
		for i, t := range opts.PreferTopics {
			weights[strings.TrimSpace(t)] = i
		}
		sort.SliceStable(out, func(i, j int) bool {
			wi, oki := weights[out[i].Attributes.Topic]
			wj, okj := weights[out[j].Attributes.Topic]
			if oki != okj {
				return oki
			}
			if oki && okj {
				return wi < wj
			}
			return false
		})
	}

	if len(opts.OnlyTopics) > 0 {
		only := make(map[string]bool, len(opts.OnlyTopics))
		for _, t := range opts.OnlyTopics {
			only[strings.TrimSpace(t)] = true
		}
		kept := make([]*store.UserProfile, 0, len(out))
		for _, p := range out {
			if only[strings.TrimSpace(p.Attributes.Topic)] {
				kept = append(kept, p)
			}
		}
		out = kept
	}

	if opts.MaxSubtopicSize > 0 || len(opts.TopicLimits) > 0 {
		defaultLimit := opts.MaxSubtopicSize
		if defaultLimit <= 0 {
			defaultLimit = -1
		}
		counts := make(map[string]int)
		kept := make([]*store.UserProfile, 0, len(out))
		for _, p := range out {
			topic := p.Attributes.Topic
			limit := defaultLimit
			if v, ok := opts.TopicLimits[topic]; ok {
				limit = v
			}
			counts[topic]++
			if limit >= 0 && counts[topic] > limit {
				continue
			}
			kept = append(kept, p)
		}
		out = kept
	}

	if opts.TopK > 0 && len(out) > opts.TopK {
		out = out[:opts.TopK]
	}

	if opts.MaxTokenSize > 0 && len(out) > 0 {
		total := 0
		cut := 1
		for i, p := range out {
			total += tokenizer.CountTokens(profileLine(p))
			if total > opts.MaxTokenSize {
				break
			}
			cut = i + 1
		}
		out = out[:cut]
	}
	return out
}

// TruncateEvents keeps the prefix of events whose rendered form fits
// the token budget. A budget of zero or less leaves the list alone.
func TruncateEvents(events []*store.UserEvent, maxTokens int) []*store.UserEvent {
	if maxTokens <= 0 {
		return events
	}
	total := 0
	for i, e := range events {
		total += tokenizer.CountTokens(e.Data.DisplayText())
		if total > maxTokens {
			return events[:i]
		}
	}
	return events
}

func profileLine(p *store.UserProfile) string {
	return fmt.Sprintf("%s::%s: %s", p.Attributes.Topic, p.Attributes.SubTopic, p.Content)
}

// RenderProfileSection renders profiles as the bullet list the context
// prompt embeds.
func RenderProfileSection(rows []*store.UserProfile) string {
	if len(rows) == 0 {
		return ""
	}
	lines := make([]string, 0, len(rows))
	for _, p := range rows {
		lines = append(lines, "- "+profileLine(p))
	}
	return strings.Join(lines, "\n")
}

// RenderEventSection renders events separated by horizontal rules.
func RenderEventSection(events []*store.UserEvent) string {
	parts := make([]string, 0, len(events))
	for _, e := range events {
		parts = append(parts, e.Data.DisplayText())
	}
	return strings.Join(parts, "\n---\n")
}
