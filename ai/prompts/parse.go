package prompts

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/hrygo/memoria/internal/profile"
)

// Fact is one extracted profile line: TOPIC / SUB_TOPIC / MEMO.
type Fact struct {
	Topic    string
	SubTopic string
	Memo     string
}

// MergeAction is the verdict of a memo merge call.
type MergeAction struct {
	Action string
	Memo   string
}

// SubTopicMemo is one reorganized line: SUB_TOPIC / MEMO.
type SubTopicMemo struct {
	SubTopic string
	Memo     string
}

// excludedMemoValues are placeholder answers models produce when a topic had
// no real value. Memos close to any of them are dropped.
var excludedMemoValues = []string{
	// Chinese variations
	"无",
	"未提及",
	"不清楚",
	"用户未提及",
	"对话未提及",
	"未知",
	"不详",
	"没有提到",
	"没有说明",
	"无法确定",
	"无相关内容",
	"未明确提及",
	"无明确信息",
	"无符合信息",
	// English variations
	"none",
	"unknown",
	"not mentioned",
	"not mentioned by user",
	"not mentioned in the conversation",
	"unclear",
	"unspecified",
	"not specified",
	"not determined",
	"no information",
	"n/a",
	"no related content",
	"no related information",
	"no matched information",
}

const meaninglessCutoff = 0.6

// MeaninglessMemo reports whether a memo is a placeholder for "no value".
// Matching is fuzzy so spelling variants are caught too.
func MeaninglessMemo(memo string) bool {
	normalized := strings.ToLower(strings.TrimSpace(memo))
	for _, excluded := range excludedMemoValues {
		if levenshtein.Similarity(normalized, excluded, nil) >= meaninglessCutoff {
			slog.Info("dropping meaningless profile memo", "memo", memo)
			return true
		}
	}
	return false
}

// PackFacts renders facts as the list format models are asked to produce.
// Topic and sub topic names are unified first.
func PackFacts(facts []Fact, tab string) string {
	if len(facts) == 0 {
		return "NONE"
	}
	lines := make([]string, 0, len(facts))
	for _, f := range facts {
		lines = append(lines, "- "+profile.Unify(f.Topic)+tab+profile.Unify(f.SubTopic)+tab+strings.TrimSpace(f.Memo))
	}
	return strings.Join(lines, "\n")
}

// ParseFacts parses an extraction response back into facts. Lines that do
// not follow the list format or carry a meaningless memo are skipped.
func ParseFacts(response, tab string) []Fact {
	var facts []Fact
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		parts := strings.Split(line[2:], tab)
		if len(parts) != 3 {
			continue
		}
		memo := strings.TrimSpace(parts[2])
		if MeaninglessMemo(memo) {
			continue
		}
		facts = append(facts, Fact{
			Topic:    profile.Unify(parts[0]),
			SubTopic: profile.Unify(parts[1]),
			Memo:     memo,
		})
	}
	return facts
}

// ParseMergeAction reads the first list line after the model's reasoning.
func ParseMergeAction(response, tab string) (MergeAction, bool) {
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		parts := strings.Split(line[2:], tab)
		if len(parts) != 2 {
			return MergeAction{}, false
		}
		return MergeAction{
			Action: strings.ToUpper(strings.TrimSpace(parts[0])),
			Memo:   strings.TrimSpace(parts[1]),
		}, true
	}
	return MergeAction{}, false
}

// ParseSubTopics parses a reorganize response into sub topic memos.
func ParseSubTopics(response, tab string) []SubTopicMemo {
	var memos []SubTopicMemo
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		parts := strings.Split(line[2:], tab)
		if len(parts) != 2 {
			continue
		}
		memo := strings.TrimSpace(parts[1])
		if MeaninglessMemo(memo) {
			continue
		}
		memos = append(memos, SubTopicMemo{
			SubTopic: profile.Unify(parts[0]),
			Memo:     memo,
		})
	}
	return memos
}

// ExtractFirstJSON pulls the first balanced JSON object out of a response.
// Newlines are stripped before decoding since models often wrap values.
func ExtractFirstJSON(s string) (map[string]any, bool) {
	var stack []int
	firstStart := -1
	for i, char := range s {
		switch char {
		case '{':
			stack = append(stack, i)
			if firstStart < 0 {
				firstStart = i
			}
		case '}':
			if len(stack) == 0 {
				continue
			}
			stack = stack[:len(stack)-1]
			if len(stack) > 0 {
				continue
			}
			candidate := strings.ReplaceAll(s[firstStart:i+1], "\n", "")
			var decoded map[string]any
			if err := json.Unmarshal([]byte(candidate), &decoded); err != nil {
				slog.Error("JSON decoding failed", "error", err, "head", truncateForLog(candidate))
				return nil, false
			}
			return decoded, true
		}
	}
	slog.Warn("no complete JSON object found in response")
	return nil, false
}

func truncateForLog(s string) string {
	if len(s) <= 50 {
		return s
	}
	return s[:50] + "..."
}

var looseJSONPattern = regexp.MustCompile(`("?\w+"?)\s*:\s*((?s:\{[^}]*\}|".*?"|[^,}]+))`)

// ExtractLooseJSON scrapes key value pairs from a malformed JSON string,
// descending into one level of nested objects.
func ExtractLooseJSON(s string) map[string]any {
	extracted := map[string]any{}
	for _, match := range looseJSONPattern.FindAllStringSubmatch(s, -1) {
		key := strings.Trim(match[1], `"`)
		value := strings.TrimSpace(match[2])
		if strings.HasPrefix(value, "{") && strings.HasSuffix(value, "}") {
			extracted[key] = ExtractLooseJSON(value)
		} else {
			extracted[key] = parseScalar(value)
		}
	}
	if len(extracted) == 0 {
		slog.Warn("no values could be extracted from response")
	}
	return extracted
}

func parseScalar(value string) any {
	value = strings.TrimSpace(value)
	switch value {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if strings.Contains(value, ".") {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	} else if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return strings.Trim(value, `"`)
}

// ToJSON converts a model response to a JSON object, falling back to loose
// extraction when no well formed object is present.
func ToJSON(response string) map[string]any {
	if decoded, ok := ExtractFirstJSON(response); ok {
		return decoded
	}
	slog.Info("attempting to extract values from a non-standard JSON string")
	return ExtractLooseJSON(response)
}

var intListPattern = regexp.MustCompile(`\[\s*(?:\d+(?:\s*,\s*\d+)*\s*)?\]`)

// FindIntList locates the first integer list literal in a response.
func FindIntList(content string) ([]int, bool) {
	match := intListPattern.FindString(content)
	if match == "" {
		return nil, false
	}
	inner := strings.TrimSpace(strings.Trim(match, "[]"))
	if inner == "" {
		return []int{}, true
	}
	parts := strings.Split(inner, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}
