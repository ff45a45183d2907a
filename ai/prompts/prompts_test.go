package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPromptRendersSeparator(t *testing.T) {
	prompt := ExtractPrompt("en", "", "::", "- basic_info ()\n...")
	assert.Contains(t, prompt, "You are a professional psychologist.")
	assert.Contains(t, prompt, "- TOPIC::SUB_TOPIC::MEMO")
	assert.Contains(t, prompt, "- basic_info::name::melinda")
	assert.Contains(t, prompt, "- basic_info ()")
	assert.NotContains(t, prompt, "{tab}")
	assert.NotContains(t, prompt, "{examples}")
}

func TestExtractPromptCustomJob(t *testing.T) {
	prompt := ExtractPrompt("en", "You are a gaming companion.", "::", "...")
	assert.Contains(t, prompt, "You are a gaming companion.")
	assert.NotContains(t, prompt, "You are a professional psychologist.")
}

func TestExtractPromptChinese(t *testing.T) {
	prompt := ExtractPrompt("zh", "", "::", "...")
	assert.Contains(t, prompt, "你是一位专业的心理学家。")
	assert.Contains(t, prompt, "- 基本信息::姓名::melinda")
}

func TestExtractInputStrictMode(t *testing.T) {
	relaxed := ExtractInput("en", "- basic_info", "memo body", false)
	assert.NotContains(t, relaxed, "otherwise your answer is invalid")
	assert.Contains(t, relaxed, "#### Memo\nmemo body")

	strict := ExtractInput("en", "- basic_info", "memo body", true)
	assert.Contains(t, strict, "otherwise your answer is invalid!")
}

func TestMergePrompt(t *testing.T) {
	prompt := MergePrompt("en", "::")
	assert.Contains(t, prompt, "- UPDATE::User is 40 years old")
	assert.Contains(t, prompt, "- ABORT::invalid")
	assert.NotContains(t, prompt, "{tab}")
	assert.NotContains(t, prompt, "{example_replace}")

	zh := MergePrompt("zh", "::")
	assert.Contains(t, zh, "- UPDATE::用户40岁")
}

func TestMergeInputPlaceholders(t *testing.T) {
	input := MergeInput("en", "2025-06-01", "work", "title", "", "software engineer", "", "")
	assert.Contains(t, input, "Today is 2025-06-01.")
	assert.Contains(t, input, "## Old Memo\nNONE")
	assert.Contains(t, input, "## New Memo\nsoftware engineer")
	assert.Contains(t, input, "## Update Instruction\nNONE")
}

func TestEntrySummaryPrompt(t *testing.T) {
	prompt := EntrySummaryPrompt("en", "- basic_info ()", "- emotion")
	assert.Contains(t, prompt, "<topics>\n- basic_info ()\n</topics>")
	assert.Contains(t, prompt, "<attributes>\n- emotion\n</attributes>")

	zh := EntrySummaryPrompt("zh", "topics", "attrs")
	assert.Contains(t, zh, "你是一位从聊天记录中记录个人信息、日程安排和事件的专家。")
}

func TestEntrySummaryInput(t *testing.T) {
	assert.Equal(t, "#### Chats\n[2025/01/01] user: hi\n", EntrySummaryInput("[2025/01/01] user: hi"))
}

func TestOrganizePrompt(t *testing.T) {
	prompt := OrganizePrompt(8, "  - foods\n  - sports", "::")
	assert.Contains(t, prompt, "no more than 8 sub_topics")
	assert.Contains(t, prompt, "  - foods")
	assert.Contains(t, prompt, "- name::melinda")
	assert.NotContains(t, prompt, "{max_subtopics}")
}

func TestOrganizeInput(t *testing.T) {
	input := OrganizeInput("interest", []SubTopicMemo{
		{SubTopic: "foods", Memo: "Chinese food"},
		{SubTopic: "sports", Memo: "swimming"},
	}, "::")
	assert.Equal(t, "topic: interest\n- foods::Chinese food\n- sports::swimming\n", input)
}

func TestEventTaggingPrompt(t *testing.T) {
	prompt := EventTaggingPrompt("- emotion(the user's current emotion)", "::")
	assert.Contains(t, prompt, "<event_tags>\n- emotion(the user's current emotion)\n</event_tags>")
	assert.Contains(t, prompt, "- TAG::VALUE")
	assert.NotContains(t, prompt, "{tab}")
}

func TestPickRelatedPrompt(t *testing.T) {
	prompt := PickRelatedPrompt(10)
	assert.Contains(t, prompt, "Maximum number of memos to select is 10")
	assert.Contains(t, prompt, `{"reason": "YOUR THINKING","ids": [NEED_ID_0,NEED_ID_1,...]}`)
	assert.NotContains(t, prompt, "{max_num}")
}

func TestPickRelatedInput(t *testing.T) {
	input := PickRelatedInput(
		[]ChatMessage{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi there"},
			{Role: "user", Content: "what should I cook?"},
		},
		[]MemoRow{
			{Topic: "interest", SubTopic: "foods", Content: "Mexican soup"},
			{Topic: "basic_info", SubTopic: "name", Content: "Gus"},
		},
	)
	assert.Contains(t, input, "0. interest,foods,Mexican soup")
	assert.Contains(t, input, "1. basic_info,name,Gus")
	assert.Contains(t, input, "Q: hello")
	assert.Contains(t, input, "A: hi there")
	assert.True(t, strings.Contains(input, "<memos>") && strings.Contains(input, "<context>"))
}

func TestContextPrompt(t *testing.T) {
	en := ContextPrompt("en", "- name: Gus", "- event one")
	assert.Contains(t, en, "<memory>")
	assert.Contains(t, en, "# Below is the user profile:\n- name: Gus")
	assert.Contains(t, en, "# Below is the latest events of the user:\n- event one")

	zh := ContextPrompt("zh", "画像", "事件")
	assert.Contains(t, zh, "# 以下是用户的用户画像：\n画像")
	assert.Contains(t, zh, "请在适当的时候使用<memory>标签中的信息。")
}

func TestSummaryProfilePrompt(t *testing.T) {
	prompt := SummaryProfilePrompt()
	assert.Contains(t, prompt, "not more than 3 sentences")
	assert.Contains(t, prompt, "不超过3句话")
}
