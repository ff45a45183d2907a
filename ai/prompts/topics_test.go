package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/memoria/internal/profile"
)

func TestDefaultTopics(t *testing.T) {
	en := DefaultTopics("en")
	require.NotEmpty(t, en)
	assert.Equal(t, "basic_info", en[0].Topic)

	zh := DefaultTopics("zh")
	require.NotEmpty(t, zh)
	assert.Equal(t, "基本信息", zh[0].Topic)

	assert.Equal(t, en, DefaultTopics("unknown"))
}

func TestFormatTopic(t *testing.T) {
	topic := profile.TopicSpec{
		Topic:       "basic_info",
		Description: "the basics",
		SubTopics: []profile.SubTopicSpec{
			{Name: "Name"},
			{Name: "Age", Description: "integer"},
		},
	}
	got := FormatTopic(topic)
	assert.Equal(t, "- basic_info (the basics)\n  - Name\n  - Age(integer)", got)

	bare := profile.TopicSpec{Topic: "notes"}
	assert.Equal(t, "- notes", FormatTopic(bare))
}

func TestFormatTopicsEndsWithEllipsis(t *testing.T) {
	got := FormatTopics(DefaultTopics("en"))
	assert.True(t, strings.HasSuffix(got, "\n..."))
	assert.Contains(t, got, "- work ()")
	assert.Contains(t, got, "  - Age(integer)")
}

func TestSpecificSubtopics(t *testing.T) {
	topics := DefaultTopics("en")

	got := SpecificSubtopics("Work", topics)
	assert.Contains(t, got, "  - company")
	assert.Contains(t, got, "  - work_skills")

	assert.Equal(t, "None", SpecificSubtopics("no_such_topic", topics))
}

func TestFormatEventTags(t *testing.T) {
	got := FormatEventTags([]profile.EventTag{
		{Name: "emotion", Description: "the user's current emotion"},
		{Name: "location"},
	})
	assert.Equal(t, "- emotion(the user's current emotion)\n- location", got)
}
