package profile

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/memoria/internal/errcode"
)

func validProfile() *Profile {
	p := Default()
	p.LLMAPIKey = "sk-test"
	p.DSN = "postgres://localhost/memoria"
	p.RedisURL = "redis://localhost:6379/0"
	return p
}

func TestDefaults(t *testing.T) {
	p := Default()
	assert.Equal(t, 3600, p.BufferFlushInterval)
	assert.Equal(t, 1024, p.MaxChatBlobBufferTokenSize)
	assert.Equal(t, 15, p.MaxProfileSubtopics)
	assert.Equal(t, 128, p.MaxPreProfileTokenSize)
	assert.Equal(t, "::", p.LLMTabSeparator)
	assert.Equal(t, 1200, p.CacheUserProfilesTTL)
	assert.Equal(t, "en", p.Language)
	assert.Equal(t, "gpt-4o-mini", p.BestLLMModel)
	assert.True(t, p.ProfileValidateMode)
	assert.False(t, p.ProfileStrictMode)
	assert.True(t, p.EnableEventSummary)
	assert.True(t, p.EnableEventEmbedding)
	assert.Equal(t, 1536, p.EmbeddingDim)
	assert.Equal(t, "local", p.TelemetryEnv)
	assert.Equal(t, -1, p.UsageTokenLimitActive)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MEMORIA_LLM_API_KEY", "sk-env")
	t.Setenv("MEMORIA_BUFFER_FLUSH_INTERVAL", "120")
	t.Setenv("MEMORIA_PROFILE_VALIDATE_MODE", "false")
	t.Setenv("MEMORIA_EVENT_TAGS", `[{"name":"emotion","description":"how the user feels"}]`)
	t.Setenv("MEMORIA_LLM_OPENAI_DEFAULT_HEADER", `{"X-Custom":"yes"}`)
	t.Setenv("DATABASE_URL", "postgres://env/db")

	p := Default()
	p.FromEnv()
	assert.Equal(t, "sk-env", p.LLMAPIKey)
	assert.Equal(t, 120, p.BufferFlushInterval)
	assert.False(t, p.ProfileValidateMode)
	require.Len(t, p.EventTags, 1)
	assert.Equal(t, "emotion", p.EventTags[0].Name)
	assert.Equal(t, "yes", p.LLMDefaultHeader["X-Custom"])
	assert.Equal(t, "postgres://env/db", p.DSN)
}

func TestFromEnvIgnoresBadValues(t *testing.T) {
	t.Setenv("MEMORIA_BUFFER_FLUSH_INTERVAL", "not-a-number")
	t.Setenv("MEMORIA_EVENT_TAGS", "{broken")

	p := Default()
	p.FromEnv()
	assert.Equal(t, 3600, p.BufferFlushInterval)
	assert.Empty(t, p.EventTags)
}

func TestValidateRequiresAPIKey(t *testing.T) {
	p := validProfile()
	p.LLMAPIKey = ""
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm_api_key")
}

func TestValidateNormalizesMode(t *testing.T) {
	p := validProfile()
	p.Mode = "staging"
	require.NoError(t, p.Validate())
	assert.Equal(t, "demo", p.Mode)
}

func TestValidateEmbeddingFallsBackToLLMCredentials(t *testing.T) {
	p := validProfile()
	p.LLMBaseURL = "https://llm.example.com/v1"
	require.NoError(t, p.Validate())
	assert.Equal(t, p.LLMAPIKey, p.EmbeddingAPIKey)
	assert.Equal(t, p.LLMBaseURL, p.EmbeddingBaseURL)
}

func TestValidateJinaProvider(t *testing.T) {
	p := validProfile()
	p.EmbeddingProvider = "jina"
	p.EmbeddingAPIKey = "jina-key"

	err := p.Validate()
	require.Error(t, err, "default model is not a jina model")

	p.EmbeddingModel = "jina-embeddings-v3"
	require.NoError(t, p.Validate())
	assert.Equal(t, "https://api.jina.ai/v1", p.EmbeddingBaseURL)
}

func TestValidateSkipsEmbeddingChecksWhenDisabled(t *testing.T) {
	p := validProfile()
	p.EnableEventEmbedding = false
	p.EmbeddingProvider = "nonsense"
	require.NoError(t, p.Validate())
}

func TestValidateRejectsUnknownTimezone(t *testing.T) {
	p := validProfile()
	p.UseTimezone = "Mars/Olympus_Mons"
	require.Error(t, p.Validate())

	p.UseTimezone = "Asia/Tokyo"
	require.NoError(t, p.Validate())
	assert.Equal(t, "Asia/Tokyo", p.Timezone().String())
}

func TestTimezoneDefaultsToLocal(t *testing.T) {
	p := Default()
	assert.Equal(t, time.Local, p.Timezone())
}

func TestSummaryModelFallsBack(t *testing.T) {
	p := Default()
	assert.Equal(t, "gpt-4o-mini", p.SummaryModel())
	p.SummaryLLMModel = "gpt-4o"
	assert.Equal(t, "gpt-4o", p.SummaryModel())
}

func TestUsageTokenLimit(t *testing.T) {
	p := Default()
	p.UsageTokenLimitPro = 1000000

	limit, ok := p.UsageTokenLimit("pro")
	require.True(t, ok)
	assert.Equal(t, 1000000, limit)

	_, ok = p.UsageTokenLimit("suspended")
	assert.False(t, ok)
}

func TestAPIHostList(t *testing.T) {
	p := Default()
	assert.Nil(t, p.APIHostList())
	p.APIHosts = "https://a.example.com, https://b.example.com ,"
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, p.APIHostList())
}

func TestLoadConfigString(t *testing.T) {
	cfg, err := LoadConfigString(`
language: zh
profile_strict_mode: true
additional_user_profiles:
  - topic: gaming
    description: what the user plays
    sub_topics:
      - favorite_game
      - name: playtime
        description: weekly hours
        validate_value: true
event_tags:
  - name: emotion
unknown_key: ignored
`)
	require.NoError(t, err)
	assert.Equal(t, "zh", cfg.Language)
	require.NotNil(t, cfg.ProfileStrictMode)
	assert.True(t, *cfg.ProfileStrictMode)
	assert.Nil(t, cfg.ProfileValidateMode)

	require.Len(t, cfg.AdditionalUserProfiles, 1)
	topic := cfg.AdditionalUserProfiles[0]
	assert.Equal(t, "gaming", topic.Topic)
	require.Len(t, topic.SubTopics, 2)
	assert.Equal(t, "favorite_game", topic.SubTopics[0].Name)
	assert.Equal(t, "playtime", topic.SubTopics[1].Name)
	assert.True(t, topic.SubTopics[1].ValidateValue)

	require.NotNil(t, cfg.EventTags)
	assert.Equal(t, "emotion", (*cfg.EventTags)[0].Name)
}

func TestLoadConfigStringEmpty(t *testing.T) {
	cfg, err := LoadConfigString("   \n")
	require.NoError(t, err)
	assert.Equal(t, &ProfileConfig{}, cfg)
}

func TestLoadConfigStringRejectsBadInput(t *testing.T) {
	_, err := LoadConfigString("language: [broken")
	assert.True(t, errcode.Is(err, errcode.BadRequest))

	_, err = LoadConfigString(strings.Repeat("a", MaxConfigStringSize+1))
	assert.True(t, errcode.Is(err, errcode.BadRequest))
}

func TestLoadConfigStringDropsUnsupportedLanguage(t *testing.T) {
	cfg, err := LoadConfigString("language: fr")
	require.NoError(t, err)
	assert.Empty(t, cfg.Language)
}

func TestResolveFallbacks(t *testing.T) {
	p := Default()
	p.ProfileStrictMode = true
	p.EventTags = []EventTag{{Name: "emotion"}}

	var cfg *ProfileConfig
	assert.Equal(t, "en", cfg.ResolveLanguage(p))
	assert.True(t, cfg.ResolveStrictMode(p))
	assert.True(t, cfg.ResolveValidateMode(p))
	assert.True(t, cfg.ResolveEnableEventSummary(p))
	assert.Equal(t, p.EventTags, cfg.ResolveEventTags(p))

	off := false
	empty := []EventTag{}
	cfg = &ProfileConfig{
		Language:            "zh",
		ProfileStrictMode:   &off,
		ProfileValidateMode: &off,
		EnableEventSummary:  &off,
		EventTags:           &empty,
	}
	assert.Equal(t, "zh", cfg.ResolveLanguage(p))
	assert.False(t, cfg.ResolveStrictMode(p))
	assert.False(t, cfg.ResolveValidateMode(p))
	assert.False(t, cfg.ResolveEnableEventSummary(p))
	assert.Empty(t, cfg.ResolveEventTags(p))
}

func TestResolveTopics(t *testing.T) {
	defaults := []TopicSpec{{Topic: "basic_info"}, {Topic: "work"}}
	p := Default()

	var cfg *ProfileConfig
	assert.Equal(t, defaults, cfg.ResolveTopics(p, defaults))

	p.AdditionalUserProfiles = []TopicSpec{{Topic: "gaming"}}
	topics := cfg.ResolveTopics(p, defaults)
	require.Len(t, topics, 3)
	assert.Equal(t, "gaming", topics[2].Topic)

	cfg = &ProfileConfig{OverwriteUserProfiles: []TopicSpec{{Topic: "only_this"}}}
	topics = cfg.ResolveTopics(p, defaults)
	require.Len(t, topics, 1)
	assert.Equal(t, "only_this", topics[0].Topic)
}

func TestUnify(t *testing.T) {
	assert.Equal(t, "basic_info", Unify("  Basic Info "))
	assert.Equal(t, "name", Unify("Name"))
}

func TestFindTopic(t *testing.T) {
	topics := []TopicSpec{{Topic: "basic_info", SubTopics: []SubTopicSpec{{Name: "Name"}}}}

	topic, ok := FindTopic(topics, "Basic Info")
	require.True(t, ok)
	sub, ok := topic.SubTopic("name")
	require.True(t, ok)
	assert.Equal(t, "Name", sub.Name)

	_, ok = FindTopic(topics, "missing")
	assert.False(t, ok)
}
