package profile

import (
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Profile is the configuration to start the main server. It is built once
// at boot (flags, optional config.yaml, then MEMORIA_* env overrides) and
// threaded explicitly into every component.
type Profile struct {
	// Server
	Mode         string `yaml:"-"`
	Addr         string `yaml:"-"`
	Port         int    `yaml:"-"`
	Version      string `yaml:"-"`
	Instance     string `yaml:"-"`
	UseCORS      bool   `yaml:"use_cors"`
	APIHosts     string `yaml:"api_hosts"`
	AccessToken  string `yaml:"-"`
	TelemetryEnv string `yaml:"telemetry_deployment_environment"`

	// Backing stores
	DSN      string `yaml:"-"`
	RedisURL string `yaml:"-"`

	// Ingestion and profile shaping
	PersistentChatBlobs        bool   `yaml:"persistent_chat_blobs"`
	UseTimezone                string `yaml:"use_timezone"`
	SystemPrompt               string `yaml:"system_prompt"`
	BufferFlushInterval        int    `yaml:"buffer_flush_interval"`
	MaxChatBlobBufferTokenSize int    `yaml:"max_chat_blob_buffer_token_size"`
	MaxProfileSubtopics        int    `yaml:"max_profile_subtopics"`
	MaxPreProfileTokenSize     int    `yaml:"max_pre_profile_token_size"`
	LLMTabSeparator            string `yaml:"llm_tab_separator"`
	CacheUserProfilesTTL       int    `yaml:"cache_user_profiles_ttl"`

	// LLM
	Language         string            `yaml:"language"`
	LLMStyle         string            `yaml:"llm_style"`
	LLMBaseURL       string            `yaml:"llm_base_url"`
	LLMAPIKey        string            `yaml:"llm_api_key"`
	LLMDefaultQuery  map[string]string `yaml:"llm_openai_default_query"`
	LLMDefaultHeader map[string]string `yaml:"llm_openai_default_header"`
	BestLLMModel     string            `yaml:"best_llm_model"`
	SummaryLLMModel  string            `yaml:"summary_llm_model"`
	LLMTimeout       int               `yaml:"llm_timeout_seconds"`
	LLMRateLimit     float64           `yaml:"llm_rate_limit"`

	// Embedding
	EnableEventEmbedding  bool   `yaml:"enable_event_embedding"`
	EmbeddingProvider     string `yaml:"embedding_provider"`
	EmbeddingAPIKey       string `yaml:"embedding_api_key"`
	EmbeddingBaseURL      string `yaml:"embedding_base_url"`
	EmbeddingDim          int    `yaml:"embedding_dim"`
	EmbeddingModel        string `yaml:"embedding_model"`
	EmbeddingMaxTokenSize int    `yaml:"embedding_max_token_size"`
	EmbeddingTimeout      int    `yaml:"embedding_timeout_seconds"`

	// Profile vocabulary defaults
	AdditionalUserProfiles []TopicSpec `yaml:"additional_user_profiles"`
	OverwriteUserProfiles  []TopicSpec `yaml:"overwrite_user_profiles"`
	ProfileStrictMode      bool        `yaml:"profile_strict_mode"`
	ProfileValidateMode    bool        `yaml:"profile_validate_mode"`

	// Events
	EnableEventSummary      bool       `yaml:"enable_event_summary"`
	MinChatTokensForSummary int        `yaml:"minimum_chats_token_size_for_event_summary"`
	EventTags               []EventTag `yaml:"event_tags"`

	// Monthly usage allowances per project status, negative means unlimited.
	UsageTokenLimitActive int `yaml:"usage_token_limit_active"`
	UsageTokenLimitPro    int `yaml:"usage_token_limit_pro"`
	UsageTokenLimitUltra  int `yaml:"usage_token_limit_ultra"`
}

// Default returns a Profile with every knob at its documented default.
func Default() *Profile {
	return &Profile{
		Mode:                       "dev",
		Port:                       8019,
		Instance:                   "default",
		TelemetryEnv:               "local",
		BufferFlushInterval:        60 * 60,
		MaxChatBlobBufferTokenSize: 1024,
		MaxProfileSubtopics:        15,
		MaxPreProfileTokenSize:     128,
		LLMTabSeparator:            "::",
		CacheUserProfilesTTL:       60 * 20,
		Language:                   "en",
		LLMStyle:                   "openai",
		BestLLMModel:               "gpt-4o-mini",
		LLMTimeout:                 120,
		EnableEventEmbedding:       true,
		EmbeddingProvider:          "openai",
		EmbeddingDim:               1536,
		EmbeddingModel:             "text-embedding-3-small",
		EmbeddingMaxTokenSize:      8192,
		EmbeddingTimeout:           20,
		ProfileValidateMode:        true,
		EnableEventSummary:         true,
		MinChatTokensForSummary:    256,
		UsageTokenLimitActive:      -1,
		UsageTokenLimitPro:         -1,
		UsageTokenLimitUltra:       -1,
	}
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// Timezone resolves UseTimezone, falling back to the server's local zone.
func (p *Profile) Timezone() *time.Location {
	if p.UseTimezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(p.UseTimezone)
	if err != nil {
		slog.Warn("unknown timezone, falling back to local", "use_timezone", p.UseTimezone)
		return time.Local
	}
	return loc
}

// SummaryModel returns the model for cheap summary calls, falling back to
// the best model when none is configured.
func (p *Profile) SummaryModel() string {
	if p.SummaryLLMModel != "" {
		return p.SummaryLLMModel
	}
	return p.BestLLMModel
}

// UsageTokenLimit returns the monthly token allowance for a project status.
func (p *Profile) UsageTokenLimit(status string) (int, bool) {
	switch status {
	case "active":
		return p.UsageTokenLimitActive, true
	case "pro":
		return p.UsageTokenLimitPro, true
	case "ultra":
		return p.UsageTokenLimitUltra, true
	default:
		return 0, false
	}
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		slog.Warn("env value is not an integer, ignoring", "key", key)
	}
	return defaultValue
}

// getEnvOrDefaultBool returns environment variable value as bool or default value.
func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		slog.Warn("env value is not a boolean, ignoring", "key", key)
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float or default value.
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
		slog.Warn("env value is not a number, ignoring", "key", key)
	}
	return defaultValue
}

// getEnvJSON decodes a JSON-valued environment variable into out. A value
// that fails to decode is ignored with a warning, like any unusable key.
func getEnvJSON(key string, out any) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		slog.Warn("env value is not valid JSON for its field, ignoring", "key", key, "error", err)
	}
}

// LoadConfigFile merges an optional YAML config file into p. Keys absent
// from the file keep their current values.
func (p *Profile) LoadConfigFile(path string) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "unable to read config file %s", path)
	}
	if err := yaml.Unmarshal(raw, p); err != nil {
		return errors.Wrapf(err, "unable to parse config file %s", path)
	}
	slog.Info("loaded config file", "path", path)
	return nil
}

// FromEnv loads configuration from MEMORIA_* environment variables,
// overriding whatever the config file set. DATABASE_URL and REDIS_URL are
// also honored when no explicit DSN was given.
func (p *Profile) FromEnv() {
	if p.DSN == "" {
		p.DSN = getEnvOrDefault("DATABASE_URL", "")
	}
	if p.RedisURL == "" {
		p.RedisURL = getEnvOrDefault("REDIS_URL", "")
	}
	p.Instance = getEnvOrDefault("MEMORIA_INSTANCE", p.Instance)
	p.AccessToken = getEnvOrDefault("MEMORIA_ACCESS_TOKEN", p.AccessToken)
	p.UseCORS = getEnvOrDefaultBool("MEMORIA_USE_CORS", p.UseCORS)
	p.APIHosts = getEnvOrDefault("MEMORIA_API_HOSTS", p.APIHosts)
	p.TelemetryEnv = getEnvOrDefault("MEMORIA_TELEMETRY_DEPLOYMENT_ENVIRONMENT", p.TelemetryEnv)

	p.PersistentChatBlobs = getEnvOrDefaultBool("MEMORIA_PERSISTENT_CHAT_BLOBS", p.PersistentChatBlobs)
	p.UseTimezone = getEnvOrDefault("MEMORIA_USE_TIMEZONE", p.UseTimezone)
	p.SystemPrompt = getEnvOrDefault("MEMORIA_SYSTEM_PROMPT", p.SystemPrompt)
	p.BufferFlushInterval = getEnvOrDefaultInt("MEMORIA_BUFFER_FLUSH_INTERVAL", p.BufferFlushInterval)
	p.MaxChatBlobBufferTokenSize = getEnvOrDefaultInt("MEMORIA_MAX_CHAT_BLOB_BUFFER_TOKEN_SIZE", p.MaxChatBlobBufferTokenSize)
	p.MaxProfileSubtopics = getEnvOrDefaultInt("MEMORIA_MAX_PROFILE_SUBTOPICS", p.MaxProfileSubtopics)
	p.MaxPreProfileTokenSize = getEnvOrDefaultInt("MEMORIA_MAX_PRE_PROFILE_TOKEN_SIZE", p.MaxPreProfileTokenSize)
	p.LLMTabSeparator = getEnvOrDefault("MEMORIA_LLM_TAB_SEPARATOR", p.LLMTabSeparator)
	p.CacheUserProfilesTTL = getEnvOrDefaultInt("MEMORIA_CACHE_USER_PROFILES_TTL", p.CacheUserProfilesTTL)

	p.Language = getEnvOrDefault("MEMORIA_LANGUAGE", p.Language)
	p.LLMStyle = getEnvOrDefault("MEMORIA_LLM_STYLE", p.LLMStyle)
	p.LLMBaseURL = getEnvOrDefault("MEMORIA_LLM_BASE_URL", p.LLMBaseURL)
	p.LLMAPIKey = getEnvOrDefault("MEMORIA_LLM_API_KEY", p.LLMAPIKey)
	getEnvJSON("MEMORIA_LLM_OPENAI_DEFAULT_QUERY", &p.LLMDefaultQuery)
	getEnvJSON("MEMORIA_LLM_OPENAI_DEFAULT_HEADER", &p.LLMDefaultHeader)
	p.BestLLMModel = getEnvOrDefault("MEMORIA_BEST_LLM_MODEL", p.BestLLMModel)
	p.SummaryLLMModel = getEnvOrDefault("MEMORIA_SUMMARY_LLM_MODEL", p.SummaryLLMModel)
	p.LLMTimeout = getEnvOrDefaultInt("MEMORIA_LLM_TIMEOUT_SECONDS", p.LLMTimeout)
	p.LLMRateLimit = getEnvOrDefaultFloat("MEMORIA_LLM_RATE_LIMIT", p.LLMRateLimit)

	p.EnableEventEmbedding = getEnvOrDefaultBool("MEMORIA_ENABLE_EVENT_EMBEDDING", p.EnableEventEmbedding)
	p.EmbeddingProvider = getEnvOrDefault("MEMORIA_EMBEDDING_PROVIDER", p.EmbeddingProvider)
	p.EmbeddingAPIKey = getEnvOrDefault("MEMORIA_EMBEDDING_API_KEY", p.EmbeddingAPIKey)
	p.EmbeddingBaseURL = getEnvOrDefault("MEMORIA_EMBEDDING_BASE_URL", p.EmbeddingBaseURL)
	p.EmbeddingDim = getEnvOrDefaultInt("MEMORIA_EMBEDDING_DIM", p.EmbeddingDim)
	p.EmbeddingModel = getEnvOrDefault("MEMORIA_EMBEDDING_MODEL", p.EmbeddingModel)
	p.EmbeddingMaxTokenSize = getEnvOrDefaultInt("MEMORIA_EMBEDDING_MAX_TOKEN_SIZE", p.EmbeddingMaxTokenSize)
	p.EmbeddingTimeout = getEnvOrDefaultInt("MEMORIA_EMBEDDING_TIMEOUT_SECONDS", p.EmbeddingTimeout)

	getEnvJSON("MEMORIA_ADDITIONAL_USER_PROFILES", &p.AdditionalUserProfiles)
	getEnvJSON("MEMORIA_OVERWRITE_USER_PROFILES", &p.OverwriteUserProfiles)
	p.ProfileStrictMode = getEnvOrDefaultBool("MEMORIA_PROFILE_STRICT_MODE", p.ProfileStrictMode)
	p.ProfileValidateMode = getEnvOrDefaultBool("MEMORIA_PROFILE_VALIDATE_MODE", p.ProfileValidateMode)

	p.EnableEventSummary = getEnvOrDefaultBool("MEMORIA_ENABLE_EVENT_SUMMARY", p.EnableEventSummary)
	p.MinChatTokensForSummary = getEnvOrDefaultInt("MEMORIA_MINIMUM_CHATS_TOKEN_SIZE_FOR_EVENT_SUMMARY", p.MinChatTokensForSummary)
	getEnvJSON("MEMORIA_EVENT_TAGS", &p.EventTags)

	p.UsageTokenLimitActive = getEnvOrDefaultInt("USAGE_TOKEN_LIMIT_ACTIVE", p.UsageTokenLimitActive)
	p.UsageTokenLimitPro = getEnvOrDefaultInt("USAGE_TOKEN_LIMIT_PRO", p.UsageTokenLimitPro)
	p.UsageTokenLimitUltra = getEnvOrDefaultInt("USAGE_TOKEN_LIMIT_ULTRA", p.UsageTokenLimitUltra)
}

// Validate normalizes the profile and rejects configurations the server
// cannot start with.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.LLMAPIKey == "" {
		return errors.New("llm_api_key is required")
	}
	if p.LLMStyle != "openai" {
		return errors.Errorf("unsupported llm_style %q, only openai-compatible providers are supported", p.LLMStyle)
	}
	if p.Language != "en" && p.Language != "zh" {
		return errors.Errorf("unsupported language %q", p.Language)
	}
	if p.LLMTabSeparator == "" {
		return errors.New("llm_tab_separator must not be empty")
	}
	if p.DSN == "" {
		return errors.New("database DSN is required (set --dsn or DATABASE_URL)")
	}
	if p.RedisURL == "" {
		return errors.New("redis URL is required (set --redis-url or REDIS_URL)")
	}

	if p.EnableEventEmbedding {
		if p.EmbeddingAPIKey == "" && p.LLMStyle == "openai" && p.EmbeddingProvider == "openai" {
			// Ride the completion credentials when the embedding side shares
			// the provider.
			p.EmbeddingAPIKey = p.LLMAPIKey
			p.EmbeddingBaseURL = p.LLMBaseURL
		}
		if p.EmbeddingAPIKey == "" {
			return errors.New("embedding_api_key is required when event embedding is enabled")
		}
		switch p.EmbeddingProvider {
		case "openai":
		case "jina":
			if p.EmbeddingBaseURL == "" {
				p.EmbeddingBaseURL = "https://api.jina.ai/v1"
			}
			if p.EmbeddingModel != "jina-embeddings-v3" {
				return errors.Errorf("embedding_model %q is not served by the jina provider", p.EmbeddingModel)
			}
		default:
			return errors.Errorf("unsupported embedding_provider %q", p.EmbeddingProvider)
		}
		if p.EmbeddingDim <= 0 {
			return errors.Errorf("embedding_dim must be positive, got %d", p.EmbeddingDim)
		}
	}

	if p.UseTimezone != "" {
		if _, err := time.LoadLocation(p.UseTimezone); err != nil {
			return errors.Wrapf(err, "unknown use_timezone %q", p.UseTimezone)
		}
	}

	for i := range p.AdditionalUserProfiles {
		if err := p.AdditionalUserProfiles[i].Validate(); err != nil {
			return errors.Wrap(err, "invalid additional_user_profiles")
		}
	}
	for i := range p.OverwriteUserProfiles {
		if err := p.OverwriteUserProfiles[i].Validate(); err != nil {
			return errors.Wrap(err, "invalid overwrite_user_profiles")
		}
	}
	return nil
}

// APIHostList splits the configured CORS hosts.
func (p *Profile) APIHostList() []string {
	if p.APIHosts == "" {
		return nil
	}
	parts := strings.Split(p.APIHosts, ",")
	hosts := make([]string, 0, len(parts))
	for _, part := range parts {
		if h := strings.TrimSpace(part); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}
