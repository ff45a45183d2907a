package profile

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hrygo/memoria/internal/errcode"
)

// MaxConfigStringSize bounds the per-project config blob accepted over the API.
const MaxConfigStringSize = 65535

// SubTopicSpec describes one attribute under a topic. In YAML and JSON it
// may be given either as a bare string or as a full object.
type SubTopicSpec struct {
	Name              string `yaml:"name" json:"name"`
	Description       string `yaml:"description,omitempty" json:"description,omitempty"`
	UpdateDescription string `yaml:"update_description,omitempty" json:"update_description,omitempty"`
	ValidateValue     bool   `yaml:"validate_value,omitempty" json:"validate_value,omitempty"`
}

func (s *SubTopicSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		s.Name = value.Value
		return nil
	}
	type plain SubTopicSpec
	return value.Decode((*plain)(s))
}

func (s *SubTopicSpec) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		s.Name = name
		return nil
	}
	type plain SubTopicSpec
	return json.Unmarshal(data, (*plain)(s))
}

// TopicSpec describes one profile topic and the sub topics it accepts.
type TopicSpec struct {
	Topic       string         `yaml:"topic" json:"topic"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	SubTopics   []SubTopicSpec `yaml:"sub_topics" json:"sub_topics"`
}

func (t *TopicSpec) Validate() error {
	if strings.TrimSpace(t.Topic) == "" {
		return errors.New("topic name must not be empty")
	}
	for _, st := range t.SubTopics {
		if strings.TrimSpace(st.Name) == "" {
			return errors.Errorf("topic %q has a sub topic without a name", t.Topic)
		}
	}
	return nil
}

// SubTopic returns the spec of the named sub topic, matching on the
// unified form of the name.
func (t *TopicSpec) SubTopic(name string) (SubTopicSpec, bool) {
	unified := Unify(name)
	for _, st := range t.SubTopics {
		if Unify(st.Name) == unified {
			return st, true
		}
	}
	return SubTopicSpec{}, false
}

// EventTag is a project-defined attribute tracked on every memory event.
type EventTag struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Unify normalizes a topic or sub topic name so that spelling variants
// collapse to one key.
func Unify(attr string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(attr)), " ", "_")
}

// ProfileConfig is the per-project overlay stored as a YAML string on the
// project row. Unset fields fall back to the server-wide Profile.
type ProfileConfig struct {
	Language               string      `yaml:"language,omitempty"`
	ProfileStrictMode      *bool       `yaml:"profile_strict_mode,omitempty"`
	ProfileValidateMode    *bool       `yaml:"profile_validate_mode,omitempty"`
	AdditionalUserProfiles []TopicSpec `yaml:"additional_user_profiles,omitempty"`
	OverwriteUserProfiles  []TopicSpec `yaml:"overwrite_user_profiles,omitempty"`
	EnableEventSummary     *bool       `yaml:"enable_event_summary,omitempty"`
	EventTags              *[]EventTag `yaml:"event_tags,omitempty"`
}

// LoadConfigString parses a project config blob. An empty string yields the
// zero overlay. Unknown keys are ignored so older blobs keep loading.
func LoadConfigString(s string) (*ProfileConfig, error) {
	if len(s) > MaxConfigStringSize {
		return nil, errcode.New(errcode.BadRequest, "profile config exceeds %d bytes", MaxConfigStringSize)
	}
	cfg := &ProfileConfig{}
	if strings.TrimSpace(s) == "" {
		return cfg, nil
	}
	if err := yaml.Unmarshal([]byte(s), cfg); err != nil {
		return nil, errcode.Wrap(err, errcode.BadRequest, "profile config is not valid YAML")
	}
	if cfg.Language != "" && cfg.Language != "en" && cfg.Language != "zh" {
		slog.Warn("project config has unsupported language, ignoring", "language", cfg.Language)
		cfg.Language = ""
	}
	for i := range cfg.AdditionalUserProfiles {
		if err := cfg.AdditionalUserProfiles[i].Validate(); err != nil {
			return nil, errcode.Wrap(err, errcode.BadRequest, "invalid additional_user_profiles")
		}
	}
	for i := range cfg.OverwriteUserProfiles {
		if err := cfg.OverwriteUserProfiles[i].Validate(); err != nil {
			return nil, errcode.Wrap(err, errcode.BadRequest, "invalid overwrite_user_profiles")
		}
	}
	return cfg, nil
}

// ValidateConfigString reports whether a config blob would load.
func ValidateConfigString(s string) error {
	_, err := LoadConfigString(s)
	return err
}

func (c *ProfileConfig) ResolveLanguage(p *Profile) string {
	if c != nil && c.Language != "" {
		return c.Language
	}
	return p.Language
}

func (c *ProfileConfig) ResolveStrictMode(p *Profile) bool {
	if c != nil && c.ProfileStrictMode != nil {
		return *c.ProfileStrictMode
	}
	return p.ProfileStrictMode
}

func (c *ProfileConfig) ResolveValidateMode(p *Profile) bool {
	if c != nil && c.ProfileValidateMode != nil {
		return *c.ProfileValidateMode
	}
	return p.ProfileValidateMode
}

func (c *ProfileConfig) ResolveEnableEventSummary(p *Profile) bool {
	if c != nil && c.EnableEventSummary != nil {
		return *c.EnableEventSummary
	}
	return p.EnableEventSummary
}

func (c *ProfileConfig) ResolveEventTags(p *Profile) []EventTag {
	if c != nil && c.EventTags != nil {
		return *c.EventTags
	}
	return p.EventTags
}

// ResolveTopics layers the server-wide and project-level topic overrides
// over the built-in defaults. An overwrite list replaces the result so far,
// an additional list extends it.
func (c *ProfileConfig) ResolveTopics(p *Profile, defaults []TopicSpec) []TopicSpec {
	topics := overlayTopics(defaults, p.AdditionalUserProfiles, p.OverwriteUserProfiles)
	if c != nil {
		topics = overlayTopics(topics, c.AdditionalUserProfiles, c.OverwriteUserProfiles)
	}
	return topics
}

func overlayTopics(base, additional, overwrite []TopicSpec) []TopicSpec {
	if len(overwrite) > 0 {
		return overwrite
	}
	if len(additional) > 0 {
		merged := make([]TopicSpec, 0, len(base)+len(additional))
		merged = append(merged, base...)
		merged = append(merged, additional...)
		return merged
	}
	return base
}

// FindTopic looks a topic up by its unified name.
func FindTopic(topics []TopicSpec, name string) (TopicSpec, bool) {
	unified := Unify(name)
	for _, t := range topics {
		if Unify(t.Topic) == unified {
			return t, true
		}
	}
	return TopicSpec{}, false
}
