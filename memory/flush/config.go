package flush

import (
	"context"
	"log/slog"

	"github.com/hrygo/memoria/ai/prompts"
	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/internal/profile"
)

// projectConfig is the effective per-project view of the pipeline knobs
// after overlaying the project's stored config onto the boot profile.
type projectConfig struct {
	lang         string
	strictMode   bool
	validateMode bool
	eventSummary bool
	topics       []profile.TopicSpec
	eventTags    []profile.EventTag
}

func (f *Flusher) loadProjectConfig(ctx context.Context, projectID string) (*projectConfig, error) {
	proj, err := f.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if proj == nil {
		return nil, errcode.New(errcode.NotFound, "project %s not found", projectID)
	}
	overlay, err := profile.LoadConfigString(proj.ProfileConfig)
	if err != nil {
		// Config was validated at write time; a blob that stopped
		// loading must not wedge the pipeline.
		slog.Warn("stored profile config no longer loads, using server defaults", "project_id", projectID, "error", err)
		overlay = &profile.ProfileConfig{}
	}
	lang := overlay.ResolveLanguage(f.profile)
	return &projectConfig{
		lang:         lang,
		strictMode:   overlay.ResolveStrictMode(f.profile),
		validateMode: overlay.ResolveValidateMode(f.profile),
		eventSummary: overlay.ResolveEnableEventSummary(f.profile),
		topics:       overlay.ResolveTopics(f.profile, prompts.DefaultTopics(lang)),
		eventTags:    overlay.ResolveEventTags(f.profile),
	}, nil
}
