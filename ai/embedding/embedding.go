// Package embedding turns text into vectors for event search. Two
// providers are supported, the OpenAI-compatible embeddings API and
// Jina, selected by the boot profile.
package embedding

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/memoria/ai/tokenizer"
	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/internal/profile"
	"github.com/hrygo/memoria/store"
	"github.com/hrygo/memoria/telemetry"
	"github.com/pkg/errors"
)

// Phase tells retrieval-aware providers whether a text is a search
// query or a stored document.
type Phase string

const (
	PhaseQuery    Phase = "query"
	PhaseDocument Phase = "document"
)

// Service is the vector embedding service interface.
type Service interface {
	// Embed generates one vector per input text.
	Embed(ctx context.Context, projectID string, texts []string, phase Phase) ([][]float32, error)

	// Dimensions returns the configured vector dimension.
	Dimensions() int
}

// provider is one concrete embedding backend.
type provider interface {
	embed(ctx context.Context, texts []string, phase Phase) ([][]float32, error)
}

// meteredService wraps a provider with telemetry and the error policy
// shared by all backends.
type meteredService struct {
	provider provider
	metrics  *telemetry.Exporter
	dim      int
}

// NewService builds the embedding service selected by the profile.
func NewService(p *profile.Profile, metrics *telemetry.Exporter) (Service, error) {
	var backend provider
	switch p.EmbeddingProvider {
	case "openai":
		backend = newOpenAIProvider(p)
	case "jina":
		backend = newJinaProvider(p)
	default:
		return nil, errors.Errorf("unsupported embedding provider %q", p.EmbeddingProvider)
	}
	return &meteredService{provider: backend, metrics: metrics, dim: p.EmbeddingDim}, nil
}

func (s *meteredService) Embed(ctx context.Context, projectID string, texts []string, phase Phase) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errcode.New(errcode.BadRequest, "no texts to embed")
	}
	start := time.Now()
	vectors, err := s.provider.embed(ctx, texts, phase)
	if err != nil {
		slog.Error("embedding request failed", "project_id", projectID, "error", err)
		return nil, errcode.Wrap(err, errcode.ServiceUnavailable, "embedding request failed")
	}
	latency := time.Since(start)

	if s.metrics != nil {
		tokens := tokenizer.CountTokens(strings.Join(texts, "\n"))
		s.metrics.RecordEmbedding(projectID, tokens, latency)
	}
	return vectors, nil
}

func (s *meteredService) Dimensions() int {
	return s.dim
}

// CheckSanity embeds a probe text at boot and fails fast when the
// provider is unreachable or returns vectors of the wrong dimension.
func CheckSanity(ctx context.Context, svc Service, p *profile.Profile) error {
	if !p.EnableEventEmbedding {
		slog.Info("event embedding is disabled, skipping sanity check")
		return nil
	}
	vectors, err := svc.Embed(ctx, store.RootProjectID, []string{"Hello, world!"}, PhaseDocument)
	if err != nil {
		return errors.Wrap(err, "embedding API check failed, make sure the embedding API key is valid")
	}
	if len(vectors) == 0 {
		return errors.New("embedding API check returned no vectors")
	}
	if got := len(vectors[0]); got != p.EmbeddingDim {
		return errors.Errorf("embedding dimension mismatch, expected %d, got %d", p.EmbeddingDim, got)
	}
	slog.Info("embedding dimension matched", "dim", p.EmbeddingDim)
	return nil
}
