package embedding

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/memoria/internal/profile"
)

// openaiProvider speaks the OpenAI-compatible embeddings API. The
// retrieval phase is ignored, those models embed both sides the same.
type openaiProvider struct {
	client  *openai.Client
	model   string
	dim     int
	timeout time.Duration
}

func newOpenAIProvider(p *profile.Profile) *openaiProvider {
	clientConfig := openai.DefaultConfig(p.EmbeddingAPIKey)
	if p.EmbeddingBaseURL != "" {
		clientConfig.BaseURL = p.EmbeddingBaseURL
	}
	return &openaiProvider{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   p.EmbeddingModel,
		dim:     p.EmbeddingDim,
		timeout: time.Duration(p.EmbeddingTimeout) * time.Second,
	}
}

func (o *openaiProvider) embed(ctx context.Context, texts []string, phase Phase) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(o.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		Dimensions:     o.dim,
	}
	resp, err := o.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "create embeddings failed")
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("empty embedding response")
	}

	slog.Debug("openai embedding done", "model", o.model, "phase", phase, "prompt_tokens", resp.Usage.PromptTokens, "total_tokens", resp.Usage.TotalTokens)

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vectors[i] = data.Embedding
	}
	return vectors, nil
}
