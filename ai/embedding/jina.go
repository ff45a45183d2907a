package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/memoria/internal/profile"
)

// jinaTask maps the retrieval phase onto Jina's task parameter.
var jinaTask = map[Phase]string{
	PhaseQuery:    "retrieval.query",
	PhaseDocument: "retrieval.passage",
}

// jinaProvider calls the Jina embeddings API directly. Jina is not
// OpenAI-compatible, its request carries the retrieval task and a
// truncate flag.
type jinaProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	dim        int
}

type jinaRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Task       string   `json:"task"`
	Truncate   bool     `json:"truncate"`
	Dimensions int      `json:"dimensions"`
}

type jinaResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func newJinaProvider(p *profile.Profile) *jinaProvider {
	return &jinaProvider{
		httpClient: &http.Client{Timeout: time.Duration(p.EmbeddingTimeout) * time.Second},
		baseURL:    strings.TrimSuffix(p.EmbeddingBaseURL, "/"),
		apiKey:     p.EmbeddingAPIKey,
		model:      p.EmbeddingModel,
		dim:        p.EmbeddingDim,
	}
}

func (j *jinaProvider) embed(ctx context.Context, texts []string, phase Phase) ([][]float32, error) {
	payload, err := json.Marshal(jinaRequest{
		Model:      j.model,
		Input:      texts,
		Task:       jinaTask[phase],
		Truncate:   true,
		Dimensions: j.dim,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal jina request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build jina request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+j.apiKey)

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "jina request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read jina response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("jina returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed jinaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(err, "decode jina response")
	}
	if len(parsed.Data) == 0 {
		return nil, errors.New("empty embedding response")
	}

	slog.Debug("jina embedding done", "model", j.model, "phase", phase, "prompt_tokens", parsed.Usage.PromptTokens, "total_tokens", parsed.Usage.TotalTokens)

	vectors := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
