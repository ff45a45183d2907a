// Package llm wraps the OpenAI-compatible chat completion API behind a
// small gateway that settles token usage against the project's billing
// and telemetry counters on every call.
package llm

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/hrygo/memoria/ai/prompts"
	"github.com/hrygo/memoria/ai/tokenizer"
	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/internal/profile"
	"github.com/hrygo/memoria/store"
	"github.com/hrygo/memoria/store/cache"
	"github.com/hrygo/memoria/telemetry"
)

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// Request is one completion call. Model falls back to the configured
// best model when empty. PromptID only labels logs.
type Request struct {
	ProjectID    string
	Model        string
	Prompt       string
	SystemPrompt string
	History      []Message
	Temperature  float32
	JSONMode     bool
	PromptID     string
}

// Service is the completion gateway. Store and metrics may be nil in
// tests; usage settling is skipped for whichever is absent.
type Service struct {
	client  *openai.Client
	profile *profile.Profile
	store   *store.Store
	metrics *telemetry.Exporter
	limiter *rate.Limiter
}

// NewService creates the completion gateway from the boot profile.
func NewService(p *profile.Profile, st *store.Store, metrics *telemetry.Exporter) *Service {
	clientConfig := openai.DefaultConfig(p.LLMAPIKey)
	if p.LLMBaseURL != "" {
		clientConfig.BaseURL = p.LLMBaseURL
	}
	clientConfig.HTTPClient = newHTTPClient(p)

	var limiter *rate.Limiter
	if p.LLMRateLimit > 0 {
		burst := int(p.LLMRateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(p.LLMRateLimit), burst)
	}

	return &Service{
		client:  openai.NewClientWithConfig(clientConfig),
		profile: p,
		store:   st,
		metrics: metrics,
		limiter: limiter,
	}
}

// Complete runs one chat completion and returns the raw model output.
// Provider failures surface as ServiceUnavailable.
func (s *Service) Complete(ctx context.Context, req *Request) (string, error) {
	model := req.Model
	if model == "" {
		model = s.profile.BestLLMModel
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", errcode.Wrap(err, errcode.ServiceUnavailable, "rate limiter interrupted")
		}
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.History {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(s.profile.LLMTimeout)*time.Second)
	defer cancel()

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(callCtx, chatReq)
	if err != nil {
		slog.Error("chat completion failed", "prompt_id", req.PromptID, "model", model, "error", err)
		return "", errcode.Wrap(err, errcode.ServiceUnavailable, "chat completion failed")
	}
	latency := time.Since(start)

	if len(resp.Choices) == 0 {
		return "", errcode.New(errcode.ServiceUnavailable, "chat completion returned no choices")
	}
	content := resp.Choices[0].Message.Content

	cachedTokens := 0
	if resp.Usage.PromptTokensDetails != nil {
		cachedTokens = resp.Usage.PromptTokensDetails.CachedTokens
	}
	slog.Debug("chat completion done",
		"prompt_id", req.PromptID,
		"model", model,
		"cached_tokens", cachedTokens,
		"prompt_tokens", resp.Usage.PromptTokens,
		"latency", latency,
	)

	s.settleUsage(ctx, req, content, latency)
	return content, nil
}

// CompleteJSON runs a completion in JSON mode and parses the result.
// An unparseable response surfaces as UnprocessableEntity.
func (s *Service) CompleteJSON(ctx context.Context, req *Request) (map[string]any, error) {
	req.JSONMode = true
	raw, err := s.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	parsed := prompts.ToJSON(raw)
	if parsed == nil {
		return nil, errcode.New(errcode.UnprocessableEntity, "unable to parse model response as JSON")
	}
	return parsed, nil
}

// settleUsage counts tokens locally so usage accounting does not depend
// on which fields the provider fills in.
func (s *Service) settleUsage(ctx context.Context, req *Request, content string, latency time.Duration) {
	texts := make([]string, 0, len(req.History)+2)
	texts = append(texts, req.Prompt, req.SystemPrompt)
	for _, m := range req.History {
		texts = append(texts, m.Content)
	}
	inTokens := tokenizer.CountAll(texts...)
	outTokens := tokenizer.CountTokens(content)

	if s.store != nil {
		c := s.store.GetCache()
		c.IncrCounter(ctx, req.ProjectID, cache.CounterLLMInputTokens, int64(inTokens))
		c.IncrCounter(ctx, req.ProjectID, cache.CounterLLMOutputTokens, int64(outTokens))
		if err := s.store.AddBillingUsage(ctx, req.ProjectID, int64(inTokens+outTokens)); err != nil {
			slog.Error("unable to settle token usage", "project_id", req.ProjectID, "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.RecordLLMCall(req.ProjectID, inTokens, outTokens, latency)
	}
}

func newHTTPClient(p *profile.Profile) *http.Client {
	var base http.RoundTripper = &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if len(p.LLMDefaultQuery) > 0 || len(p.LLMDefaultHeader) > 0 {
		base = &decoratedTransport{base: base, query: p.LLMDefaultQuery, header: p.LLMDefaultHeader}
	}
	return &http.Client{
		Timeout:   time.Duration(p.LLMTimeout) * time.Second,
		Transport: base,
	}
}

// decoratedTransport applies the configured default query parameters
// and headers to every provider request.
type decoratedTransport struct {
	base   http.RoundTripper
	query  map[string]string
	header map[string]string
}

func (t *decoratedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if len(t.query) > 0 {
		q := req.URL.Query()
		for k, v := range t.query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}
	for k, v := range t.header {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
