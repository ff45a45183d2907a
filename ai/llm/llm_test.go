package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/memoria/internal/errcode"
	"github.com/hrygo/memoria/internal/profile"
)

func fakeProvider(t *testing.T, handler http.HandlerFunc) (*Service, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := profile.Default()
	p.LLMAPIKey = "test-key"
	p.LLMBaseURL = srv.URL + "/v1"
	p.LLMDefaultHeader = map[string]string{"X-Custom": "memoria"}
	p.LLMDefaultQuery = map[string]string{"api-version": "1"}
	return NewService(p, nil, nil), srv
}

func completionBody(content string) string {
	resp := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"}},
		"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	raw, _ := json.Marshal(resp)
	return string(raw)
}

func TestCompleteReturnsContent(t *testing.T) {
	var gotHeader, gotVersion string
	var body map[string]any
	svc, _ := fakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Custom")
		gotVersion = r.URL.Query().Get("api-version")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("- basic_info::name::John")))
	})

	out, err := svc.Complete(context.Background(), &Request{
		ProjectID:    "proj",
		Prompt:       "input",
		SystemPrompt: "system",
		Temperature:  0.2,
		PromptID:     "extract_profile",
	})
	require.NoError(t, err)
	require.Equal(t, "- basic_info::name::John", out)

	require.Equal(t, "memoria", gotHeader)
	require.Equal(t, "1", gotVersion)
	require.Equal(t, "gpt-4o-mini", body["model"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	require.Equal(t, "system", messages[0].(map[string]any)["role"])
	require.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestCompleteUsesExplicitModel(t *testing.T) {
	var body map[string]any
	svc, _ := fakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("ok")))
	})

	_, err := svc.Complete(context.Background(), &Request{ProjectID: "proj", Prompt: "x", Model: "gpt-4o"})
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", body["model"])
}

func TestCompleteProviderFailure(t *testing.T) {
	svc, _ := fakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusInternalServerError)
	})

	_, err := svc.Complete(context.Background(), &Request{ProjectID: "proj", Prompt: "x"})
	require.Error(t, err)
	require.Equal(t, errcode.ServiceUnavailable, errcode.CodeOf(err))
}

func TestCompleteJSON(t *testing.T) {
	var body map[string]any
	svc, _ := fakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody(`{"reason": "related", "ids": [0, 2]}`)))
	})

	parsed, err := svc.CompleteJSON(context.Background(), &Request{ProjectID: "proj", Prompt: "x"})
	require.NoError(t, err)
	require.Equal(t, "related", parsed["reason"])

	format := body["response_format"].(map[string]any)
	require.Equal(t, "json_object", format["type"])
}

func TestCompleteJSONUnparseable(t *testing.T) {
	svc, _ := fakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("not json at all")))
	})

	_, err := svc.CompleteJSON(context.Background(), &Request{ProjectID: "proj", Prompt: "x"})
	require.Error(t, err)
	require.Equal(t, errcode.UnprocessableEntity, errcode.CodeOf(err))
}
