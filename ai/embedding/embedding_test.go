package embedding

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

func jinaFixture(t *testing.T, dim int, handler http.HandlerFunc) Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := profile.Default()
	p.EmbeddingProvider = "jina"
	p.EmbeddingAPIKey = "jina-key"
	p.EmbeddingBaseURL = srv.URL
	p.EmbeddingModel = "jina-embeddings-v3"
	p.EmbeddingDim = dim

	svc, err := NewService(p, nil)
	require.NoError(t, err)
	return svc
}

func TestJinaEmbedPhases(t *testing.T) {
	var body jinaRequest
	svc := jinaFixture(t, 4, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		require.Equal(t, "Bearer jina-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data":  []map[string]any{{"embedding": []float32{0.1, 0.2, 0.3, 0.4}}},
			"usage": map[string]int{"prompt_tokens": 3, "total_tokens": 3},
		})
	})

	vectors, err := svc.Embed(context.Background(), "proj", []string{"hello"}, PhaseQuery)
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	require.Len(t, vectors[0], 4)
	require.Equal(t, "retrieval.query", body.Task)
	require.True(t, body.Truncate)
	require.Equal(t, 4, body.Dimensions)

	_, err = svc.Embed(context.Background(), "proj", []string{"hello"}, PhaseDocument)
	require.NoError(t, err)
	require.Equal(t, "retrieval.passage", body.Task)
}

func TestJinaEmbedUpstreamFailure(t *testing.T) {
	svc := jinaFixture(t, 4, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	_, err := svc.Embed(context.Background(), "proj", []string{"hello"}, PhaseQuery)
	require.Error(t, err)
	require.Equal(t, errcode.ServiceUnavailable, errcode.CodeOf(err))
}

func TestEmbedRejectsEmptyInput(t *testing.T) {
	svc := jinaFixture(t, 4, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("provider must not be called")
	})

	_, err := svc.Embed(context.Background(), "proj", nil, PhaseQuery)
	require.Error(t, err)
	require.Equal(t, errcode.BadRequest, errcode.CodeOf(err))
}

func TestNewServiceUnknownProvider(t *testing.T) {
	p := profile.Default()
	p.EmbeddingProvider = "word2vec"
	_, err := NewService(p, nil)
	require.Error(t, err)
}

func TestCheckSanity(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		p := profile.Default()
		p.EnableEventEmbedding = false
		require.NoError(t, CheckSanity(context.Background(), nil, p))
	})

	t.Run("dimension match", func(t *testing.T) {
		svc := jinaFixture(t, 3, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"embedding": []float32{1, 2, 3}}},
			})
		})
		p := profile.Default()
		p.EmbeddingDim = 3
		require.NoError(t, CheckSanity(context.Background(), svc, p))
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		svc := jinaFixture(t, 3, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"embedding": []float32{1, 2}}},
			})
		})
		p := profile.Default()
		p.EmbeddingDim = 3
		err := CheckSanity(context.Background(), svc, p)
		require.Error(t, err)
		require.Contains(t, err.Error(), "dimension mismatch")
	})
}
