package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokmengokhan/endnote-mcp/internal/config"
	enerr "github.com/gokmengokhan/endnote-mcp/internal/errors"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	a, err := e.Embed(ctx, "social capital and education")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "social capital and education")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
}

func TestStaticEmbedder_SimilarTextsCloser(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	capital, err := e.Embed(ctx, "social capital in education systems")
	require.NoError(t, err)
	related, err := e.Embed(ctx, "education and social capital")
	require.NoError(t, err)
	unrelated, err := e.Embed(ctx, "quantum chromodynamics lattice simulations")
	require.NoError(t, err)

	assert.Greater(t, dot(capital, related), dot(capital, unrelated))
}

func TestStaticEmbedder_EmptyText(t *testing.T) {
	e := NewStaticEmbedder()
	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Len(t, vec, StaticDimensions)
	assert.Zero(t, dot(vec, vec))
}

func TestStaticEmbedder_Normalized(t *testing.T) {
	e := NewStaticEmbedder()
	vec, err := e.Embed(context.Background(), "habitus field doxa")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, dot(vec, vec), 1e-5)
}

func TestStaticEmbedder_ClosedErrors(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())
	_, err := e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

type countingEmbedder struct {
	*StaticEmbedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(int64(len(texts)))
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_HitsSkipInner(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := c.Embed(ctx, "repeated query")
	require.NoError(t, err)
	_, err = c.Embed(ctx, "repeated query")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.calls.Load())
}

func TestCachedEmbedder_BatchOnlyComputesMisses(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := c.Embed(ctx, "alpha")
	require.NoError(t, err)

	vecs, err := c.EmbedBatch(ctx, []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, StaticDimensions)
	}
	assert.Equal(t, int64(3), inner.calls.Load(), "alpha must come from the cache")
}

func newOllamaStub(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		case "/api/embed":
			var req ollamaEmbedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			resp := ollamaEmbedResponse{}
			for range req.Input {
				vec := make([]float32, dims)
				vec[0] = 1
				resp.Embeddings = append(resp.Embeddings, vec)
			}
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestOllamaEmbedder_EmbedAndDetectDimensions(t *testing.T) {
	srv := newOllamaStub(t, 8)
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Model: "test-model"})
	ctx := context.Background()

	assert.True(t, e.Available(ctx))
	assert.Equal(t, 0, e.Dimensions())

	vec, err := e.Embed(ctx, "some text")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
	assert.Equal(t, 8, e.Dimensions())
}

func TestOllamaEmbedder_BatchSplitting(t *testing.T) {
	srv := newOllamaStub(t, 4)
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Model: "m", BatchSize: 2})
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
}

func TestOllamaEmbedder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Model: "m"})
	_, err := e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, enerr.ErrCodeEmbeddingFailed, enerr.GetCode(err))
	assert.True(t, enerr.IsRetryable(err))
}

func TestOllamaEmbedder_Unreachable(t *testing.T) {
	e := NewOllamaEmbedder(OllamaConfig{Host: "http://127.0.0.1:1", Model: "m"})
	assert.False(t, e.Available(context.Background()))
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.New()

	e, err := NewFromConfig(cfg)
	require.NoError(t, err)
	assert.Nil(t, e, "provider none yields no embedder")

	cfg.Embeddings.Provider = config.EmbeddingProviderStatic
	e, err = NewFromConfig(cfg)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "static-hash-v1", e.ModelName())
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
