package emulator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/vecflow/apierr"
	"github.com/viant/vecflow/embeddings"
	inference "github.com/viant/vecflow/embeddings/pinecone"
	"github.com/viant/vecflow/vectordb"
	"github.com/viant/vecflow/vectordb/local"
	"github.com/viant/vecflow/vectordb/pinecone"
)

const testDim = 8

func newTestServer(t *testing.T, config Config) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	store, err := local.NewStore(ctx, local.WithDSN(filepath.Join(t.TempDir(), "emulator.sqlite")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	if config.Index == "" {
		config.Index = "quickstart2"
	}
	if config.Dimension == 0 {
		config.Dimension = testDim
	}
	srv := New(store, embeddings.NewSimpleEmbedder(config.Dimension), config)
	require.NoError(t, srv.Init(ctx))
	httpSrv := httptest.NewServer(srv)
	t.Cleanup(httpSrv.Close)
	return httpSrv
}

func TestServer_Workflow(t *testing.T) {
	ctx := context.Background()
	httpSrv := newTestServer(t, Config{APIKey: "secret"})
	client := pinecone.New("secret", pinecone.WithControlURL(httpSrv.URL))
	embedder := inference.NewClient("secret", "", inference.WithBaseURL(httpSrv.URL))

	desc, err := client.DescribeIndex(ctx, "quickstart2")
	require.NoError(t, err)
	assert.True(t, desc.Ready)
	assert.Equal(t, testDim, desc.Dimension)
	assert.Equal(t, vectordb.MetricCosine, desc.Metric)
	assert.Equal(t, httpSrv.URL, desc.Host)

	texts := []string{"alpha", "beta", "gamma", "delta"}
	vecs, tokens, err := embedder.Embed(ctx, texts, embeddings.InputPassage)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	assert.Equal(t, 4, tokens)
	vectors := make([]vectordb.Vector, len(texts))
	for i, v := range vecs {
		assert.Len(t, v, testDim)
		vectors[i] = vectordb.Vector{ID: fmt.Sprintf("vec%d", i+1), Values: v, Metadata: map[string]any{"text": texts[i]}}
	}
	count, err := client.Upsert(ctx, "quickstart2", "ns1", vectors)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	stats, err := client.DescribeIndexStats(ctx, "quickstart2")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalVectorCount)
	assert.Equal(t, 4, stats.Namespaces["ns1"].VectorCount)

	qvecs, _, err := embedder.Embed(ctx, []string{"gamma"}, embeddings.InputQuery)
	require.NoError(t, err)
	resp, err := client.Query(ctx, "quickstart2", &vectordb.QueryRequest{Namespace: "ns1", Vector: qvecs[0], TopK: 3, IncludeMetadata: true})
	require.NoError(t, err)
	require.Len(t, resp.Matches, 3)
	assert.Equal(t, "vec3", resp.Matches[0].ID)
	assert.Equal(t, "gamma", resp.Matches[0].Text())
	for i := 1; i < len(resp.Matches); i++ {
		assert.GreaterOrEqual(t, resp.Matches[i-1].Score, resp.Matches[i].Score)
		assert.Nil(t, resp.Matches[i].Values)
	}
}

func TestServer_Auth(t *testing.T) {
	httpSrv := newTestServer(t, Config{APIKey: "secret"})
	client := pinecone.New("wrong", pinecone.WithControlURL(httpSrv.URL))
	_, err := client.DescribeIndex(context.Background(), "quickstart2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.ErrAuthentication))

	resp, err := http.Get(httpSrv.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ReadyAfter(t *testing.T) {
	ctx := context.Background()
	httpSrv := newTestServer(t, Config{ReadyAfter: 2})
	client := pinecone.New("", pinecone.WithControlURL(httpSrv.URL))
	for i := 0; i < 2; i++ {
		desc, err := client.DescribeIndex(ctx, "quickstart2")
		require.NoError(t, err)
		assert.False(t, desc.Ready)
		assert.Equal(t, pinecone.StateInitializing, desc.State)
	}
	desc, err := client.DescribeIndex(ctx, "quickstart2")
	require.NoError(t, err)
	assert.True(t, desc.Ready)

	_, err = client.DescribeIndex(ctx, "missing")
	assert.True(t, errors.Is(err, apierr.ErrNotFound))
}

func TestServer_Faults(t *testing.T) {
	ctx := context.Background()
	httpSrv := newTestServer(t, Config{
		Models: []string{"llama-text-embed-v2"},
		Faults: Faults{Embed: http.StatusTooManyRequests, BatchUpsert: http.StatusServiceUnavailable, NamespacedQuery: http.StatusBadRequest},
	})
	client := pinecone.New("", pinecone.WithControlURL(httpSrv.URL))

	_, _, err := inference.NewClient("", "", inference.WithBaseURL(httpSrv.URL)).Embed(ctx, []string{"a"}, embeddings.InputPassage)
	require.Error(t, err)
	assert.Equal(t, apierr.KindQuota, apierr.KindOf(err))

	vectors := []vectordb.Vector{
		{ID: "a", Values: make([]float32, testDim)},
		{ID: "b", Values: make([]float32, testDim)},
	}
	vectors[0].Values[0], vectors[1].Values[1] = 1, 1
	_, err = client.Upsert(ctx, "quickstart2", "ns1", vectors)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, apierr.StatusOf(err))
	for _, v := range vectors {
		_, err = client.Upsert(ctx, "quickstart2", "ns1", []vectordb.Vector{v})
		require.NoError(t, err)
	}

	_, err = client.Query(ctx, "quickstart2", &vectordb.QueryRequest{Namespace: "ns1", Vector: vectors[0].Values, TopK: 3})
	require.Error(t, err)
	resp, err := client.Query(ctx, "quickstart2", &vectordb.QueryRequest{Vector: vectors[0].Values, TopK: 3})
	require.NoError(t, err)
	assert.Empty(t, resp.Matches, "default namespace holds nothing")
}

func TestServer_EmbedModelNotFound(t *testing.T) {
	httpSrv := newTestServer(t, Config{Models: []string{"llama-text-embed-v2"}})
	_, _, err := inference.NewClient("", "multilingual-e5-large", inference.WithBaseURL(httpSrv.URL)).Embed(context.Background(), []string{"a"}, embeddings.InputQuery)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.ErrNotFound))
}
