package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/vecflow/apierr"
)

func TestClient_Embed(t *testing.T) {
	var captured Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}],"usage":{"total_tokens":4}}`))
	}))
	defer server.Close()

	client := NewClient("secret", "", WithBaseURL(server.URL), WithDimensions(2))
	vecs, tokens, err := client.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
	assert.Equal(t, 4, tokens)
	assert.Equal(t, defaultEmbeddingModel, captured.Model)
	assert.Equal(t, 2, captured.Dimensions)
}

func TestClient_EmbedErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   *apierr.Error
	}{
		{name: "auth", status: http.StatusUnauthorized, body: `{"error":{"message":"bad key","type":"invalid_request_error"}}`, kind: apierr.ErrAuthentication},
		{name: "quota", status: http.StatusTooManyRequests, body: `{"error":{"message":"quota"}}`, kind: apierr.ErrQuota},
		{name: "shape", status: http.StatusOK, body: `{"data":[]}`, kind: apierr.ErrUnexpectedResponse},
		{name: "garbage", status: http.StatusOK, body: `not json`, kind: apierr.ErrUnexpectedResponse},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()
			_, _, err := NewClient("k", "m", WithBaseURL(server.URL)).Embed(context.Background(), []string{"x"})
			assert.ErrorIs(t, err, tc.kind)
		})
	}
}
