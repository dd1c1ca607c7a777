package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/vecflow/apierr"
	"github.com/viant/vecflow/document"
	"github.com/viant/vecflow/embeddings"
)

func TestService_Embed(t *testing.T) {
	const dim = 16
	texts := document.Texts(document.Sample())
	quota := &apierr.Error{Kind: apierr.KindQuota, Status: 429, Message: "quota exceeded"}

	testCases := []struct {
		description    string
		embedder       embeddings.Embedder
		inputType      embeddings.InputType
		expectDegraded bool
		expectCause    error
	}{
		{description: "preferred passage", embedder: embeddings.NewSimpleEmbedder(dim), inputType: embeddings.InputPassage},
		{description: "preferred query", embedder: embeddings.NewSimpleEmbedder(dim), inputType: embeddings.InputQuery},
		{description: "remote failure", embedder: &failingEmbedder{err: quota}, expectDegraded: true, expectCause: quota},
		{description: "dimension mismatch", embedder: embeddings.NewSimpleEmbedder(dim + 1), expectDegraded: true},
		{description: "count mismatch", embedder: &shortEmbedder{dim: dim}, expectDegraded: true},
		{description: "no embedder", expectDegraded: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			srv, err := NewService(WithVectorDB(newFakeDB(dim)), WithEmbedder(testCase.embedder), WithLogf(discard))
			require.NoError(t, err)
			result, err := srv.Embed(context.Background(), EmbedRequest{Texts: texts, InputType: testCase.inputType, Dimension: dim})
			require.NoError(t, err)
			require.Len(t, result.Vectors, len(texts))
			for _, v := range result.Vectors {
				assert.Len(t, v, dim)
			}
			assert.Equal(t, testCase.expectDegraded, result.Degraded)
			if testCase.expectDegraded {
				assert.Error(t, result.Cause)
				for _, v := range result.Vectors {
					for _, x := range v {
						assert.True(t, x >= -0.5 && x < 0.5)
					}
				}
			}
			if testCase.expectCause != nil {
				assert.ErrorIs(t, result.Cause, testCase.expectCause)
			}
		})
	}
}

func TestService_EmbedOrder(t *testing.T) {
	const dim = 8
	srv, err := NewService(WithVectorDB(newFakeDB(dim)), WithEmbedder(embeddings.NewSimpleEmbedder(dim)), WithLogf(discard))
	require.NoError(t, err)
	texts := []string{"alpha", "beta", "gamma"}
	result, err := srv.Embed(context.Background(), EmbedRequest{Texts: texts, Dimension: dim})
	require.NoError(t, err)
	for i, text := range texts {
		single, err := srv.Embed(context.Background(), EmbedRequest{Texts: []string{text}, Dimension: dim})
		require.NoError(t, err)
		assert.Equal(t, single.Vectors[0], result.Vectors[i])
	}
}

func TestService_EmbedWithoutFallback(t *testing.T) {
	boom := errors.New("boom")
	srv, err := NewService(WithVectorDB(newFakeDB(8)), WithEmbedder(&failingEmbedder{err: boom}), WithFallback(nil), WithLogf(discard))
	require.NoError(t, err)
	_, err = srv.Embed(context.Background(), EmbedRequest{Texts: []string{"a"}, Dimension: 8})
	assert.ErrorIs(t, err, boom)

	_, err = srv.Embed(context.Background(), EmbedRequest{Texts: []string{"a"}})
	assert.ErrorIs(t, err, boom)
}

func TestService_EmbedCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	srv, err := NewService(WithVectorDB(newFakeDB(8)), WithEmbedder(&failingEmbedder{err: context.Canceled}), WithLogf(discard))
	require.NoError(t, err)
	_, err = srv.Embed(ctx, EmbedRequest{Texts: []string{"a"}, Dimension: 8})
	assert.ErrorIs(t, err, context.Canceled)
}
