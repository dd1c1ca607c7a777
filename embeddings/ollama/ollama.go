package ollama

import (
	"context"
	"fmt"

	"github.com/viant/vecflow/embeddings"
)

type Embedder struct {
	C *Client
}

func NewClient(model, baseURL string) *Client {
	opts := []ClientOption{}
	if baseURL != "" {
		opts = append(opts, WithBaseURL(baseURL))
	}
	return NewClientWithOptions(model, opts...)
}

func (e *Embedder) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	if e == nil || e.C == nil {
		return nil, fmt.Errorf("ollama embedder not configured")
	}
	vecs, _, err := e.C.Embed(ctx, docs, embeddings.InputPassage)
	return vecs, err
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e == nil || e.C == nil {
		return nil, fmt.Errorf("ollama embedder not configured")
	}
	vecs, _, err := e.C.Embed(ctx, []string{text}, embeddings.InputQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
