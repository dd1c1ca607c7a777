package embeddings

import "context"

// Embedder is a minimal interface for computing vector embeddings
// for documents (passages) and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// InputType tags what the embedded text is used for.
type InputType string

const (
	InputPassage InputType = "passage"
	InputQuery   InputType = "query"
)

// Embed dispatches texts to EmbedDocuments or EmbedQuery depending on input type.
// Query embedding is issued per text.
func Embed(ctx context.Context, emb Embedder, texts []string, inputType InputType) ([][]float32, error) {
	if inputType != InputQuery {
		return emb.EmbedDocuments(ctx, texts)
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := emb.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
