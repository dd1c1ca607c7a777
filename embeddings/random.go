package embeddings

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// RandomEmbedder returns uniform random vectors in [-0.5, 0.5).
// The vectors carry no meaning; they only keep a demo run going when the
// inference API is unavailable.
type RandomEmbedder struct {
	Dim int
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomEmbedder creates a random embedder; a nil source seeds from the clock.
func NewRandomEmbedder(dim int, src rand.Source) *RandomEmbedder {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &RandomEmbedder{Dim: dim, rnd: rand.New(src)}
}

func (e *RandomEmbedder) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	out := make([][]float32, len(docs))
	for i := range docs {
		out[i] = e.vector()
	}
	return out, nil
}

func (e *RandomEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.vector(), nil
}

func (e *RandomEmbedder) vector() []float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rnd == nil {
		e.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	v := make([]float32, e.Dim)
	for i := range v {
		v[i] = e.rnd.Float32() - 0.5
	}
	return v
}
