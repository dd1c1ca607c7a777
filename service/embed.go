package service

import (
	"context"
	"fmt"

	"github.com/viant/vecflow/embeddings"
)

const opEmbed = "embed"

// Embed returns one vector per text from the preferred embedder.
// Any failure of the preferred path, including a count or dimension mismatch,
// selects the fallback embedder and marks the result degraded.
func (s *Service) Embed(ctx context.Context, req EmbedRequest) (*EmbedResult, error) {
	logf := s.resolveLogf(req.Logf)
	if len(req.Texts) == 0 {
		return &EmbedResult{Vectors: [][]float32{}}, nil
	}
	inputType := req.InputType
	if inputType == "" {
		inputType = embeddings.InputPassage
	}
	var cause error
	if s.embedder == nil {
		cause = fmt.Errorf("embedder is not configured")
	} else {
		vecs, err := embeddings.Embed(ctx, s.embedder, req.Texts, inputType)
		if err == nil {
			err = embeddings.Validate(opEmbed, vecs, len(req.Texts), req.Dimension)
		}
		if err == nil {
			return &EmbedResult{Vectors: vecs}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		cause = err
	}
	if s.fallback == nil || req.Dimension <= 0 {
		return nil, cause
	}
	logf("embedding failed (%v); using random %d-dimensional vectors, results will not be semantic", cause, req.Dimension)
	vecs, err := embeddings.Embed(ctx, s.fallback(req.Dimension), req.Texts, inputType)
	if err != nil {
		return nil, fmt.Errorf("fallback embedding failed: %w (preferred: %v)", err, cause)
	}
	if err := embeddings.Validate(opEmbed, vecs, len(req.Texts), req.Dimension); err != nil {
		return nil, err
	}
	return &EmbedResult{Vectors: vecs, Degraded: true, Cause: cause}, nil
}
