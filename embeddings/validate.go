package embeddings

import (
	"fmt"

	"github.com/viant/vecflow/apierr"
)

// Validate checks that vecs holds one vector per input, each of dim values.
// A dim of zero skips the dimension check.
func Validate(op string, vecs [][]float32, inputs, dim int) error {
	if len(vecs) != inputs {
		return apierr.New(apierr.KindUnexpectedResponse, op, fmt.Sprintf("embedder returned %d vectors for %d inputs", len(vecs), inputs))
	}
	if dim <= 0 {
		return nil
	}
	for i, v := range vecs {
		if len(v) != dim {
			return apierr.New(apierr.KindUnexpectedResponse, op, fmt.Sprintf("vector %d has dimension %d, expected %d", i, len(v), dim))
		}
	}
	return nil
}
