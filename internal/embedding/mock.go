package embedding

import (
	"context"
	"math"

	"github.com/hayasui/kioku/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and development. The
// vector is derived from the text hash, so identical texts always produce
// bit-identical embeddings.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder producing unit-normalized vectors of
// the given dimensionality (default 384 when non-positive).
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic embedding seeded by the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seed := float64(HashToken(text))
	emb := make([]float32, e.dimensions)
	for i := range emb {
		emb[i] = float32(math.Sin(seed*float64(i+1)) * 0.1)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
