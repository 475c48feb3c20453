// Package embedding provides the model gateway: text embedding via ONNX,
// a deterministic mock for tests, and a readiness-tracking wrapper that
// keeps requests away from the model until initialization completes.
package embedding

import "context"

// Embedder produces fixed-dimension vector embeddings for text.
// Implementations apply their own pooling and L2 normalization, so the
// same text always yields the same vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}
