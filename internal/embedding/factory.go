package embedding

import (
	"fmt"

	"github.com/hayasui/kioku/internal/config"
)

// NewEmbedder creates the configured embedder. With cfg.Mock set it returns
// the deterministic mock (development and tests); otherwise it loads the
// ONNX model, which requires CGO and the onnxruntime library.
func NewEmbedder(cfg *config.EmbeddingConfig) (Embedder, error) {
	if cfg.Mock {
		return NewMockEmbedder(cfg.Dimensions), nil
	}
	embedder, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX embedder: %w", err)
	}
	return embedder, nil
}
