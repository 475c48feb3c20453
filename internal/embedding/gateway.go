package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrNotReady is returned when the model is queried before initialization
// has completed.
var ErrNotReady = errors.New("embedding model is not ready")

// State is the model readiness state. It moves forward once at startup and
// is never reset.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Gateway guards an Embedder behind a readiness flag. No Embed call reaches
// the model before Initialize has completed successfully; a failed
// initialization leaves the gateway permanently not ready.
type Gateway struct {
	build  func() (Embedder, error)
	logger *zap.Logger

	state    atomic.Int32
	mu       sync.Mutex
	embedder Embedder
}

// NewGateway creates a gateway that obtains its Embedder from build during
// Initialize. Model construction may be slow (first-time model load), which
// is why it is deferred rather than done here.
func NewGateway(build func() (Embedder, error), logger *zap.Logger) *Gateway {
	return &Gateway{build: build, logger: logger}
}

// Initialize constructs the underlying embedder and marks the gateway ready.
// It is intended to be called once at startup; subsequent calls after a
// successful initialization are no-ops.
func (g *Gateway) Initialize(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.State() == StateReady {
		return nil
	}
	g.state.Store(int32(StateLoading))
	g.logger.Info("initializing embedding model")

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("model initialization aborted: %w", err)
	}
	embedder, err := g.build()
	if err != nil {
		g.logger.Error("embedding model initialization failed", zap.Error(err))
		return fmt.Errorf("failed to initialize embedding model: %w", err)
	}

	g.embedder = embedder
	g.state.Store(int32(StateReady))
	g.logger.Info("embedding model ready", zap.Int("dimensions", embedder.Dimensions()))
	return nil
}

// State returns the current readiness state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// Ready reports whether the model has completed initialization.
func (g *Gateway) Ready() bool {
	return g.State() == StateReady
}

// Embed produces the embedding for text. Returns ErrNotReady before
// initialization completes.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if !g.Ready() {
		return nil, ErrNotReady
	}
	return g.embedder.Embed(ctx, text)
}

// Dimensions returns the model's vector dimensionality, or 0 before the
// model is ready.
func (g *Gateway) Dimensions() int {
	if !g.Ready() {
		return 0
	}
	return g.embedder.Dimensions()
}

// Close releases the underlying embedder, if one was initialized.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.embedder == nil {
		return nil
	}
	return g.embedder.Close()
}
