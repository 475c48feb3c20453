// Package orchestrator mediates between the embedding cache and the model
// gateway for single and batched requests. It owns the decision of when to
// call the model versus serve from cache, and the bookkeeping around it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hayasui/kioku/internal/cache"
	"github.com/hayasui/kioku/internal/metrics"
)

var (
	// ErrModelNotReady is returned while the model gateway has not completed
	// initialization. Callers may retry.
	ErrModelNotReady = errors.New("embedding model is not ready")

	// ErrInvalidInput is returned for empty or missing request text.
	ErrInvalidInput = errors.New("invalid input")
)

// GenerationError wraps a model gateway failure. The failed text is never
// cached.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("embedding generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Gateway is the model capability the orchestrator depends on.
type Gateway interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Ready() bool
}

// Stats is a snapshot of the orchestrator's request statistics.
type Stats struct {
	Requests  uint64 `json:"requests"`
	CacheHits uint64 `json:"cacheHits"`
	CacheSize int    `json:"cacheSize"`
	HitRate   string `json:"hitRate"`
}

// Orchestrator resolves texts to embeddings through the cache, falling back
// to the model gateway on misses.
type Orchestrator struct {
	gateway  Gateway
	cache    *cache.Cache
	logger   *zap.Logger
	requests atomic.Uint64
}

// New creates an orchestrator with explicit dependencies; no shared global
// state, so tests construct fresh instances freely.
func New(gw Gateway, c *cache.Cache, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{gateway: gw, cache: c, logger: logger}
}

// ResolveOne returns the embedding for text, serving from the cache when
// possible. Returns ErrModelNotReady before the gateway has initialized and
// ErrInvalidInput for empty text.
func (o *Orchestrator) ResolveOne(ctx context.Context, text string) ([]float32, error) {
	if !o.gateway.Ready() {
		return nil, ErrModelNotReady
	}
	return o.resolve(ctx, text)
}

// ResolveBatch resolves each text independently and in parallel; cache hits
// do not wait on misses. The result slice always matches the input order and
// length. Readiness is checked once, before any element is dispatched, and a
// single element failure fails the whole batch.
func (o *Orchestrator) ResolveBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if texts == nil {
		return nil, ErrInvalidInput
	}
	if !o.gateway.Ready() {
		return nil, ErrModelNotReady
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := o.resolve(gctx, text)
			if err != nil {
				return err
			}
			results[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// resolve performs the per-text cache-check-then-generate step. Each call
// counts as one request regardless of hit or miss.
func (o *Orchestrator) resolve(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrInvalidInput
	}

	o.requests.Add(1)
	metrics.RequestsTotal.Inc()

	key := cache.Key(text)
	if vec, ok := o.cache.Get(key); ok {
		metrics.CacheHitsTotal.Inc()
		return vec, nil
	}

	start := time.Now()
	// The model receives the full text; only the cache key is truncated.
	vec, err := o.gateway.Embed(ctx, text)
	if err != nil {
		metrics.GenerationFailuresTotal.Inc()
		o.logger.Error("embedding generation failed", zap.Error(err))
		return nil, &GenerationError{Err: err}
	}
	metrics.GenerationsTotal.Inc()
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())

	o.cache.Put(key, vec)
	metrics.CacheEntries.Set(float64(o.cache.Size()))
	return vec, nil
}

// ClearCache empties the cache and resets both statistics counters,
// returning the number of entries removed.
func (o *Orchestrator) ClearCache() int {
	n := o.cache.Clear()
	o.requests.Store(0)
	metrics.CacheEntries.Set(0)
	o.logger.Info("embedding cache cleared", zap.Int("removed", n))
	return n
}

// Stats returns a snapshot of the request counters and cache occupancy.
func (o *Orchestrator) Stats() Stats {
	requests := o.requests.Load()
	hits := o.cache.Hits()
	rate := 0.0
	if requests > 0 {
		rate = float64(hits) / float64(requests) * 100
	}
	return Stats{
		Requests:  requests,
		CacheHits: hits,
		CacheSize: o.cache.Size(),
		HitRate:   fmt.Sprintf("%.2f%%", rate),
	}
}

// Ready reports whether the model gateway has completed initialization.
func (o *Orchestrator) Ready() bool {
	return o.gateway.Ready()
}

// Dimensions returns the gateway's vector dimensionality (0 until ready).
func (o *Orchestrator) Dimensions() int {
	return o.gateway.Dimensions()
}
