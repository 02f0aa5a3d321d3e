package simcache

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/orneryd/themescan/pkg/retry"
)

// Embedder produces a fixed-dimension embedding vector for text. Implemented
// by external providers; the cache is the only component that should call a
// provider directly.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CachingEmbedder puts the similarity cache in front of an embedding provider.
// Provider calls are paced by an optional rate limiter and wrapped in the
// shared retry policy. The first successful embed fixes the run dimension;
// later mismatches are provider errors.
type CachingEmbedder struct {
	cache    *Cache
	provider Embedder
	limiter  *rate.Limiter
	policy   retry.Policy
	dim      atomic.Int64
}

// NewCachingEmbedder wires cache in front of provider. ratePerSec <= 0
// disables pacing.
func NewCachingEmbedder(cache *Cache, provider Embedder, policy retry.Policy, ratePerSec float64, burst int) *CachingEmbedder {
	var limiter *rate.Limiter
	if ratePerSec > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	return &CachingEmbedder{cache: cache, provider: provider, limiter: limiter, policy: policy}
}

// Embed returns the embedding for text, served from cache when possible.
// probe may be nil; when supplied it enables the semantic tier.
func (e *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.EmbedWithProbe(ctx, text, nil)
}

// EmbedWithProbe is Embed with an optional precomputed probe vector for the
// semantic tier.
func (e *CachingEmbedder) EmbedWithProbe(ctx context.Context, text string, probe []float32) ([]float32, error) {
	if res, ok := e.cache.Lookup(text, probe); ok {
		return res.Vector, nil
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var vec []float32
	err := e.policy.Do(ctx, func(ctx context.Context) error {
		v, err := e.provider.Embed(ctx, text)
		if err != nil {
			return err
		}
		if len(v) == 0 {
			return fmt.Errorf("provider returned empty vector")
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	if dim := e.dim.Load(); dim == 0 {
		e.dim.CompareAndSwap(0, int64(len(vec)))
	} else if int64(len(vec)) != dim {
		return nil, fmt.Errorf("provider dimension changed: got %d, run uses %d", len(vec), dim)
	}

	e.cache.Register(text, vec)
	return vec, nil
}

// Dimension returns the embedding dimension fixed by the first successful
// provider call, or 0 when nothing has been embedded yet.
func (e *CachingEmbedder) Dimension() int {
	return int(e.dim.Load())
}
