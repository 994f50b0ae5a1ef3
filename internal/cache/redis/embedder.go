package redis

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/unimate/backend/internal/metrics"
	"github.com/unimate/backend/pkg/logger"
	"github.com/unimate/backend/pkg/utils"
)

// Embedder is the surface the cache decorates.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// CachingEmbedder looks embeddings up by md5(text) before delegating to the
// wrapped embedder. Cache errors degrade to misses; the inner embedder is the
// source of truth.
type CachingEmbedder struct {
	cache *Client
	inner Embedder
	ttl   time.Duration
}

func NewCachingEmbedder(cache *Client, inner Embedder, ttl time.Duration) *CachingEmbedder {
	return &CachingEmbedder{
		cache: cache,
		inner: inner,
		ttl:   ttl,
	}
}

func (e *CachingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := utils.HashString(text)

	if cached, ok, err := e.cache.GetEmbedding(ctx, key); err == nil && ok {
		metrics.EmbeddingCacheHits.Inc()
		return cached, nil
	} else if err != nil {
		logger.Warn("Embedding cache lookup failed", zap.Error(err))
	}
	metrics.EmbeddingCacheMisses.Inc()

	embedding, err := e.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.SetEmbedding(ctx, key, embedding, e.ttl); err != nil {
		logger.Warn("Embedding cache store failed", zap.Error(err))
	}

	return embedding, nil
}

func (e *CachingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		key := utils.HashString(text)
		if cached, ok, err := e.cache.GetEmbedding(ctx, key); err == nil && ok {
			metrics.EmbeddingCacheHits.Inc()
			out[i] = cached
			continue
		} else if err != nil {
			logger.Warn("Embedding cache lookup failed", zap.Error(err))
		}
		metrics.EmbeddingCacheMisses.Inc()
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		fresh, err := e.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, idx := range missIdx {
			out[idx] = fresh[j]
			if err := e.cache.SetEmbedding(ctx, utils.HashString(missTexts[j]), fresh[j], e.ttl); err != nil {
				logger.Warn("Embedding cache store failed", zap.Error(err))
			}
		}
	}

	return out, nil
}
