package query

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unimate/backend/internal/collection"
	"github.com/unimate/backend/internal/metrics"
	"github.com/unimate/backend/internal/storage/models"
	"github.com/unimate/backend/internal/vector"
	"github.com/unimate/backend/pkg/logger"
)

// globalIDSep joins a collection id to a collection-local chunk id.
const globalIDSep = "::"

func GlobalID(collectionID, chunkID string) string {
	return collectionID + globalIDSep + chunkID
}

func SplitGlobalID(globalID string) (collectionID, chunkID string) {
	if i := strings.Index(globalID, globalIDSep); i >= 0 {
		return globalID[:i], globalID[i+len(globalIDSep):]
	}
	return globalID, ""
}

// Searcher is one loaded collection as the aggregator sees it.
type Searcher interface {
	Search(ctx context.Context, query string, topkDense, finalK int) (*vector.Result, error)
	Meta() map[string]models.ChunkMeta
}

// Opener loads a collection for searching. Failures mean the collection is
// skipped for this query.
type Opener func(ctx context.Context, col collection.Info) (Searcher, error)

// Lister enumerates the collections to fan out over.
type Lister interface {
	List() []collection.Info
}

// AggregateResult is the merged retrieval outcome across all collections.
// Meta covers exactly the returned candidates. Confidence is the maximum
// per-collection top score and is not affected by truncation.
type AggregateResult struct {
	Candidates []models.Candidate
	Meta       map[string]models.ChunkMeta
	Confidence float64
}

type Aggregator struct {
	registry  Lister
	open      Opener
	topkDense int
	finalK    int
	timeout   time.Duration
}

func NewAggregator(registry Lister, open Opener, topkDense, finalK int, timeout time.Duration) *Aggregator {
	if topkDense <= 0 {
		topkDense = 20
	}
	if finalK <= 0 {
		finalK = 5
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Aggregator{
		registry:  registry,
		open:      open,
		topkDense: topkDense,
		finalK:    finalK,
		timeout:   timeout,
	}
}

type collectionResult struct {
	col      collection.Info
	hits     []vector.Hit
	topScore float64
	meta     map[string]models.ChunkMeta
	err      error
}

// SearchAll fans out over every collection in its own goroutine, each under
// the per-collection timeout, and merges the survivors into one ranked
// list: score descending, ascending global id on ties, truncated to finalK.
// Retrieval problems never escape; a failed collection simply contributes
// nothing.
func (a *Aggregator) SearchAll(ctx context.Context, queryText string) *AggregateResult {
	cols := a.registry.List()
	metrics.CollectionsSearched.Observe(float64(len(cols)))

	out := &AggregateResult{Meta: make(map[string]models.ChunkMeta)}
	if len(cols) == 0 {
		return out
	}

	results := make([]collectionResult, len(cols))

	var wg sync.WaitGroup
	for i, col := range cols {
		wg.Add(1)
		go func(i int, col collection.Info) {
			defer wg.Done()

			colCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			searcher, err := a.open(colCtx, col)
			if err != nil {
				results[i] = collectionResult{col: col, err: err}
				return
			}

			res, err := searcher.Search(colCtx, queryText, a.topkDense, a.finalK)
			if err != nil {
				results[i] = collectionResult{col: col, err: err}
				return
			}

			results[i] = collectionResult{
				col:      col,
				hits:     res.Hits,
				topScore: res.TopScore,
				meta:     searcher.Meta(),
			}
		}(i, col)
	}
	wg.Wait()

	var candidates []models.Candidate
	merged := make(map[string]models.ChunkMeta)

	for _, r := range results {
		if r.err != nil {
			metrics.CollectionFailures.Inc()
			logger.Warn("Collection search failed, skipping",
				zap.String("collection_id", r.col.ID),
				zap.Error(r.err),
			)
			continue
		}
		if len(r.hits) == 0 {
			continue
		}

		if r.topScore > out.Confidence {
			out.Confidence = r.topScore
		}

		for _, hit := range r.hits {
			gid := GlobalID(r.col.ID, hit.ChunkID)
			candidates = append(candidates, models.Candidate{ID: gid, Score: hit.Score})
			if m, ok := r.meta[hit.ChunkID]; ok {
				merged[gid] = m
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})

	if len(candidates) > a.finalK {
		candidates = candidates[:a.finalK]
	}

	for _, c := range candidates {
		if m, ok := merged[c.ID]; ok {
			out.Meta[c.ID] = m
		}
	}
	out.Candidates = candidates

	logger.Debug("Retrieval aggregated",
		zap.Int("collections", len(cols)),
		zap.Int("candidates", len(candidates)),
		zap.Float64("confidence", out.Confidence),
	)

	return out
}
