package vector

import (
	"context"
	"fmt"
	"sort"

	"github.com/unimate/backend/internal/collection"
	"github.com/unimate/backend/internal/storage/models"
)

// rrfOffset is the reciprocal-rank fusion constant: each list contributes
// 1/(rrfOffset+rank) per chunk.
const rrfOffset = 60.0

// Store is one loaded collection: chunk metadata, a dense index, and the
// tokenized chunks for lexical scoring.
type Store struct {
	id       string
	meta     *models.CollectionMeta
	dense    DenseIndex
	embedder Embedder
	lexDocs  []lexDoc
}

// Open loads a collection's artifacts. Any failure means the collection
// contributes nothing to retrieval; callers log and move on.
func Open(ctx context.Context, col collection.Info, backend Backend, embedder Embedder) (*Store, error) {
	meta, err := collection.ReadMeta(col.Path)
	if err != nil {
		return nil, err
	}

	dense, err := backend.OpenIndex(ctx, col.ID, col.Path)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", col.ID, err)
	}

	ids := make([]string, 0, len(meta.Chunks))
	for id := range meta.Chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]lexDoc, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, lexDoc{chunkID: id, tokens: tokenize(meta.Chunks[id].Text)})
	}

	return &Store{
		id:       col.ID,
		meta:     meta,
		dense:    dense,
		embedder: embedder,
		lexDocs:  docs,
	}, nil
}

func (s *Store) ID() string {
	return s.id
}

func (s *Store) Meta() map[string]models.ChunkMeta {
	return s.meta.Chunks
}

func (s *Store) Documents() []models.DocumentInfo {
	return s.meta.Documents
}

func (s *Store) ChunkCount() int {
	return len(s.meta.Chunks)
}

// Search runs hybrid retrieval: dense top-topkDense fused with lexical
// top-topkDense by reciprocal rank, sorted by fused score with ascending
// chunk-id tie-break, truncated to finalK. TopScore is the best dense
// similarity from the same pass.
func (s *Store) Search(ctx context.Context, query string, topkDense, finalK int) (*Result, error) {
	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	denseHits, err := s.dense.Search(ctx, queryVec, topkDense)
	if err != nil {
		return nil, fmt.Errorf("dense search failed: %w", err)
	}

	topScore := 0.0
	if len(denseHits) > 0 {
		topScore = denseHits[0].Score
	}

	lexHits := lexicalSearch(s.lexDocs, query, topkDense)

	fused := fuseRanked(denseHits, lexHits)
	if len(fused) > finalK && finalK > 0 {
		fused = fused[:finalK]
	}

	return &Result{Hits: fused, TopScore: topScore}, nil
}

// fuseRanked merges ranked lists by reciprocal-rank fusion. The output is
// totally ordered: fused score descending, chunk id ascending on ties.
func fuseRanked(lists ...[]Hit) []Hit {
	scores := make(map[string]float64)
	for _, list := range lists {
		for rank, hit := range list {
			scores[hit.ChunkID] += 1.0 / (rrfOffset + float64(rank+1))
		}
	}

	fused := make([]Hit, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, Hit{ChunkID: id, Score: score})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ChunkID < fused[j].ChunkID
	})

	return fused
}
