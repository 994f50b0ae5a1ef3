// Package vector implements per-collection hybrid retrieval: a dense index
// (local artifact or Milvus) fused with lexical scoring over the chunk
// metadata. Vectors are assumed L2-normalized, so inner product equals
// cosine similarity.
package vector

import "context"

// Hit is one scored chunk, identified by its collection-local id.
type Hit struct {
	ChunkID string
	Score   float64
}

// Result is the outcome of one hybrid search. TopScore is the best dense
// similarity seen for the query, independent of fusion and truncation; it
// feeds the aggregator's confidence signal.
type Result struct {
	Hits     []Hit
	TopScore float64
}

// DenseIndex answers nearest-neighbor queries for one collection.
type DenseIndex interface {
	Search(ctx context.Context, vector []float32, topK int) ([]Hit, error)
}

// Backend opens and persists dense indexes. Implementations: LocalBackend
// (vectors.gob per collection directory) and MilvusBackend (one remote
// collection per document collection).
type Backend interface {
	OpenIndex(ctx context.Context, collectionID, dir string) (DenseIndex, error)
	PersistIndex(ctx context.Context, collectionID, dir string, ids []string, vectors [][]float32) error
}

// Embedder turns query text into a normalized vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
