package vector

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// VectorsFile is the dense artifact inside a collection directory.
const VectorsFile = "vectors.gob"

type localArtifact struct {
	Dim     int
	IDs     []string
	Vectors [][]float32
}

// LocalBackend keeps dense vectors in a gob file next to meta.json and
// searches them in process. It is the default backend and needs no external
// service.
type LocalBackend struct{}

func NewLocalBackend() *LocalBackend {
	return &LocalBackend{}
}

func (b *LocalBackend) OpenIndex(ctx context.Context, collectionID, dir string) (DenseIndex, error) {
	path := filepath.Join(dir, VectorsFile)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vectors artifact: %w", err)
	}
	defer f.Close()

	var art localArtifact
	if err := gob.NewDecoder(f).Decode(&art); err != nil {
		return nil, fmt.Errorf("failed to decode vectors artifact: %w", err)
	}

	if len(art.IDs) != len(art.Vectors) {
		return nil, fmt.Errorf("corrupt vectors artifact: %d ids vs %d vectors", len(art.IDs), len(art.Vectors))
	}

	return &LocalIndex{ids: art.IDs, vectors: art.Vectors}, nil
}

func (b *LocalBackend) PersistIndex(ctx context.Context, collectionID, dir string, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}

	path := filepath.Join(dir, VectorsFile)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create vectors artifact: %w", err)
	}
	defer f.Close()

	art := localArtifact{Dim: dim, IDs: ids, Vectors: vectors}
	if err := gob.NewEncoder(f).Encode(&art); err != nil {
		return fmt.Errorf("failed to encode vectors artifact: %w", err)
	}

	return nil
}

// LocalIndex is a brute-force inner-product index over normalized vectors.
type LocalIndex struct {
	ids     []string
	vectors [][]float32
}

func (idx *LocalIndex) Search(ctx context.Context, query []float32, topK int) ([]Hit, error) {
	if len(idx.ids) == 0 || topK <= 0 {
		return nil, nil
	}

	hits := make([]Hit, len(idx.ids))
	for i, vec := range idx.vectors {
		hits[i] = Hit{ChunkID: idx.ids[i], Score: dot(query, vec)}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
