package vector

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/unimate/backend/pkg/logger"
	"github.com/unimate/backend/pkg/retry"
)

// MilvusBackend stores each document collection as its own Milvus collection
// named "c_<id>". Only chunk ids and embeddings live remotely; chunk metadata
// stays in the local meta.json, same as the local backend.
type MilvusBackend struct {
	client      client.Client
	dim         int
	retryConfig retry.Config
}

func NewMilvusBackend(endpoint, apiKey string, dim int) (*MilvusBackend, error) {
	c, err := client.NewClient(context.Background(), client.Config{
		Address: endpoint,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus backend initialized",
		zap.String("endpoint", endpoint),
		zap.Int("dim", dim),
	)

	return &MilvusBackend{
		client: c,
		dim:    dim,
		retryConfig: retry.Config{
			MaxAttempts: 3,
			Logger:      logger.GetLogger(),
		},
	}, nil
}

func (b *MilvusBackend) Close() error {
	return b.client.Close()
}

func milvusCollectionName(collectionID string) string {
	return "c_" + collectionID
}

func (b *MilvusBackend) OpenIndex(ctx context.Context, collectionID, dir string) (DenseIndex, error) {
	name := milvusCollectionName(collectionID)

	has, err := b.client.HasCollection(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection: %w", err)
	}
	if !has {
		return nil, fmt.Errorf("milvus collection %s does not exist", name)
	}

	if err := b.client.LoadCollection(ctx, name, false); err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}

	return &milvusIndex{backend: b, name: name}, nil
}

func (b *MilvusBackend) PersistIndex(ctx context.Context, collectionID, dir string, ids []string, vectors [][]float32) error {
	name := milvusCollectionName(collectionID)

	has, err := b.client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		if err := b.client.DropCollection(ctx, name); err != nil {
			return fmt.Errorf("failed to drop stale collection: %w", err)
		}
	}

	schema := &entity.Schema{
		CollectionName: name,
		Description:    "UniMate document chunks",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", b.dim),
				},
			},
		},
	}

	if err := b.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, _ := entity.NewIndexIvfFlat(entity.IP, 1024)
	if err := b.client.CreateIndex(ctx, name, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if len(ids) > 0 {
		_, err = b.client.Insert(
			ctx,
			name,
			"",
			entity.NewColumnVarChar("chunk_id", ids),
			entity.NewColumnFloatVector("embedding", b.dim, vectors),
		)
		if err != nil {
			return fmt.Errorf("failed to insert vectors: %w", err)
		}

		if err := b.client.Flush(ctx, name, false); err != nil {
			return fmt.Errorf("failed to flush: %w", err)
		}
	}

	if err := b.client.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Milvus collection persisted",
		zap.String("collection", name),
		zap.Int("chunks", len(ids)),
	)

	return nil
}

type milvusIndex struct {
	backend *MilvusBackend
	name    string
}

func (m *milvusIndex) Search(ctx context.Context, query []float32, topK int) ([]Hit, error) {
	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	results, err := retry.DoWithResult(ctx, m.backend.retryConfig, func() ([]client.SearchResult, error) {
		return m.backend.client.Search(
			ctx,
			m.name,
			[]string{},
			"",
			[]string{"chunk_id"},
			[]entity.Vector{entity.FloatVector(query)},
			"embedding",
			entity.IP,
			topK,
			sp,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var hits []Hit
	for _, sr := range results {
		idCol := sr.Fields.GetColumn("chunk_id")
		if idCol == nil {
			continue
		}
		for i := 0; i < sr.ResultCount; i++ {
			id, err := idCol.Get(i)
			if err != nil {
				continue
			}
			hits = append(hits, Hit{
				ChunkID: id.(string),
				Score:   float64(sr.Scores[i]),
			})
		}
	}

	return hits, nil
}
