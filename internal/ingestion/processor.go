package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/unimate/backend/internal/collection"
	"github.com/unimate/backend/internal/metrics"
	"github.com/unimate/backend/internal/storage/models"
	"github.com/unimate/backend/internal/storage/sqlite"
	"github.com/unimate/backend/internal/vector"
	"github.com/unimate/backend/pkg/logger"
)

const (
	StatusIndexed     = "indexed"
	StatusLoadedCache = "loaded_cache"
)

var ErrNoFiles = errors.New("no files provided")

// Embedder is the slice of the LLM client ingestion needs. The Redis caching
// decorator satisfies it too.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type UploadedFile struct {
	Filename string
	Data     []byte
}

type Result struct {
	Status       string                `json:"status"`
	CollectionID string                `json:"collection_id"`
	Documents    []models.DocumentInfo `json:"documents"`
	TotalChunks  int                   `json:"total_chunks"`
}

type Processor struct {
	db        *sqlite.Client
	registry  *collection.Registry
	backend   vector.Backend
	embedder  Embedder
	dim       int
	chunkSize int
	uploadDir string
}

// NewProcessor wires the ingestion pipeline. db may be nil; upload records
// are then skipped. uploadDir may be empty to disable raw file archiving.
func NewProcessor(db *sqlite.Client, registry *collection.Registry, backend vector.Backend, embedder Embedder, dim int, uploadDir string) *Processor {
	return &Processor{
		db:        db,
		registry:  registry,
		backend:   backend,
		embedder:  embedder,
		dim:       dim,
		chunkSize: 1000,
		uploadDir: uploadDir,
	}
}

// ProcessUpload turns a set of uploaded files into a searchable collection.
// The collection id is derived from the file set, so re-uploading the same
// files reuses the existing artifacts instead of re-indexing.
func (p *Processor) ProcessUpload(ctx context.Context, files []UploadedFile) (*Result, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	names := make([]string, len(files))
	sizes := make([]int64, len(files))
	for i, f := range files {
		names[i] = f.Filename
		sizes[i] = int64(len(f.Data))
	}
	collectionID := collection.IDFromFiles(names, sizes)

	logger.Info("Processing upload",
		zap.String("collection_id", collectionID),
		zap.Int("files", len(files)),
	)

	if p.registry.Exists(collectionID) {
		return p.loadExisting(collectionID)
	}

	dir, err := p.registry.Dir(collectionID)
	if err != nil {
		return nil, err
	}

	chunks := make(map[string]models.ChunkMeta)
	var docs []models.DocumentInfo
	var ids []string
	var texts []string

	seq := 0
	for _, f := range files {
		pages, err := extractPages(f.Filename, f.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", f.Filename, err)
		}

		for pageIdx, pageText := range pages {
			for _, chunkText := range chunkSentences(pageText, p.chunkSize) {
				id := strconv.Itoa(seq)
				chunks[id] = models.ChunkMeta{
					Document: f.Filename,
					Page:     pageIdx + 1,
					Text:     chunkText,
				}
				ids = append(ids, id)
				texts = append(texts, chunkText)
				seq++
			}
		}

		docs = append(docs, models.DocumentInfo{
			Filename:  f.Filename,
			SizeBytes: int64(len(f.Data)),
			Pages:     len(pages),
		})
		metrics.DocumentsProcessed.Inc()

		logger.Debug("Document extracted",
			zap.String("filename", f.Filename),
			zap.Int("pages", len(pages)),
		)
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("no text content in uploaded files")
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(ids) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(vectors), len(ids))
	}

	if err := p.backend.PersistIndex(ctx, collectionID, dir, ids, vectors); err != nil {
		return nil, fmt.Errorf("failed to persist index: %w", err)
	}

	meta := &models.CollectionMeta{
		CollectionID: collectionID,
		Dim:          p.dim,
		Documents:    docs,
		Chunks:       chunks,
		CreatedAt:    time.Now().UTC(),
	}
	// Meta goes last: its presence marks the collection complete, so a crash
	// mid-ingest never leaves a listable collection without a dense artifact.
	if err := collection.WriteMeta(dir, meta); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}

	metrics.ChunksIndexed.Add(float64(len(ids)))
	p.archiveRaw(collectionID, files)
	p.recordUploads(collectionID, docs, len(ids))

	logger.Info("Upload indexed",
		zap.String("collection_id", collectionID),
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(ids)),
	)

	return &Result{
		Status:       StatusIndexed,
		CollectionID: collectionID,
		Documents:    docs,
		TotalChunks:  len(ids),
	}, nil
}

func (p *Processor) loadExisting(collectionID string) (*Result, error) {
	meta, err := collection.ReadMeta(p.registry.Path(collectionID))
	if err != nil {
		return nil, fmt.Errorf("collection exists but metadata unreadable: %w", err)
	}

	logger.Info("Upload matches existing collection, reusing",
		zap.String("collection_id", collectionID),
		zap.Int("chunks", len(meta.Chunks)),
	)

	return &Result{
		Status:       StatusLoadedCache,
		CollectionID: collectionID,
		Documents:    meta.Documents,
		TotalChunks:  len(meta.Chunks),
	}, nil
}

// archiveRaw keeps the original bytes next to the derived artifacts so a
// collection can be re-indexed after a chunking or embedding change. Failures
// are logged, not fatal.
func (p *Processor) archiveRaw(collectionID string, files []UploadedFile) {
	if p.uploadDir == "" {
		return
	}
	dir := filepath.Join(p.uploadDir, collectionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Warn("Failed to create upload archive dir", zap.String("dir", dir), zap.Error(err))
		return
	}
	for _, f := range files {
		name := filepath.Base(f.Filename)
		if err := os.WriteFile(filepath.Join(dir, name), f.Data, 0644); err != nil {
			logger.Warn("Failed to archive upload",
				zap.String("collection_id", collectionID),
				zap.String("filename", name),
				zap.Error(err),
			)
		}
	}
}

func (p *Processor) recordUploads(collectionID string, docs []models.DocumentInfo, totalChunks int) {
	if p.db == nil {
		return
	}
	for _, d := range docs {
		rec := &models.UploadRecord{
			CollectionID: collectionID,
			Filename:     d.Filename,
			SizeBytes:    d.SizeBytes,
			Pages:        d.Pages,
			Chunks:       totalChunks,
			CreatedAt:    time.Now().UTC(),
		}
		if err := p.db.InsertUpload(rec); err != nil {
			logger.Warn("Failed to record upload",
				zap.String("collection_id", collectionID),
				zap.String("filename", d.Filename),
				zap.Error(err),
			)
		}
	}
}
